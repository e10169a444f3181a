package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/shallweeat-bot/internal/board"
	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/logger"
	"github.com/maaaruch/shallweeat-bot/internal/recommend"
	"github.com/maaaruch/shallweeat-bot/internal/storage/sqlite"
	"github.com/maaaruch/shallweeat-bot/internal/vote"
)

type envelope[T any] struct {
	Success bool              `json:"success"`
	Data    T                 `json:"data"`
	Error   string            `json:"error"`
	Code    domain.Kind       `json:"code"`
	Details map[string]string `json:"details"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))

	log := logger.Discard()
	return NewServer(Services{
		Boards:    board.NewService(s, log),
		Recommend: recommend.NewEngine(s, log),
		Ledger:    vote.NewLedger(s, log),
		Tally:     vote.NewTally(s),
	}, Options{}, log)
}

// call performs a request as the given provider id ("" for anonymous) and
// decodes the envelope.
func call[T any](t *testing.T, srv *Server, method, path, who string, body any) (int, envelope[T]) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set(HeaderProviderID, who)
		req.Header.Set(HeaderUserName, who)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func allOptions() RecommendRequest {
	return RecommendRequest{
		TasteOptions:    []string{"ALL"},
		CarbOptions:     []string{"ALL"},
		WeatherOptions:  []string{"ALL"},
		CategoryOptions: []string{"ALL"},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	code, env := call[map[string]string](t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Data["status"])
}

func TestGuestRecommend(t *testing.T) {
	srv := newTestServer(t)

	req := allOptions()
	req.CategoryOptions = []string{"일식", "멕시코"}
	code, env := call[[]domain.CategoryGroup](t, srv, http.MethodPost, "/api/v1/guest/recommend", "", req)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, env.Data, 2)
	assert.Equal(t, domain.CategoryJapanese, env.Data[0].Category)
	assert.Equal(t, domain.CategoryMexican, env.Data[1].Category)

	code, env = call[[]domain.CategoryGroup](t, srv, http.MethodPost, "/api/v1/guest/recommend", "",
		map[string]any{"tasteOptions": []string{"ALL"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, domain.KindValidation, env.Code)
	assert.Equal(t, "is required", env.Details["carbOptions"])
}

func TestRequireUser(t *testing.T) {
	srv := newTestServer(t)

	code, _ := call[any](t, srv, http.MethodGet, "/api/v1/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestBoardVoteFlow(t *testing.T) {
	srv := newTestServer(t)

	code, team := call[BoardResponse](t, srv, http.MethodPost, "/api/v1/teamboards", "owner", CreateTeamBoardRequest{
		TeamName: "개발팀", TeamMembersNum: 3, TeamBoardName: "금요일 점심",
	})
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, team.Data.InviteCode)
	boardPath := "/api/v1/boards/" + strconv.FormatInt(team.Data.BoardID, 10)

	req := allOptions()
	req.TasteOptions = []string{"매운맛"}
	code, groups := call[[]domain.CategoryGroup](t, srv, http.MethodPost, boardPath+"/recommend", "owner", req)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, groups.Data)

	code, menus := call[[]domain.RecommendedMenu](t, srv, http.MethodGet, boardPath+"/menus", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []int64{1, 5, 11, 12, 14}, func() []int64 {
		out := make([]int64, len(menus.Data))
		for i, m := range menus.Data {
			out[i] = m.MenuID
		}
		return out
	}())

	// An outsider can neither vote nor see the invite code.
	code, env := call[any](t, srv, http.MethodPost, boardPath+"/votes", "guest", VoteRequest{MenuIDs: []int64{1}})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, domain.KindUnauthorized, env.Code)

	code, joined := call[BoardResponse](t, srv, http.MethodPost, "/api/v1/teamboards/join", "guest", JoinRequest{InviteCode: team.Data.InviteCode})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, joined.Data.InviteCode)
	assert.False(t, joined.Data.IsOwner)

	code, votes := call[[]VoteResponse](t, srv, http.MethodPost, boardPath+"/votes", "guest", VoteRequest{MenuIDs: []int64{1, 5, 11}})
	require.Equal(t, http.StatusCreated, code)
	require.Len(t, votes.Data, 3)

	code, env = call[any](t, srv, http.MethodPost, boardPath+"/votes", "guest", VoteRequest{MenuIDs: []int64{12}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.KindVoteLimitExceeded, env.Code)

	code, _ = call[[]VoteResponse](t, srv, http.MethodPost, boardPath+"/votes", "owner", VoteRequest{MenuIDs: []int64{5}})
	require.Equal(t, http.StatusCreated, code)

	code, env = call[any](t, srv, http.MethodPost, boardPath+"/votes", "owner", VoteRequest{MenuIDs: []int64{5}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.KindDuplicateVote, env.Code)

	code, res := call[domain.VoteResult](t, srv, http.MethodGet, boardPath+"/votes/results", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "개발팀", res.Data.TeamName)
	assert.True(t, res.Data.HasVoted)
	require.Len(t, res.Data.Votes, 3)
	assert.Equal(t, domain.MenuCount{MenuID: 5, MenuName: "마라탕", Count: 2}, res.Data.Votes[0])
	assert.Equal(t, int64(1), res.Data.Votes[1].MenuID)

	code, q := call[domain.Quorum](t, srv, http.MethodGet, boardPath+"/votes/quorum", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.Quorum{VotedUserCount: 2, TeamMembersNum: 3}, q.Data)

	// The owner may not withdraw someone else's vote.
	votePath := "/api/v1/votes/" + strconv.FormatInt(votes.Data[0].VoteID, 10)
	code, _ = call[any](t, srv, http.MethodDelete, votePath, "owner", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call[any](t, srv, http.MethodDelete, votePath, "guest", nil)
	assert.Equal(t, http.StatusOK, code)

	code, replaced := call[[]VoteResponse](t, srv, http.MethodPut, boardPath+"/votes", "guest", ReplaceVotesRequest{MenuIDs: []int64{1, 5, 11, 12, 14}})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, replaced.Data, 5)
}

func TestBoardErrors(t *testing.T) {
	srv := newTestServer(t)

	code, env := call[any](t, srv, http.MethodGet, "/api/v1/boards/abc/menus", "owner", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be a positive integer", env.Details["boardID"])

	code, env = call[any](t, srv, http.MethodGet, "/api/v1/boards/42/menus", "owner", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, domain.KindBoardNotFound, env.Code)

	code, created := call[BoardResponse](t, srv, http.MethodPost, "/api/v1/boards", "owner", CreateBoardRequest{Name: "혼밥"})
	require.Equal(t, http.StatusCreated, code)
	boardPath := "/api/v1/boards/" + strconv.FormatInt(created.Data.BoardID, 10)

	code, env = call[any](t, srv, http.MethodGet, boardPath+"/votes/results", "owner", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, domain.KindNoVotesYet, env.Code)

	code, env = call[any](t, srv, http.MethodGet, boardPath+"/menus/1", "owner", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, domain.KindSlotNotFound, env.Code)

	code, renamed := call[BoardResponse](t, srv, http.MethodPatch, boardPath, "owner", CreateBoardRequest{Name: "야식"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "야식", renamed.Data.Name)

	code, _ = call[any](t, srv, http.MethodDelete, boardPath, "someone", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call[any](t, srv, http.MethodDelete, boardPath, "owner", nil)
	assert.Equal(t, http.StatusOK, code)

	code, list := call[[]BoardResponse](t, srv, http.MethodGet, "/api/v1/boards", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, list.Data)
}

func TestAddBoardMenus(t *testing.T) {
	srv := newTestServer(t)

	_, team := call[BoardResponse](t, srv, http.MethodPost, "/api/v1/teamboards", "owner", CreateTeamBoardRequest{
		TeamName: "t", TeamMembersNum: 2, TeamBoardName: "b",
	})
	boardPath := "/api/v1/boards/" + strconv.FormatInt(team.Data.BoardID, 10)

	code, env := call[any](t, srv, http.MethodPost, boardPath+"/menus", "owner", AddMenusRequest{MenuIDs: []int64{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be at least 1", env.Details["menuIds"])

	code, _ = call[[]map[string]int64](t, srv, http.MethodPost, boardPath+"/menus", "owner", AddMenusRequest{MenuIDs: []int64{6, 7}})
	require.Equal(t, http.StatusCreated, code)

	code, cats := call[[]domain.CategoryGroup](t, srv, http.MethodGet, boardPath+"/categories", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, cats.Data, 1)
	assert.Equal(t, domain.CategoryJapanese, cats.Data[0].Category)
	assert.Len(t, cats.Data[0].Items, 2)

	code, menu := call[domain.RecommendedMenu](t, srv, http.MethodGet, boardPath+"/menus/7", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "라멘", menu.Data.MenuName)
}

// newTeamBoard creates a team board for "owner", fills it with the whole
// catalog and returns its path.
func newTeamBoard(t *testing.T, srv *Server) (string, BoardResponse) {
	t.Helper()

	code, team := call[BoardResponse](t, srv, http.MethodPost, "/api/v1/teamboards", "owner", CreateTeamBoardRequest{
		TeamName: "개발팀", TeamMembersNum: 3, TeamBoardName: "금요일 점심",
	})
	require.Equal(t, http.StatusCreated, code)
	boardPath := "/api/v1/boards/" + strconv.FormatInt(team.Data.BoardID, 10)

	code, _ = call[[]domain.CategoryGroup](t, srv, http.MethodPost, boardPath+"/recommend", "owner", allOptions())
	require.Equal(t, http.StatusOK, code)
	return boardPath, team.Data
}

func TestRecommend_KeepsVotesAndRejectsStrangers(t *testing.T) {
	srv := newTestServer(t)
	boardPath, _ := newTeamBoard(t, srv)

	code, _ := call[[]VoteResponse](t, srv, http.MethodPost, boardPath+"/votes", "owner", VoteRequest{MenuIDs: []int64{1, 2}})
	require.Equal(t, http.StatusCreated, code)

	req := allOptions()
	req.WeatherOptions = []string{"더운날"}
	code, env := call[any](t, srv, http.MethodPost, boardPath+"/recommend", "stranger", req)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, domain.KindUnauthorized, env.Code)

	code, groups := call[[]domain.CategoryGroup](t, srv, http.MethodPost, boardPath+"/recommend", "owner", req)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, groups.Data)

	code, res := call[domain.VoteResult](t, srv, http.MethodGet, boardPath+"/votes/results", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Data.Votes, 2)
	assert.Equal(t, int64(1), res.Data.Votes[0].MenuID)
	assert.Equal(t, int64(2), res.Data.Votes[1].MenuID)

	code, menus := call[[]domain.RecommendedMenu](t, srv, http.MethodGet, boardPath+"/menus", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	got := make([]int64, len(menus.Data))
	for i, m := range menus.Data {
		got[i] = m.MenuID
	}
	assert.Equal(t, []int64{1, 2, 3, 9, 12}, got)
}

func TestBoardReads_RequireMembership(t *testing.T) {
	srv := newTestServer(t)
	boardPath, team := newTeamBoard(t, srv)

	for _, path := range []string{
		boardPath + "/menus",
		boardPath + "/menus/1",
		boardPath + "/categories",
		boardPath + "/votes/results",
		boardPath + "/votes/quorum",
	} {
		code, env := call[any](t, srv, http.MethodGet, path, "stranger", nil)
		assert.Equal(t, http.StatusForbidden, code, path)
		assert.Equal(t, domain.KindUnauthorized, env.Code, path)
	}

	code, _ := call[BoardResponse](t, srv, http.MethodPost, "/api/v1/teamboards/join", "member", JoinRequest{InviteCode: team.InviteCode})
	require.Equal(t, http.StatusOK, code)

	code, _ = call[[]domain.RecommendedMenu](t, srv, http.MethodGet, boardPath+"/menus", "member", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call[domain.Quorum](t, srv, http.MethodGet, boardPath+"/votes/quorum", "member", nil)
	assert.Equal(t, http.StatusOK, code)

	// Members pass the gate but owner-only writes still refuse them.
	code, _ = call[any](t, srv, http.MethodDelete, boardPath, "member", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestVotes_EmptyList(t *testing.T) {
	srv := newTestServer(t)
	boardPath, _ := newTeamBoard(t, srv)

	code, env := call[any](t, srv, http.MethodPost, boardPath+"/votes", "owner", VoteRequest{MenuIDs: []int64{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be at least 1", env.Details["menuIds"])

	code, _ = call[[]VoteResponse](t, srv, http.MethodPost, boardPath+"/votes", "owner", VoteRequest{MenuIDs: []int64{3}})
	require.Equal(t, http.StatusCreated, code)

	code, cleared := call[[]VoteResponse](t, srv, http.MethodPut, boardPath+"/votes", "owner", ReplaceVotesRequest{MenuIDs: []int64{}})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, cleared.Data)

	code, env = call[any](t, srv, http.MethodGet, boardPath+"/votes/results", "owner", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, domain.KindNoVotesYet, env.Code)
}
