package app

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/shallweeat-bot/internal/board"
	"github.com/maaaruch/shallweeat-bot/internal/logger"
	"github.com/maaaruch/shallweeat-bot/internal/recommend"
	"github.com/maaaruch/shallweeat-bot/internal/session"
	"github.com/maaaruch/shallweeat-bot/internal/storage/sqlite"
	"github.com/maaaruch/shallweeat-bot/internal/vote"
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func newTestApp(t *testing.T) (*App, *fakeSender) {
	t.Helper()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))

	log := logger.Discard()
	out := &fakeSender{}
	return &App{
		out: out,
		svc: Services{
			Boards:    board.NewService(s, log),
			Recommend: recommend.NewEngine(s, log),
			Ledger:    vote.NewLedger(s, log),
			Tally:     vote.NewTally(s),
		},
		sessions: session.NewManager(),
		logger:   log,
	}, out
}

func command(userID int64, text string) *tgbotapi.Message {
	cmd, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, FirstName: "user"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func (a *App) run(t *testing.T, out *fakeSender, userID int64, text string) string {
	t.Helper()
	a.handleMessage(context.Background(), command(userID, text))
	return out.last(t).Text
}

func TestBot_TeamVoteFlow(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	const owner, guest = 100, 200

	reply := a.run(t, out, owner, "/new_team 개발팀 | 3 | 금요일 점심")
	require.Contains(t, reply, "팀 메뉴판을 만들었어요")

	ownerUser, err := a.svc.Boards.EnsureUser(ctx, providerID(owner), "")
	require.NoError(t, err)
	boards, err := a.svc.Boards.List(ctx, ownerUser.ID)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	team := boards[0]
	assert.Contains(t, reply, team.InviteCode)

	reply = a.run(t, out, owner, "/recommend 매운맛 | 면")
	assert.Contains(t, reply, "[중식]\n5. 마라탕")
	kb, ok := out.last(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)

	reply = a.run(t, out, guest, "/vote 5")
	assert.Contains(t, reply, "먼저 메뉴판을 선택")

	reply = a.run(t, out, guest, "/join "+strings.ToLower(team.InviteCode))
	assert.Contains(t, reply, "참여했어요")

	reply = a.run(t, out, guest, "/vote 5")
	assert.Contains(t, reply, "투표 완료")
	assert.Contains(t, reply, "마라탕")

	reply = a.run(t, out, guest, "/vote 5")
	assert.Equal(t, "이미 이 메뉴에 투표했어요.", reply)

	reply = a.run(t, out, guest, "/vote 1")
	assert.Equal(t, "해당 메뉴가 메뉴판에 없어요.", reply)

	// A button press votes as the presser.
	a.handleCallback(ctx, &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: owner},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: owner}},
		Data:    *kb.InlineKeyboard[0][0].CallbackData,
	})
	assert.Equal(t, 1, out.requests)
	assert.Contains(t, out.last(t).Text, "투표 완료")

	reply = a.run(t, out, guest, "/results")
	assert.Contains(t, reply, "1위. 마라탕 – 2표")

	reply = a.run(t, out, owner, "/quorum")
	assert.Equal(t, "투표 참여: 2 / 3명", reply)

	// A new recommendation leaves the ballots alone.
	reply = a.run(t, out, owner, "/recommend | | 더운날")
	assert.Contains(t, reply, "냉면")
	reply = a.run(t, out, guest, "/results")
	assert.Contains(t, reply, "1위. 마라탕 – 2표")

	reply = a.run(t, out, guest, "/revote")
	assert.Contains(t, reply, "투표한 메뉴가 없어요")

	reply = a.run(t, out, guest, "/results")
	assert.Contains(t, reply, "1위. 마라탕 – 1표")
	assert.Contains(t, reply, "아직 투표하지 않았어요")
}

func TestBot_VoteCapAndUnvote(t *testing.T) {
	a, out := newTestApp(t)
	const user = 1

	a.run(t, out, user, "/new_board 점심")
	a.run(t, out, user, "/recommend")

	reply := a.run(t, out, user, "/vote 1, 2, 3")
	require.Contains(t, reply, "투표 완료")

	reply = a.run(t, out, user, "/vote 4")
	assert.Equal(t, "한 사람당 최대 3개의 메뉴에만 투표할 수 있어요.", reply)

	reply = a.run(t, out, user, "/vote abc")
	assert.Contains(t, reply, "형식: /vote")

	res, err := a.svc.Tally.Results(context.Background(), a.sessions.Get(user).ActiveBoardID, 1)
	require.NoError(t, err)
	require.Len(t, res.Votes, 3)

	reply = a.run(t, out, 2, "/unvote 1")
	assert.Equal(t, "내 투표만 취소할 수 있어요.", reply)

	reply = a.run(t, out, user, "/unvote 1")
	assert.Equal(t, "'김치찌개' 투표를 취소했어요.", reply)

	reply = a.run(t, out, user, "/unvote 1")
	assert.Equal(t, "투표를 찾을 수 없어요.", reply)
}

func TestBot_BoardsSelectAndDelete(t *testing.T) {
	a, out := newTestApp(t)
	const user = 7

	reply := a.run(t, out, user, "/boards")
	assert.Contains(t, reply, "아직 메뉴판이 없어요")

	a.run(t, out, user, "/new_board 점심")
	a.run(t, out, user, "/new_board 야식")
	active := a.sessions.Get(user).ActiveBoardID

	reply = a.run(t, out, user, "/boards")
	assert.Contains(t, reply, "👉")
	assert.Contains(t, reply, "점심")

	reply = a.run(t, out, user, "/board 999")
	assert.Contains(t, reply, "해당 ID가 없어요")

	reply = a.run(t, out, 8, "/delete_board "+strconv.FormatInt(active, 10))
	assert.Equal(t, "이 메뉴판에 대한 권한이 없어요.", reply)

	reply = a.run(t, out, user, "/delete_board "+strconv.FormatInt(active, 10))
	assert.Contains(t, reply, "삭제했어요")
	assert.Zero(t, a.sessions.Get(user).ActiveBoardID)

	reply = a.run(t, out, user, "/menu")
	assert.Contains(t, reply, "먼저 메뉴판을 선택")
}

func TestBot_GuestAndHelp(t *testing.T) {
	a, out := newTestApp(t)

	reply := a.run(t, out, 1, "/guest | | 더운날")
	assert.Contains(t, reply, "냉면")
	assert.Contains(t, reply, "타코")
	assert.NotContains(t, reply, "김치찌개")

	reply = a.run(t, out, 1, "/help")
	assert.Contains(t, reply, "/recommend")

	reply = a.run(t, out, 1, "/dance")
	assert.Contains(t, reply, "모르는 명령어")

	reply = a.run(t, out, 1, "/new_team 개발팀 | 많이 | 점심")
	assert.Equal(t, "인원은 숫자로 적어 주세요.", reply)
}
