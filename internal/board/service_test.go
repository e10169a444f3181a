package board

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/logger"
	"github.com/maaaruch/shallweeat-bot/internal/storage/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))

	return NewService(s, logger.Discard())
}

func mustUser(t *testing.T, svc *Service, providerID string) *domain.User {
	t.Helper()
	u, err := svc.EnsureUser(context.Background(), providerID, providerID)
	require.NoError(t, err)
	return u
}

func TestEnsureUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.EnsureUser(ctx, "telegram:7", "  Lee  ")
	require.NoError(t, err)
	assert.Equal(t, "Lee", a.Name)

	b, err := svc.EnsureUser(ctx, "telegram:7", "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Lee", b.Name, "blank names keep the stored one")

	_, err = svc.EnsureUser(ctx, " ", "x")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateBoards(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	u := mustUser(t, svc, "owner")

	p, err := svc.CreatePersonal(ctx, u.ID, " 혼밥 ")
	require.NoError(t, err)
	assert.Equal(t, domain.BoardPersonal, p.Kind)
	assert.Equal(t, "혼밥", p.Name)
	assert.Empty(t, p.InviteCode)

	team, err := svc.CreateTeam(ctx, u.ID, "개발팀", 5, "금요일 점심")
	require.NoError(t, err)
	assert.Equal(t, domain.BoardTeam, team.Kind)
	assert.Equal(t, 5, team.MembersNum)
	assert.Len(t, team.InviteCode, inviteLength)

	boards, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, boards, 2)

	_, err = svc.CreatePersonal(ctx, 9999, "x")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCreateTeam_Validation(t *testing.T) {
	svc := newTestService(t)
	u := mustUser(t, svc, "owner")

	_, err := svc.CreateTeam(context.Background(), u.ID, "", 0, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, map[string]string{
		"teamName":       "is required",
		"teamBoardName":  "is required",
		"teamMembersNum": "must be at least 1",
	}, derr.Details)

	_, err = svc.CreatePersonal(context.Background(), u.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestJoin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := mustUser(t, svc, "owner")
	guest := mustUser(t, svc, "guest")

	svc.newInvite = func() (string, error) { return "ABCD2345", nil }
	team, err := svc.CreateTeam(ctx, owner.ID, "개발팀", 3, "점심")
	require.NoError(t, err)

	b, err := svc.Join(ctx, guest.ID, " abcd2345 ")
	require.NoError(t, err)
	assert.Equal(t, team.ID, b.ID)

	_, err = svc.Join(ctx, guest.ID, "ABCD2345")
	require.NoError(t, err, "joining twice is a no-op")

	_, err = svc.Join(ctx, owner.ID, "ABCD2345")
	require.NoError(t, err)

	boards, err := svc.List(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, team.ID, boards[0].ID)

	_, err = svc.Join(ctx, guest.ID, "NOPE")
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
	_, err = svc.Join(ctx, guest.ID, "")
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestRenameAndDelete_OwnerOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := mustUser(t, svc, "owner")
	other := mustUser(t, svc, "other")

	b, err := svc.CreatePersonal(ctx, owner.ID, "old")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, other.ID, b.ID, "new")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	renamed, err := svc.Rename(ctx, owner.ID, b.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name)

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)

	assert.ErrorIs(t, svc.Delete(ctx, other.ID, b.ID), domain.ErrUnauthorized)
	require.NoError(t, svc.Delete(ctx, owner.ID, b.ID))
	assert.ErrorIs(t, svc.Delete(ctx, owner.ID, b.ID), domain.ErrBoardNotFound)

	_, err = svc.Get(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestAddMenus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := mustUser(t, svc, "owner")
	member := mustUser(t, svc, "member")
	outsider := mustUser(t, svc, "outsider")

	team, err := svc.CreateTeam(ctx, owner.ID, "개발팀", 3, "점심")
	require.NoError(t, err)
	_, err = svc.Join(ctx, member.ID, team.InviteCode)
	require.NoError(t, err)

	slots, err := svc.AddMenus(ctx, member.ID, team.ID, []int64{1, 1, 2})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Less(t, slots[0].ID, slots[1].ID)
	assert.Equal(t, member.ID, slots[0].UserID)

	_, err = svc.AddMenus(ctx, outsider.ID, team.ID, []int64{3})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.AddMenus(ctx, owner.ID, team.ID, []int64{3, 999})
	assert.ErrorIs(t, err, domain.ErrMenuNotFound)

	_, err = svc.AddMenus(ctx, owner.ID, 9999, []int64{3})
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestAccess(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := mustUser(t, svc, "owner")
	member := mustUser(t, svc, "member")
	stranger := mustUser(t, svc, "stranger")

	team, err := svc.CreateTeam(ctx, owner.ID, "개발팀", 3, "점심")
	require.NoError(t, err)
	_, err = svc.Join(ctx, member.ID, team.InviteCode)
	require.NoError(t, err)

	for _, u := range []*domain.User{owner, member} {
		b, err := svc.Access(ctx, u.ID, team.ID)
		require.NoError(t, err)
		assert.Equal(t, team.ID, b.ID)
	}

	_, err = svc.Access(ctx, stranger.ID, team.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Access(ctx, owner.ID, 999)
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}
