// Package storage declares the persistence contract shared by the SQLite and
// Postgres backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Repository is the read/write view of one transaction.
type Repository interface {
	// ---------- Users ----------
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByProvider(ctx context.Context, providerID string) (*domain.User, error)
	UpsertUser(ctx context.Context, providerID, name string) (*domain.User, error)

	// ---------- Boards ----------
	GetBoard(ctx context.Context, id int64) (*domain.Board, error)
	GetBoardByInvite(ctx context.Context, code string) (*domain.Board, error)
	CreateBoard(ctx context.Context, b domain.Board) (int64, error)
	ListBoardsForUser(ctx context.Context, userID int64) ([]domain.Board, error)
	RenameBoard(ctx context.Context, id int64, name string) error
	DeleteBoard(ctx context.Context, id int64) (bool, error)
	IsMember(ctx context.Context, boardID, userID int64) (bool, error)
	AddMember(ctx context.Context, boardID, userID int64) error

	// ---------- Catalog ----------
	ListMenus(ctx context.Context) ([]domain.MenuItem, error)
	GetMenu(ctx context.Context, id int64) (*domain.MenuItem, error)

	// ---------- Board menus ----------
	// ReplaceBoardMenus drops the board's slots that hold no votes and appends
	// one slot per menu id, in order, for menus the board no longer shows.
	ReplaceBoardMenus(ctx context.Context, boardID int64, menuIDs []int64) error
	AddBoardMenu(ctx context.Context, boardID, menuID, userID int64) (int64, error)
	ListBoardMenus(ctx context.Context, boardID int64) ([]domain.MenuItem, error)
	CanonicalSlot(ctx context.Context, boardID, menuID int64) (int64, error)

	// ---------- Votes ----------
	CountUserVotes(ctx context.Context, boardID, userID int64) (int64, error)
	HasUserVote(ctx context.Context, boardID, userID, menuID int64) (bool, error)
	InsertVote(ctx context.Context, v domain.Vote) (int64, error)
	DeleteUserVotes(ctx context.Context, boardID, userID int64) (int64, error)
	GetVote(ctx context.Context, id int64) (*domain.Vote, error)
	DeleteVote(ctx context.Context, id int64) (bool, error)
	ListBoardVotes(ctx context.Context, boardID int64) ([]domain.Vote, error)
	CountDistinctVoters(ctx context.Context, boardID int64) (int64, error)

	// ---------- Locks ----------
	// ShareLock holds key in shared mode until the transaction ends. It waits
	// for, and blocks, a transaction that passed the same key to WithinTx.
	ShareLock(ctx context.Context, key string) error
}

// Transactor runs fn inside one transaction. When lockKey is not empty the
// backend serializes every transaction holding the same key.
type Transactor interface {
	WithinTx(ctx context.Context, lockKey string, fn func(Repository) error) error
}

// Store is what the process wires into services.
type Store interface {
	Transactor
	InitSchema(ctx context.Context) error
	Close() error
}

// VoterLock guards the cap and duplicate checks of one user on one board.
func VoterLock(boardID, userID int64) string {
	return fmt.Sprintf("vote:%d:%d", boardID, userID)
}

// BoardLock guards the menu selection of a board.
func BoardLock(boardID int64) string {
	return fmt.Sprintf("board:%d", boardID)
}

// HasAccess reports whether the user owns the board or joined it.
func HasAccess(ctx context.Context, r Repository, b *domain.Board, userID int64) (bool, error) {
	if b.OwnerUserID == userID {
		return true, nil
	}
	ok, err := r.IsMember(ctx, b.ID, userID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// Now is the clock used for created_at columns.
var Now = func() time.Time { return time.Now().UTC() }

// SplitLabels decodes a comma-separated label column.
func SplitLabels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
