// Package vote records menu votes on boards and aggregates them into results.
package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/storage"
)

// MaxVotesPerUser caps the votes one user may cast on one board.
const MaxVotesPerUser = 3

type Ledger struct {
	tx     storage.Transactor
	logger *slog.Logger
	now    func() time.Time
}

func NewLedger(tx storage.Transactor, logger *slog.Logger) *Ledger {
	return &Ledger{tx: tx, logger: logger, now: storage.Now}
}

// CastVotes records a first-time ballot. Menus are processed in input order
// and the first failure aborts the batch; the transaction then discards the
// votes already written by this call.
func (l *Ledger) CastVotes(ctx context.Context, userID, boardID int64, menuIDs []int64) ([]domain.Vote, error) {
	var votes []domain.Vote
	err := l.tx.WithinTx(ctx, storage.VoterLock(boardID, userID), func(r storage.Repository) error {
		if err := enter(ctx, r, boardID, userID); err != nil {
			return err
		}
		var err error
		votes, err = l.castAll(ctx, r, userID, boardID, menuIDs, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("votes cast", "board_id", boardID, "user_id", userID, "count", len(votes))
	return votes, nil
}

// ReplaceVotes drops every vote of the user on the board and casts menuIDs
// instead. The per-user cap is not applied here.
func (l *Ledger) ReplaceVotes(ctx context.Context, userID, boardID int64, menuIDs []int64) ([]domain.Vote, error) {
	var votes []domain.Vote
	var removed int64
	err := l.tx.WithinTx(ctx, storage.VoterLock(boardID, userID), func(r storage.Repository) error {
		if err := enter(ctx, r, boardID, userID); err != nil {
			return err
		}
		var err error
		removed, err = r.DeleteUserVotes(ctx, boardID, userID)
		if err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		votes, err = l.castAll(ctx, r, userID, boardID, menuIDs, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("votes replaced", "board_id", boardID, "user_id", userID, "removed", removed, "count", len(votes))
	return votes, nil
}

// DeleteVote removes one vote. Callers check ownership.
func (l *Ledger) DeleteVote(ctx context.Context, voteID int64) error {
	err := l.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		deleted, err := r.DeleteVote(ctx, voteID)
		if err != nil {
			return fmt.Errorf("delete vote: %w", err)
		}
		if !deleted {
			return domain.ErrVoteNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Debug("vote deleted", "vote_id", voteID)
	return nil
}

// GetVote returns one vote, for callers that need to check ownership first.
func (l *Ledger) GetVote(ctx context.Context, voteID int64) (*domain.Vote, error) {
	var v *domain.Vote
	err := l.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		var err error
		v, err = r.GetVote(ctx, voteID)
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrVoteNotFound
		}
		if err != nil {
			return fmt.Errorf("get vote: %w", err)
		}
		return nil
	})
	return v, err
}

func (l *Ledger) castAll(ctx context.Context, r storage.Repository, userID, boardID int64, menuIDs []int64, enforceCap bool) ([]domain.Vote, error) {
	votes := make([]domain.Vote, 0, len(menuIDs))
	for _, menuID := range menuIDs {
		v, err := l.castOne(ctx, r, userID, boardID, menuID, enforceCap)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, nil
}

func (l *Ledger) castOne(ctx context.Context, r storage.Repository, userID, boardID, menuID int64, enforceCap bool) (domain.Vote, error) {
	menu, err := r.GetMenu(ctx, menuID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Vote{}, domain.ErrMenuNotFound
	}
	if err != nil {
		return domain.Vote{}, fmt.Errorf("get menu: %w", err)
	}

	if enforceCap {
		n, err := r.CountUserVotes(ctx, boardID, userID)
		if err != nil {
			return domain.Vote{}, fmt.Errorf("count votes: %w", err)
		}
		if n >= MaxVotesPerUser {
			return domain.Vote{}, domain.ErrVoteLimitExceeded
		}
	}

	dup, err := r.HasUserVote(ctx, boardID, userID, menuID)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		return domain.Vote{}, domain.ErrDuplicateVote
	}

	slotID, err := r.CanonicalSlot(ctx, boardID, menuID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Vote{}, domain.ErrSlotNotFound
	}
	if err != nil {
		return domain.Vote{}, fmt.Errorf("find slot: %w", err)
	}

	v := domain.Vote{
		BoardID:   boardID,
		UserID:    userID,
		MenuID:    menuID,
		SlotID:    slotID,
		MenuName:  menu.Name,
		CreatedAt: l.now(),
	}
	v.ID, err = r.InsertVote(ctx, v)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("insert vote: %w", err)
	}
	return v, nil
}

// enter authorizes the voter and share-locks the board's selection until the
// ballot commits.
func enter(ctx context.Context, r storage.Repository, boardID, userID int64) error {
	if _, err := authorize(ctx, r, boardID, userID); err != nil {
		return err
	}
	if err := r.ShareLock(ctx, storage.BoardLock(boardID)); err != nil {
		return err
	}
	return nil
}

// authorize admits the board creator and recorded members.
func authorize(ctx context.Context, r storage.Repository, boardID, userID int64) (*domain.Board, error) {
	b, err := loadBoard(ctx, r, boardID)
	if err != nil {
		return nil, err
	}
	ok, err := storage.HasAccess(ctx, r, b, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return b, nil
}

func loadBoard(ctx context.Context, r storage.Repository, boardID int64) (*domain.Board, error) {
	b, err := r.GetBoard(ctx, boardID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}
