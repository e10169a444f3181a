package vote

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/storage"
)

const voteDateLayout = "2006-01-02"

type Tally struct {
	tx storage.Transactor
}

func NewTally(tx storage.Transactor) *Tally {
	return &Tally{tx: tx}
}

// Results ranks the board's menus by votes for the requesting user.
func (t *Tally) Results(ctx context.Context, boardID, userID int64) (*domain.VoteResult, error) {
	var res domain.VoteResult
	err := t.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		b, err := loadBoard(ctx, r, boardID)
		if err != nil {
			return err
		}
		if _, err := r.GetUser(ctx, userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}

		votes, err := r.ListBoardVotes(ctx, boardID)
		if err != nil {
			return fmt.Errorf("list votes: %w", err)
		}
		if len(votes) == 0 {
			return domain.ErrNoVotesYet
		}

		res = domain.VoteResult{
			TeamName: b.TeamName,
			Votes:    Rank(votes),
			VoteDate: votes[0].CreatedAt.Format(voteDateLayout),
			HasVoted: slices.ContainsFunc(votes, func(v domain.Vote) bool { return v.UserID == userID }),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Quorum compares distinct voters with the board's member count.
func (t *Tally) Quorum(ctx context.Context, boardID int64) (*domain.Quorum, error) {
	var q domain.Quorum
	err := t.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		b, err := loadBoard(ctx, r, boardID)
		if err != nil {
			return err
		}
		n, err := r.CountDistinctVoters(ctx, boardID)
		if err != nil {
			return fmt.Errorf("count voters: %w", err)
		}
		q = domain.Quorum{VotedUserCount: n, TeamMembersNum: b.MembersNum}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Rank counts votes per menu, most votes first and lower menu id on ties.
func Rank(votes []domain.Vote) []domain.MenuCount {
	idx := make(map[int64]int)
	var counts []domain.MenuCount
	for _, v := range votes {
		i, ok := idx[v.MenuID]
		if !ok {
			i = len(counts)
			idx[v.MenuID] = i
			counts = append(counts, domain.MenuCount{MenuID: v.MenuID, MenuName: v.MenuName})
		}
		counts[i].Count++
	}

	slices.SortFunc(counts, func(a, b domain.MenuCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.MenuID, b.MenuID)
	})
	return counts
}
