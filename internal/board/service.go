// Package board manages personal and team boards, their members and the menu
// slots users pin on team boards.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/storage"
)

const (
	inviteAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	inviteLength   = 8
)

type Service struct {
	tx        storage.Transactor
	logger    *slog.Logger
	newInvite func() (string, error)
}

func NewService(tx storage.Transactor, logger *slog.Logger) *Service {
	return &Service{
		tx:     tx,
		logger: logger,
		newInvite: func() (string, error) {
			return gonanoid.Generate(inviteAlphabet, inviteLength)
		},
	}
}

// ---------- Users ----------

// EnsureUser records the user on first sight and refreshes the display name.
func (s *Service) EnsureUser(ctx context.Context, providerID, name string) (*domain.User, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, domain.ErrValidation.WithDetails(map[string]string{"providerId": "is required"})
	}
	var u *domain.User
	err := s.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		var err error
		u, err = r.UpsertUser(ctx, providerID, strings.TrimSpace(name))
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
	return u, err
}

// ---------- Boards ----------

func (s *Service) CreatePersonal(ctx context.Context, userID int64, name string) (*domain.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrValidation.WithDetails(map[string]string{"name": "is required"})
	}
	return s.create(ctx, domain.Board{Kind: domain.BoardPersonal, OwnerUserID: userID, Name: name})
}

func (s *Service) CreateTeam(ctx context.Context, userID int64, teamName string, membersNum int, boardName string) (*domain.Board, error) {
	teamName, boardName = strings.TrimSpace(teamName), strings.TrimSpace(boardName)
	details := map[string]string{}
	if teamName == "" {
		details["teamName"] = "is required"
	}
	if boardName == "" {
		details["teamBoardName"] = "is required"
	}
	if membersNum < 1 {
		details["teamMembersNum"] = "must be at least 1"
	}
	if len(details) > 0 {
		return nil, domain.ErrValidation.WithDetails(details)
	}

	code, err := s.newInvite()
	if err != nil {
		return nil, fmt.Errorf("generate invite code: %w", err)
	}
	return s.create(ctx, domain.Board{
		Kind:        domain.BoardTeam,
		OwnerUserID: userID,
		Name:        boardName,
		TeamName:    teamName,
		MembersNum:  membersNum,
		InviteCode:  code,
	})
}

func (s *Service) create(ctx context.Context, b domain.Board) (*domain.Board, error) {
	var out *domain.Board
	err := s.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		if _, err := r.GetUser(ctx, b.OwnerUserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}
		id, err := r.CreateBoard(ctx, b)
		if err != nil {
			return fmt.Errorf("create board: %w", err)
		}
		out, err = r.GetBoard(ctx, id)
		if err != nil {
			return fmt.Errorf("reload board: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("board created", "board_id", out.ID, "kind", out.Kind, "owner_id", out.OwnerUserID)
	return out, nil
}

func (s *Service) Get(ctx context.Context, boardID int64) (*domain.Board, error) {
	var b *domain.Board
	err := s.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		var err error
		b, err = getBoard(ctx, r, boardID)
		return err
	})
	return b, err
}

// Access returns the board when the user owns it or joined it.
func (s *Service) Access(ctx context.Context, userID, boardID int64) (*domain.Board, error) {
	var b *domain.Board
	err := s.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		var err error
		b, err = memberBoard(ctx, r, userID, boardID)
		return err
	})
	return b, err
}

// List returns boards the user owns or joined, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]domain.Board, error) {
	var boards []domain.Board
	err := s.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		var err error
		boards, err = r.ListBoardsForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list boards: %w", err)
		}
		return nil
	})
	return boards, err
}

func (s *Service) Rename(ctx context.Context, userID, boardID int64, name string) (*domain.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrValidation.WithDetails(map[string]string{"name": "is required"})
	}
	var b *domain.Board
	err := s.tx.WithinTx(ctx, storage.BoardLock(boardID), func(r storage.Repository) error {
		var err error
		if b, err = ownedBoard(ctx, r, userID, boardID); err != nil {
			return err
		}
		if err := r.RenameBoard(ctx, boardID, name); err != nil {
			return fmt.Errorf("rename board: %w", err)
		}
		b.Name = name
		return nil
	})
	return b, err
}

// Delete removes the board with its menus, members and votes.
func (s *Service) Delete(ctx context.Context, userID, boardID int64) error {
	err := s.tx.WithinTx(ctx, storage.BoardLock(boardID), func(r storage.Repository) error {
		if _, err := ownedBoard(ctx, r, userID, boardID); err != nil {
			return err
		}
		deleted, err := r.DeleteBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		if !deleted {
			return domain.ErrBoardNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("board deleted", "board_id", boardID, "user_id", userID)
	return nil
}

// Join adds the user to the team board behind an invite code. Joining twice is
// a no-op.
func (s *Service) Join(ctx context.Context, userID int64, code string) (*domain.Board, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrBoardNotFound
	}
	var b *domain.Board
	err := s.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		var err error
		b, err = r.GetBoardByInvite(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrBoardNotFound
		}
		if err != nil {
			return fmt.Errorf("find board by invite: %w", err)
		}
		if b.OwnerUserID == userID {
			return nil
		}
		if err := r.AddMember(ctx, b.ID, userID); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("board joined", "board_id", b.ID, "user_id", userID)
	return b, nil
}

// AddMenus pins menus on a team board as new slots, one per menu id.
func (s *Service) AddMenus(ctx context.Context, userID, boardID int64, menuIDs []int64) ([]domain.BoardMenuSlot, error) {
	var slots []domain.BoardMenuSlot
	err := s.tx.WithinTx(ctx, storage.BoardLock(boardID), func(r storage.Repository) error {
		if _, err := memberBoard(ctx, r, userID, boardID); err != nil {
			return err
		}

		for _, menuID := range menuIDs {
			if _, err := r.GetMenu(ctx, menuID); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return domain.ErrMenuNotFound
				}
				return fmt.Errorf("get menu: %w", err)
			}
			id, err := r.AddBoardMenu(ctx, boardID, menuID, userID)
			if err != nil {
				return fmt.Errorf("add board menu: %w", err)
			}
			slots = append(slots, domain.BoardMenuSlot{ID: id, BoardID: boardID, MenuID: menuID, UserID: userID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func getBoard(ctx context.Context, r storage.Repository, boardID int64) (*domain.Board, error) {
	b, err := r.GetBoard(ctx, boardID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}

func ownedBoard(ctx context.Context, r storage.Repository, userID, boardID int64) (*domain.Board, error) {
	b, err := getBoard(ctx, r, boardID)
	if err != nil {
		return nil, err
	}
	if b.OwnerUserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return b, nil
}

func memberBoard(ctx context.Context, r storage.Repository, userID, boardID int64) (*domain.Board, error) {
	b, err := getBoard(ctx, r, boardID)
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
