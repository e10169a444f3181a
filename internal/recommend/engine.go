// Package recommend filters the menu catalog by tag dimensions and keeps the
// resulting selection of each board.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/storage"
)

// Filter keeps the menus that pass every dimension, in catalog order.
func Filter(menus []domain.MenuItem, opts Options) []domain.MenuItem {
	out := make([]domain.MenuItem, 0, len(menus))
	for _, m := range menus {
		if !opts.Taste.Matches(m.Taste) ||
			!opts.Carb.Matches(m.Carb) ||
			!opts.Weather.Matches(m.Weather) ||
			!opts.Category.Matches([]string{string(m.Category)}) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Categorize groups menus by category in domain.CategoryOrder. Empty groups
// and categories outside that order are dropped.
func Categorize(menus []domain.MenuItem) []domain.CategoryGroup {
	buckets := make(map[domain.Category][]domain.MenuSummary, len(domain.CategoryOrder))
	for _, m := range menus {
		buckets[m.Category] = append(buckets[m.Category], summarize(m))
	}

	groups := make([]domain.CategoryGroup, 0, len(domain.CategoryOrder))
	for _, c := range domain.CategoryOrder {
		items, ok := buckets[c]
		if !ok {
			continue
		}
		groups = append(groups, domain.CategoryGroup{Category: c, Items: items})
	}
	return groups
}

func summarize(m domain.MenuItem) domain.MenuSummary {
	return domain.MenuSummary{
		MenuID:   m.ID,
		ImageURL: m.ImageURL,
		MenuName: m.Name,
		Tags:     tagsOf(m),
	}
}

func toRecommended(m domain.MenuItem) domain.RecommendedMenu {
	return domain.RecommendedMenu{
		MenuID:   m.ID,
		ImageURL: m.ImageURL,
		MenuName: m.Name,
		Category: m.Category,
		Tags:     tagsOf(m),
	}
}

func tagsOf(m domain.MenuItem) []string {
	if m.Tags == nil {
		return []string{}
	}
	return m.Tags
}

type Engine struct {
	tx     storage.Transactor
	logger *slog.Logger
}

func NewEngine(tx storage.Transactor, logger *slog.Logger) *Engine {
	return &Engine{tx: tx, logger: logger}
}

// Recommend filters the catalog and replaces the board's selection with the
// result in the same transaction. Only the owner or a member may do so, and
// slots that already hold votes stay on the board.
func (e *Engine) Recommend(ctx context.Context, userID, boardID int64, opts Options) ([]domain.CategoryGroup, error) {
	var filtered []domain.MenuItem
	err := e.tx.WithinTx(ctx, storage.BoardLock(boardID), func(r storage.Repository) error {
		b, err := loadBoard(ctx, r, boardID)
		if err != nil {
			return err
		}
		ok, err := storage.HasAccess(ctx, r, b, userID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrUnauthorized
		}

		menus, err := r.ListMenus(ctx)
		if err != nil {
			return fmt.Errorf("list menus: %w", err)
		}
		filtered = Filter(menus, opts)

		ids := make([]int64, len(filtered))
		for i, m := range filtered {
			ids[i] = m.ID
		}
		if err := r.ReplaceBoardMenus(ctx, boardID, ids); err != nil {
			return fmt.Errorf("replace board menus: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("recommendation stored",
		"board_id", boardID,
		"user_id", userID,
		"taste", opts.Taste.String(),
		"carb", opts.Carb.String(),
		"weather", opts.Weather.String(),
		"category", opts.Category.String(),
		"menus", len(filtered),
	)
	return Categorize(filtered), nil
}

// RecommendTransient computes the same groups without touching any board.
func (e *Engine) RecommendTransient(ctx context.Context, opts Options) ([]domain.CategoryGroup, error) {
	var menus []domain.MenuItem
	err := e.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		var err error
		menus, err = r.ListMenus(ctx)
		if err != nil {
			return fmt.Errorf("list menus: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Categorize(Filter(menus, opts)), nil
}

// ListByBoard returns the stored selection in slot order.
func (e *Engine) ListByBoard(ctx context.Context, boardID int64) ([]domain.RecommendedMenu, error) {
	menus, err := e.boardMenus(ctx, boardID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecommendedMenu, 0, len(menus))
	for _, m := range menus {
		out = append(out, toRecommended(m))
	}
	return out, nil
}

// ListByBoardGrouped returns the stored selection grouped by category.
func (e *Engine) ListByBoardGrouped(ctx context.Context, boardID int64) ([]domain.CategoryGroup, error) {
	menus, err := e.boardMenus(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return Categorize(menus), nil
}

// MenuDetails returns one menu of the board's selection.
func (e *Engine) MenuDetails(ctx context.Context, boardID, menuID int64) (*domain.RecommendedMenu, error) {
	var out domain.RecommendedMenu
	err := e.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		if _, err := loadBoard(ctx, r, boardID); err != nil {
			return err
		}
		m, err := r.GetMenu(ctx, menuID)
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrMenuNotFound
		}
		if err != nil {
			return fmt.Errorf("get menu: %w", err)
		}
		if _, err := r.CanonicalSlot(ctx, boardID, menuID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.ErrSlotNotFound
			}
			return fmt.Errorf("find slot: %w", err)
		}
		out = toRecommended(*m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) boardMenus(ctx context.Context, boardID int64) ([]domain.MenuItem, error) {
	var menus []domain.MenuItem
	err := e.tx.WithinTx(ctx, "", func(r storage.Repository) error {
		if _, err := loadBoard(ctx, r, boardID); err != nil {
			return err
		}
		var err error
		menus, err = r.ListBoardMenus(ctx, boardID)
		if err != nil {
			return fmt.Errorf("list board menus: %w", err)
		}
		return nil
	})
	return menus, err
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
