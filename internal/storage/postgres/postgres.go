// Package postgres is the pgx-backed storage backend.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// InitSchema applies the embedded migrations in file name order.
func (s *Store) InitSchema(ctx context.Context) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		sqlBytes, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// WithinTx holds a transaction-scoped advisory lock on lockKey, so two
// transactions with the same key never interleave.
func (s *Store) WithinTx(ctx context.Context, lockKey string, fn func(storage.Repository) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if lockKey != "" {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return fmt.Errorf("advisory lock %q: %w", lockKey, err)
		}
	}
	if err := fn(&repo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	q querier
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// ---------- Users ----------

func (r *repo) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.ProviderID, &u.Name, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *repo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(r.q.QueryRow(ctx, `SELECT id, provider_id, name, created_at FROM users WHERE id = $1`, id))
}

func (r *repo) GetUserByProvider(ctx context.Context, providerID string) (*domain.User, error) {
	return r.scanUser(r.q.QueryRow(ctx, `SELECT id, provider_id, name, created_at FROM users WHERE provider_id = $1`, providerID))
}

func (r *repo) UpsertUser(ctx context.Context, providerID, name string) (*domain.User, error) {
	return r.scanUser(r.q.QueryRow(ctx, `
		INSERT INTO users (provider_id, name, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (provider_id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN users.name ELSE excluded.name END
		RETURNING id, provider_id, name, created_at`,
		providerID, name, storage.Now(),
	))
}

// ---------- Boards ----------

const boardColumns = `id, kind, owner_user_id, name, team_name, members_num, COALESCE(invite_code, ''), created_at`

func scanBoard(row pgx.Row) (*domain.Board, error) {
	var b domain.Board
	var kind string
	if err := row.Scan(&b.ID, &kind, &b.OwnerUserID, &b.Name, &b.TeamName, &b.MembersNum, &b.InviteCode, &b.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	b.Kind = domain.BoardKind(kind)
	return &b, nil
}

func (r *repo) GetBoard(ctx context.Context, id int64) (*domain.Board, error) {
	return scanBoard(r.q.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, id))
}

func (r *repo) GetBoardByInvite(ctx context.Context, code string) (*domain.Board, error) {
	return scanBoard(r.q.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE invite_code = $1`, code))
}

func (r *repo) CreateBoard(ctx context.Context, b domain.Board) (int64, error) {
	var invite *string
	if b.InviteCode != "" {
		invite = &b.InviteCode
	}
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO boards (kind, owner_user_id, name, team_name, members_num, invite_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		string(b.Kind), b.OwnerUserID, b.Name, b.TeamName, b.MembersNum, invite, storage.Now(),
	).Scan(&id)
	return id, err
}

func (r *repo) ListBoardsForUser(ctx context.Context, userID int64) ([]domain.Board, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+boardColumns+` FROM boards
		WHERE owner_user_id = $1
		   OR id IN (SELECT board_id FROM team_members WHERE user_id = $1)
		ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []domain.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *b)
	}
	return boards, rows.Err()
}

func (r *repo) RenameBoard(ctx context.Context, id int64, name string) error {
	tag, err := r.q.Exec(ctx, `UPDATE boards SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteBoard(ctx context.Context, id int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repo) IsMember(ctx context.Context, boardID, userID int64) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM team_members WHERE board_id = $1 AND user_id = $2)`, boardID, userID).Scan(&ok)
	return ok, err
}

func (r *repo) AddMember(ctx context.Context, boardID, userID int64) error {
	_, err := r.q.Exec(ctx, `INSERT INTO team_members (board_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, boardID, userID)
	return err
}

// ---------- Catalog ----------

const menuColumns = `m.id, m.name, m.image_url, m.category, m.taste, m.carb, m.weather, m.tags`

func scanMenu(row pgx.Row) (*domain.MenuItem, error) {
	var m domain.MenuItem
	var category, taste, carb, weather, tags string
	if err := row.Scan(&m.ID, &m.Name, &m.ImageURL, &category, &taste, &carb, &weather, &tags); err != nil {
		return nil, notFound(err)
	}
	m.Category = domain.Category(category)
	m.Taste = storage.SplitLabels(taste)
	m.Carb = storage.SplitLabels(carb)
	m.Weather = storage.SplitLabels(weather)
	m.Tags = storage.SplitLabels(tags)
	return &m, nil
}

func (r *repo) queryMenus(ctx context.Context, query string, args ...any) ([]domain.MenuItem, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []domain.MenuItem
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, *m)
	}
	return menus, rows.Err()
}

func (r *repo) ListMenus(ctx context.Context) ([]domain.MenuItem, error) {
	return r.queryMenus(ctx, `SELECT `+menuColumns+` FROM menus m ORDER BY m.id`)
}

func (r *repo) GetMenu(ctx context.Context, id int64) (*domain.MenuItem, error) {
	return scanMenu(r.q.QueryRow(ctx, `SELECT `+menuColumns+` FROM menus m WHERE m.id = $1`, id))
}

// ---------- Board menus ----------

func (r *repo) ReplaceBoardMenus(ctx context.Context, boardID int64, menuIDs []int64) error {
	_, err := r.q.Exec(ctx, `
		DELETE FROM board_menus bm
		WHERE bm.board_id = $1
		  AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.board_menu_id = bm.id)`,
		boardID,
	)
	if err != nil {
		return err
	}
	if len(menuIDs) == 0 {
		return nil
	}
	// unnest WITH ORDINALITY keeps slot ids in input order
	_, err = r.q.Exec(ctx, `
		INSERT INTO board_menus (board_id, menu_id)
		SELECT $1, t.menu_id FROM unnest($2::bigint[]) WITH ORDINALITY AS t(menu_id, ord)
		WHERE NOT EXISTS (SELECT 1 FROM board_menus bm WHERE bm.board_id = $1 AND bm.menu_id = t.menu_id)
		ORDER BY t.ord`,
		boardID, menuIDs,
	)
	return err
}

func (r *repo) AddBoardMenu(ctx context.Context, boardID, menuID, userID int64) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO board_menus (board_id, menu_id, user_id) VALUES ($1, $2, $3) RETURNING id`, boardID, menuID, userID).Scan(&id)
	return id, err
}

func (r *repo) ListBoardMenus(ctx context.Context, boardID int64) ([]domain.MenuItem, error) {
	return r.queryMenus(ctx, `
		SELECT `+menuColumns+`
		FROM board_menus bm
		JOIN menus m ON m.id = bm.menu_id
		WHERE bm.board_id = $1
		ORDER BY bm.id`,
		boardID,
	)
}

func (r *repo) CanonicalSlot(ctx context.Context, boardID, menuID int64) (int64, error) {
	var id *int64
	err := r.q.QueryRow(ctx, `SELECT MIN(id) FROM board_menus WHERE board_id = $1 AND menu_id = $2`, boardID, menuID).Scan(&id)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, storage.ErrNotFound
	}
	return *id, nil
}

// ---------- Votes ----------

func (r *repo) CountUserVotes(ctx context.Context, boardID, userID int64) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM votes WHERE board_id = $1 AND user_id = $2`, boardID, userID).Scan(&n)
	return n, err
}

func (r *repo) HasUserVote(ctx context.Context, boardID, userID, menuID int64) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM votes WHERE board_id = $1 AND user_id = $2 AND menu_id = $3)`,
		boardID, userID, menuID,
	).Scan(&ok)
	return ok, err
}

func (r *repo) InsertVote(ctx context.Context, v domain.Vote) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO votes (board_id, user_id, menu_id, board_menu_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		v.BoardID, v.UserID, v.MenuID, v.SlotID, v.CreatedAt,
	).Scan(&id)
	return id, err
}

func (r *repo) DeleteUserVotes(ctx context.Context, boardID, userID int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM votes WHERE board_id = $1 AND user_id = $2`, boardID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const voteColumns = `v.id, v.board_id, v.user_id, v.menu_id, v.board_menu_id, m.name, v.created_at`

func scanVote(row pgx.Row) (*domain.Vote, error) {
	var v domain.Vote
	var created time.Time
	if err := row.Scan(&v.ID, &v.BoardID, &v.UserID, &v.MenuID, &v.SlotID, &v.MenuName, &created); err != nil {
		return nil, notFound(err)
	}
	v.CreatedAt = created.UTC()
	return &v, nil
}

func (r *repo) GetVote(ctx context.Context, id int64) (*domain.Vote, error) {
	return scanVote(r.q.QueryRow(ctx, `
		SELECT `+voteColumns+` FROM votes v JOIN menus m ON m.id = v.menu_id WHERE v.id = $1`, id))
}

func (r *repo) DeleteVote(ctx context.Context, id int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM votes WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repo) ListBoardVotes(ctx context.Context, boardID int64) ([]domain.Vote, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+voteColumns+`
		FROM votes v
		JOIN menus m ON m.id = v.menu_id
		WHERE v.board_id = $1
		ORDER BY v.id`,
		boardID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, *v)
	}
	return votes, rows.Err()
}

func (r *repo) CountDistinctVoters(ctx context.Context, boardID int64) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(DISTINCT user_id) FROM votes WHERE board_id = $1`, boardID).Scan(&n)
	return n, err
}

// ---------- Locks ----------

func (r *repo) ShareLock(ctx context.Context, key string) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock_shared(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("shared advisory lock %q: %w", key, err)
	}
	return nil
}
