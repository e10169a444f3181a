package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/storage"
)

//go:embed schema.sql seed.sql
var embeddedSchema embed.FS

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens the database file at path. Transactions begin IMMEDIATE, so every
// WithinTx call holds the database write lock for its whole duration.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return err
	}

	for _, name := range []string{"schema.sql", "seed.sql"} {
		b, err := embeddedSchema.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, strings.TrimSpace(string(b))); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// WithinTx ignores lockKey: the write lock taken at BEGIN already serializes
// all transactions.
func (s *Store) WithinTx(ctx context.Context, _ string, fn func(storage.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&repo{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repo struct {
	q querier
}

// ---------- Users ----------

func (r *repo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, provider_id, name, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *repo) GetUserByProvider(ctx context.Context, providerID string) (*domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, provider_id, name, created_at FROM users WHERE provider_id = ?`, providerID)
	return scanUser(row)
}

func (r *repo) UpsertUser(ctx context.Context, providerID, name string) (*domain.User, error) {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO users(provider_id, name, created_at)
VALUES (?, ?, ?)
ON CONFLICT(provider_id) DO UPDATE SET
    name = CASE WHEN excluded.name = '' THEN users.name ELSE excluded.name END
`, providerID, name, storage.Now())
	if err != nil {
		return nil, err
	}
	return r.GetUserByProvider(ctx, providerID)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.ProviderID, &u.Name, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ---------- Boards ----------

const boardColumns = `id, kind, owner_user_id, name, team_name, members_num, invite_code, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoard(row rowScanner) (*domain.Board, error) {
	var b domain.Board
	var invite sql.NullString
	if err := row.Scan(&b.ID, &b.Kind, &b.OwnerUserID, &b.Name, &b.TeamName, &b.MembersNum, &invite, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	b.InviteCode = invite.String
	return &b, nil
}

func (r *repo) GetBoard(ctx context.Context, id int64) (*domain.Board, error) {
	return scanBoard(r.q.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = ?`, id))
}

func (r *repo) GetBoardByInvite(ctx context.Context, code string) (*domain.Board, error) {
	return scanBoard(r.q.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE invite_code = ?`, code))
}

func (r *repo) CreateBoard(ctx context.Context, b domain.Board) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
INSERT INTO boards(kind, owner_user_id, name, team_name, members_num, invite_code, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, b.Kind, b.OwnerUserID, b.Name, b.TeamName, b.MembersNum, nullString(b.InviteCode), storage.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *repo) ListBoardsForUser(ctx context.Context, userID int64) ([]domain.Board, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT `+boardColumns+`
FROM boards
WHERE owner_user_id = ?
   OR id IN (SELECT board_id FROM team_members WHERE user_id = ?)
ORDER BY created_at DESC, id DESC
`, userID, userID)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boards, nil
}

func (r *repo) RenameBoard(ctx context.Context, id int64, name string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE boards SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteBoard(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *repo) IsMember(ctx context.Context, boardID, userID int64) (bool, error) {
	var cnt int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM team_members WHERE board_id = ? AND user_id = ?`, boardID, userID).Scan(&cnt)
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *repo) AddMember(ctx context.Context, boardID, userID int64) error {
	_, err := r.q.ExecContext(ctx, `INSERT OR IGNORE INTO team_members(board_id, user_id) VALUES (?, ?)`, boardID, userID)
	return err
}

// ---------- Catalog ----------

const menuColumns = `m.id, m.name, m.image_url, m.category, m.taste, m.carb, m.weather, m.tags`

func scanMenu(row rowScanner) (*domain.MenuItem, error) {
	var m domain.MenuItem
	var taste, carb, weather, tags string
	if err := row.Scan(&m.ID, &m.Name, &m.ImageURL, &m.Category, &taste, &carb, &weather, &tags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	m.Taste = storage.SplitLabels(taste)
	m.Carb = storage.SplitLabels(carb)
	m.Weather = storage.SplitLabels(weather)
	m.Tags = storage.SplitLabels(tags)
	return &m, nil
}

func (r *repo) queryMenus(ctx context.Context, query string, args ...any) ([]domain.MenuItem, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return menus, nil
}

func (r *repo) ListMenus(ctx context.Context) ([]domain.MenuItem, error) {
	return r.queryMenus(ctx, `SELECT `+menuColumns+` FROM menus m ORDER BY m.id`)
}

func (r *repo) GetMenu(ctx context.Context, id int64) (*domain.MenuItem, error) {
	return scanMenu(r.q.QueryRowContext(ctx, `SELECT `+menuColumns+` FROM menus m WHERE m.id = ?`, id))
}

// ---------- Board menus ----------

func (r *repo) ReplaceBoardMenus(ctx context.Context, boardID int64, menuIDs []int64) error {
	_, err := r.q.ExecContext(ctx, `
DELETE FROM board_menus
WHERE board_id = ?
  AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.board_menu_id = board_menus.id)
`, boardID)
	if err != nil {
		return err
	}
	for _, id := range menuIDs {
		_, err := r.q.ExecContext(ctx, `
INSERT INTO board_menus(board_id, menu_id)
SELECT ?, ?
WHERE NOT EXISTS (SELECT 1 FROM board_menus WHERE board_id = ? AND menu_id = ?)
`, boardID, id, boardID, id)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) AddBoardMenu(ctx context.Context, boardID, menuID, userID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO board_menus(board_id, menu_id, user_id) VALUES (?, ?, ?)`, boardID, menuID, userID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *repo) ListBoardMenus(ctx context.Context, boardID int64) ([]domain.MenuItem, error) {
	return r.queryMenus(ctx, `
SELECT `+menuColumns+`
FROM board_menus bm
JOIN menus m ON m.id = bm.menu_id
WHERE bm.board_id = ?
ORDER BY bm.id
`, boardID)
}

func (r *repo) CanonicalSlot(ctx context.Context, boardID, menuID int64) (int64, error) {
	var id sql.NullInt64
	err := r.q.QueryRowContext(ctx, `SELECT MIN(id) FROM board_menus WHERE board_id = ? AND menu_id = ?`, boardID, menuID).Scan(&id)
	if err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, storage.ErrNotFound
	}
	return id.Int64, nil
}

// ---------- Votes ----------

func (r *repo) CountUserVotes(ctx context.Context, boardID, userID int64) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE board_id = ? AND user_id = ?`, boardID, userID).Scan(&n)
	return n, err
}

func (r *repo) HasUserVote(ctx context.Context, boardID, userID, menuID int64) (bool, error) {
	var cnt int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM votes WHERE board_id = ? AND user_id = ? AND menu_id = ?`, boardID, userID, menuID).Scan(&cnt)
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *repo) InsertVote(ctx context.Context, v domain.Vote) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
INSERT INTO votes(board_id, user_id, menu_id, board_menu_id, created_at)
VALUES (?, ?, ?, ?, ?)
`, v.BoardID, v.UserID, v.MenuID, v.SlotID, v.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *repo) DeleteUserVotes(ctx context.Context, boardID, userID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM votes WHERE board_id = ? AND user_id = ?`, boardID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const voteColumns = `v.id, v.board_id, v.user_id, v.menu_id, v.board_menu_id, m.name, v.created_at`

func scanVote(row rowScanner) (*domain.Vote, error) {
	var v domain.Vote
	if err := row.Scan(&v.ID, &v.BoardID, &v.UserID, &v.MenuID, &v.SlotID, &v.MenuName, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *repo) GetVote(ctx context.Context, id int64) (*domain.Vote, error) {
	return scanVote(r.q.QueryRowContext(ctx, `
SELECT `+voteColumns+`
FROM votes v
JOIN menus m ON m.id = v.menu_id
WHERE v.id = ?
`, id))
}

func (r *repo) DeleteVote(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM votes WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *repo) ListBoardVotes(ctx context.Context, boardID int64) ([]domain.Vote, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT `+voteColumns+`
FROM votes v
JOIN menus m ON m.id = v.menu_id
WHERE v.board_id = ?
ORDER BY v.id
`, boardID)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *repo) CountDistinctVoters(ctx context.Context, boardID int64) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM votes WHERE board_id = ?`, boardID).Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ---------- Locks ----------

// ShareLock is a no-op: the write lock taken at BEGIN already serializes
// every transaction.
func (r *repo) ShareLock(context.Context, string) error {
	return nil
}
