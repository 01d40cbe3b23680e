package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crewops/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, display_name, role FROM users WHERE display_name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.Role)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	user = User{ID: util.NewID("usr"), DisplayName: name, Role: "instructor"}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (display_name) DO NOTHING
	`, user.ID, user.DisplayName, user.Role); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	// Re-read to pick up the winner on a concurrent insert
	if err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.Role); err != nil {
		return User{}, fmt.Errorf("reread user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name, role FROM users WHERE id=$1`, userID).Scan(&user.ID, &user.DisplayName, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListOverrides(ctx context.Context, activity string) ([]SectionOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, activity, section_key, title, body, media_refs, COALESCE(linked_checklist, ''), category, sort_order, updated_at
		FROM section_overrides
		WHERE activity=$1
		ORDER BY category ASC, sort_order ASC
	`, activity)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	items := make([]SectionOverride, 0)
	for rows.Next() {
		item, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetOverride(ctx context.Context, activity, sectionKey string) (SectionOverride, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, activity, section_key, title, body, media_refs, COALESCE(linked_checklist, ''), category, sort_order, updated_at
		FROM section_overrides
		WHERE activity=$1 AND section_key=$2
	`, activity, sectionKey)
	return scanOverride(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (SectionOverride, error) {
	var item SectionOverride
	var mediaRaw []byte
	if err := row.Scan(
		&item.ID,
		&item.Activity,
		&item.SectionKey,
		&item.Title,
		&item.Body,
		&mediaRaw,
		&item.LinkedChecklist,
		&item.Category,
		&item.Order,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SectionOverride{}, err
		}
		return SectionOverride{}, fmt.Errorf("scan override: %w", err)
	}
	_ = json.Unmarshal(mediaRaw, &item.MediaRefs)
	return item, nil
}

// UpsertOverride materializes or updates the override row for the natural key
// (activity, section_key). Repeated writes update the same row; the returned
// id is stable across calls.
func (s *PostgresStore) UpsertOverride(ctx context.Context, item SectionOverride) (string, error) {
	mediaRefs := item.MediaRefs
	if mediaRefs == nil {
		mediaRefs = []string{}
	}
	encodedMedia, err := json.Marshal(mediaRefs)
	if err != nil {
		return "", fmt.Errorf("marshal media refs: %w", err)
	}
	id := item.ID
	if id == "" {
		id = util.NewID("sec")
	}
	var storedID string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO section_overrides (id, activity, section_key, title, body, media_refs, linked_checklist, category, sort_order, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, NULLIF($7, ''), $8, $9, NOW())
		ON CONFLICT (activity, section_key) DO UPDATE
		SET title=EXCLUDED.title,
			body=EXCLUDED.body,
			media_refs=EXCLUDED.media_refs,
			linked_checklist=EXCLUDED.linked_checklist,
			category=EXCLUDED.category,
			sort_order=EXCLUDED.sort_order,
			updated_at=NOW()
		RETURNING id
	`, id, item.Activity, item.SectionKey, item.Title, item.Body, string(encodedMedia), item.LinkedChecklist, item.Category, item.Order).Scan(&storedID)
	if err != nil {
		return "", fmt.Errorf("upsert override: %w", err)
	}
	return storedID, nil
}

func (s *PostgresStore) DeleteOverride(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM section_overrides WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete override: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete override rows: %w", err)
	}
	return affected > 0, nil
}

// SearchOverrides is the ILIKE fallback used when Meilisearch is unavailable.
func (s *PostgresStore) SearchOverrides(ctx context.Context, query string, limit int) ([]SectionOverride, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, activity, section_key, title, body, media_refs, COALESCE(linked_checklist, ''), category, sort_order, updated_at
		FROM section_overrides
		WHERE title ILIKE '%' || $1 || '%' OR body ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search overrides: %w", err)
	}
	defer rows.Close()

	items := make([]SectionOverride, 0)
	for rows.Next() {
		item, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate override search: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
