package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/dbx"
	"github.com/deepesh-reddy/MegaBackend/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const (
	publicColumns = `id, username, email, full_name, avatar_id, avatar_url,
		cover_image_id, cover_image_url, watch_history, created_at, updated_at`
	secretColumns = `, password_hash, COALESCE(refresh_token, '')`
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func columns(p models.Projection) string {
	if p == models.WithSecrets {
		return publicColumns + secretColumns
	}
	return publicColumns
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, p models.Projection) (*models.User, error) {
	u := &models.User{}
	var history []byte

	dest := []any{
		&u.ID, &u.Username, &u.Email, &u.FullName,
		&u.Avatar.ExternalID, &u.Avatar.URL,
		&u.CoverImage.ExternalID, &u.CoverImage.URL,
		&history, &u.CreatedAt, &u.UpdatedAt,
	}
	if p == models.WithSecrets {
		dest = append(dest, &u.PasswordHash, &u.RefreshToken)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &u.WatchHistory); err != nil {
			return nil, fmt.Errorf("decode watch history: %w", err)
		}
	}
	if u.WatchHistory == nil {
		u.WatchHistory = []string{}
	}

	return u, nil
}

// mapError translates driver errors into the package contract.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w (%s)", common.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) FindByEmailOrUsername(ctx context.Context, email, username string, p models.Projection) (*models.User, error) {
	query := `SELECT ` + columns(p) + ` FROM users
		WHERE email = $1 OR lower(username) = lower($2)
		LIMIT 1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email, username), p)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string, p models.Projection) (*models.User, error) {
	query := `SELECT ` + columns(p) + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id), p)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// Create inserts user and fills in its id and timestamps. A missing id is
// generated here.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	history := user.WatchHistory
	if history == nil {
		history = []string{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encode watch history: %w", err)
	}

	query := `INSERT INTO users (id, username, email, full_name, password_hash,
			avatar_id, avatar_url, cover_image_id, cover_image_url, watch_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash,
		user.Avatar.ExternalID, user.Avatar.URL,
		user.CoverImage.ExternalID, user.CoverImage.URL,
		string(historyJSON),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	user.WatchHistory = history
	return user, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id, value string) error {
	return r.exec(ctx,
		`UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, value)
}

func (r *PostgresRepository) ReplaceRefreshToken(ctx context.Context, id, current, next string) error {
	return r.exec(ctx,
		`UPDATE users SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2`,
		id, current, next)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
}

// UpdateProfileFields applies the non-nil fields of upd and returns the
// sanitized record. An empty update is a plain read.
func (r *PostgresRepository) UpdateProfileFields(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.IsEmpty() {
		return r.FindByID(ctx, id, models.Sanitized)
	}

	args := []any{id}
	var set []string
	add := func(column string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.FullName != nil {
		add("full_name", *upd.FullName)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Avatar != nil {
		add("avatar_id", upd.Avatar.ExternalID)
		add("avatar_url", upd.Avatar.URL)
	}
	if upd.CoverImage != nil {
		add("cover_image_id", upd.CoverImage.ExternalID)
		add("cover_image_url", upd.CoverImage.URL)
	}
	set = append(set, "updated_at = now()")

	query := `UPDATE users SET ` + strings.Join(set, ", ") +
		` WHERE id = $1 RETURNING ` + publicColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...), models.Sanitized)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	query := `SELECT u.id, u.username, u.email, u.full_name,
			u.avatar_id, u.avatar_url, u.cover_image_id, u.cover_image_url,
			(SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id),
			(SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
			EXISTS (SELECT 1 FROM subscriptions s
				WHERE s.channel_id = u.id AND s.subscriber_id::text = $2)
		FROM users u
		WHERE lower(u.username) = lower($1)`

	c := &models.ChannelProfile{}
	err := r.db.QueryRowContext(ctx, query, username, viewerID).Scan(
		&c.ID, &c.Username, &c.Email, &c.FullName,
		&c.Avatar.ExternalID, &c.Avatar.URL,
		&c.CoverImage.ExternalID, &c.CoverImage.URL,
		&c.SubscribersCount, &c.ChannelsSubscribed, &c.IsSubscribed,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// WatchHistory returns the user's watched videos in stored order. Ids that no
// longer resolve to a video are skipped.
func (r *PostgresRepository) WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error) {
	query := `SELECT v.id, v.title, v.video_id, v.video_url, v.thumbnail_id, v.thumbnail_url,
			v.duration, v.views, v.created_at,
			o.id, o.username, o.full_name, o.avatar_id, o.avatar_url
		FROM users u
		CROSS JOIN LATERAL jsonb_array_elements_text(u.watch_history) WITH ORDINALITY AS h(video_id, pos)
		JOIN videos v ON v.id::text = h.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE u.id = $1
		ORDER BY h.pos`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	items := []models.WatchedVideo{}
	for rows.Next() {
		var v models.WatchedVideo
		if err := rows.Scan(
			&v.ID, &v.Title, &v.VideoFile.ExternalID, &v.VideoFile.URL,
			&v.Thumbnail.ExternalID, &v.Thumbnail.URL,
			&v.Duration, &v.Views, &v.CreatedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.FullName,
			&v.Owner.Avatar.ExternalID, &v.Owner.Avatar.URL,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}
