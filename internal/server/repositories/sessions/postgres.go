package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskkeeper/taskkeeper/internal/common"
	"github.com/taskkeeper/taskkeeper/internal/dbx"
	"github.com/taskkeeper/taskkeeper/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO sessions (id, user_id, secret_digest, device, ip_address, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		session.ID, session.UserID, session.SecretDigest,
		session.Device, session.IPAddress, session.IsActive, session.ExpiresAt).
		Scan(&session.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return session, nil
}

func (r *PostgresRepository) FindActiveByDigest(ctx context.Context, digest string) (*models.Session, error) {
	query := `
		SELECT id, user_id, secret_digest, device, ip_address, is_active, created_at, expires_at
		FROM sessions
		WHERE secret_digest = $1 AND is_active AND expires_at > now()
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, digest).Scan(
		&session.ID, &session.UserID, &session.SecretDigest,
		&session.Device, &session.IPAddress, &session.IsActive,
		&session.CreatedAt, &session.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return session, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT id, user_id, secret_digest, device, ip_address, is_active, created_at, expires_at
		FROM sessions
		WHERE user_id = $1 AND is_active AND expires_at > now()
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Session
	for rows.Next() {
		session := &models.Session{}
		if err := rows.Scan(
			&session.ID, &session.UserID, &session.SecretDigest,
			&session.Device, &session.IPAddress, &session.IsActive,
			&session.CreatedAt, &session.ExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE sessions SET is_active = false
		WHERE id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return affected > 0, nil
}

func (r *PostgresRepository) RevokeAll(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE sessions SET is_active = false
		WHERE user_id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return affected, nil
}

// RevokeOldest ranks the user's active sessions newest-first and revokes
// everything past the keep newest in one statement, so racing logins cannot
// interleave a read-then-write and lose updates.
func (r *PostgresRepository) RevokeOldest(ctx context.Context, userID string, keep int) (int64, error) {
	query := `
		UPDATE sessions SET is_active = false
		WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (ORDER BY created_at DESC) AS rank
				FROM sessions
				WHERE user_id = $1 AND is_active AND expires_at > now()
			) ranked
			WHERE ranked.rank > $2
		)
	`
	res, err := r.db.ExecContext(ctx, query, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return affected, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions WHERE expires_at <= now()
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return affected, nil
}
