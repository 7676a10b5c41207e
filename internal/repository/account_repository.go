package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursehub/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

const uniqueViolation = "23505"

const accountColumns = `id, email, display_name, password_hash, role, verified, social_only,
	avatar_public_id, avatar_url, created_at, updated_at`

// AccountRepository is the credential store. Every mutation is a single-row
// statement, so concurrent writers to one account serialize on its row lock.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, account models.Account) (models.Account, error) {
	query := `
		INSERT INTO accounts (
			id, email, display_name, password_hash, role, verified, social_only,
			avatar_public_id, avatar_url, created_at, updated_at
		) VALUES (
			$1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
		RETURNING ` + accountColumns

	publicID, url := avatarColumns(account.Avatar)
	row := r.pool.QueryRow(ctx, query,
		account.ID,
		account.Email,
		account.DisplayName,
		account.PasswordHash,
		account.Role,
		account.Verified,
		account.SocialOnly,
		publicID,
		url,
	)

	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return created, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return r.queryOne(ctx, query, email)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	const query = `
		UPDATE accounts
		SET password_hash = $2, social_only = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, passwordHash)
}

func (r *AccountRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	const query = `UPDATE accounts SET role = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, role)
}

func (r *AccountRepository) UpdateAvatar(ctx context.Context, id string, avatar models.Avatar) error {
	const query = `
		UPDATE accounts
		SET avatar_public_id = NULLIF($2, ''), avatar_url = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, avatar.PublicID, avatar.URL)
}

func (r *AccountRepository) queryOne(ctx context.Context, query string, arg any) (models.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		account  models.Account
		publicID *string
		url      *string
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&account.Role,
		&account.Verified,
		&account.SocialOnly,
		&publicID,
		&url,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return models.Account{}, err
	}
	if url != nil {
		account.Avatar = &models.Avatar{URL: *url}
		if publicID != nil {
			account.Avatar.PublicID = *publicID
		}
	}
	return account, nil
}

func avatarColumns(avatar *models.Avatar) (*string, *string) {
	if avatar == nil || avatar.URL == "" {
		return nil, nil
	}
	url := avatar.URL
	if avatar.PublicID == "" {
		return nil, &url
	}
	publicID := avatar.PublicID
	return &publicID, &url
}
