package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"creditstore/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `u.id, u.email, u.name, u.credits, u.stripe_customer_id,
	u.created_at, u.updated_at`

// scanUser scans a single user row into a types.User struct.
// The columns must match the order defined in userColumns.
func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var stripeCustomerID *string
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Credits,
		&stripeCustomerID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeCustomerID != nil {
		u.StripeCustomerID = *stripeCustomerID
	}
	return &u, nil
}

// GetByID retrieves a user by ID. Returns ErrCodeNotFoundUser if absent.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.email = $1`,
		email,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by email", err)
	}
	return u, nil
}

// AddCredits atomically increments the user's credit balance by delta.
// The delta is computed server-side by the reconciler; this method never
// interprets webhook metadata. Returns ErrCodeNotFoundUser when the user
// does not exist so the caller can roll back the surrounding transaction.
func (r *UserRepository) AddCredits(ctx context.Context, userID string, delta int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET credits = credits + $1, updated_at = NOW() WHERE id = $2`,
		delta,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to add credits", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// UpdateStripeCustomerID persists the Stripe customer mapping discovered or
// created during checkout orchestration.
func (r *UserRepository) UpdateStripeCustomerID(ctx context.Context, userID string, customerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`,
		customerID,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update stripe customer id", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// Create inserts a new user. Used by the seed tool; the API itself never
// creates users. Returns ErrCodeConflictDuplicate on an email collision.
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, name, credits, stripe_customer_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		user.ID,
		user.Email,
		user.Name,
		user.Credits,
		nilIfEmpty(user.StripeCustomerID),
		nilIfZeroTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictDuplicate, "user already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// nilIfEmpty returns nil if the string is empty, otherwise returns a pointer
// to the string. Used for nullable text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime returns nil if the time is zero, otherwise returns a pointer
// to the time. Used to let the DB default (NOW()) apply when no time is set.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (error code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
