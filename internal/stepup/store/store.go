package store

import (
	"context"
	"errors"

	"github.com/stepauth/stepauth/internal/stepup/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement it. Sub-repositories keep concerns tidy and make the
// transaction boundary explicit.
type Store interface {
	Users() Users
	MFARecords() MFARecords
	LoginSessions() LoginSessions
	Settings() Settings

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back on error and
	// committing on nil. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during the first-factor credential check.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// DeleteUser cascades to the user's MFA record (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type MFARecords interface {
	// GetMFARecord returns the user's second-factor configuration, or
	// ErrNotFound for users who never registered a method.
	GetMFARecord(ctx context.Context, userID string) (domain.MFARecord, error)

	// UpsertMFARecord creates or fully replaces the user's record.
	UpsertMFARecord(ctx context.Context, rec domain.MFARecord) error

	// SetMFAEnabled flips the enabled flag without touching the rest.
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error

	// DeleteMFARecord removes the record entirely (account reset).
	DeleteMFARecord(ctx context.Context, userID string) error

	// ListMFARecords returns every record, for housekeeping sweeps.
	ListMFARecords(ctx context.Context) ([]domain.MFARecord, error)
}

type LoginSessions interface {
	// CreateLoginSession persists a new in-flight login.
	CreateLoginSession(ctx context.Context, s domain.LoginSession) error

	// GetLoginSession retrieves a login session by ID (only if not
	// expired).
	GetLoginSession(ctx context.Context, id string) (domain.LoginSession, error)

	// UpdateLoginSession replaces the mutable fields of a session. Last
	// write wins; concurrent requests for one login are not serialized.
	UpdateLoginSession(ctx context.Context, s domain.LoginSession) error

	// DecrementLoginAttempts atomically decrements the attempt counter and
	// returns the new value.
	DecrementLoginAttempts(ctx context.Context, id string) (int, error)

	// DeleteLoginSession removes a session (success, cancel, tamper).
	DeleteLoginSession(ctx context.Context, id string) error

	// DeleteExpiredLoginSessions removes lapsed sessions (housekeeping).
	DeleteExpiredLoginSessions(ctx context.Context) error
}

type Settings interface {
	// GetSettings returns the stored module settings, or ErrNotFound when
	// none have been saved yet (callers fall back to defaults).
	GetSettings(ctx context.Context) (domain.Settings, error)

	// SaveSettings persists the module settings.
	SaveSettings(ctx context.Context, s domain.Settings) error
}
