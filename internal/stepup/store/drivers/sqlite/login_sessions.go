package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/store"
)

type loginSessionsRepo struct {
	db dbtx
}

const loginSessionColumns = `id, user_id, phase, challenge, enroll_method, enroll_phone,
	attempts_remaining, remember_device, device_fingerprint, redirect_hint, created_at, expires_at`

func scanLoginSession(row interface{ Scan(...any) error }) (domain.LoginSession, error) {
	var s domain.LoginSession
	var challenge sql.NullString
	var enrollMethod string
	err := row.Scan(&s.ID, &s.UserID, &s.Phase, &challenge, &enrollMethod, &s.EnrollPhone,
		&s.AttemptsRemaining, &s.RememberDevice, &s.DeviceFingerprint, &s.RedirectHint,
		&s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.LoginSession{}, mapNotFound(err)
	}

	s.EnrollMethod = domain.Method(enrollMethod)
	if challenge.Valid && challenge.String != "" {
		var c domain.Challenge
		if err := json.Unmarshal([]byte(challenge.String), &c); err != nil {
			return domain.LoginSession{}, err
		}
		s.Challenge = &c
	}
	return s, nil
}

func encodeChallenge(c *domain.Challenge) (sql.NullString, error) {
	if c == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func (r *loginSessionsRepo) CreateLoginSession(ctx context.Context, s domain.LoginSession) error {
	challenge, err := encodeChallenge(s.Challenge)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO login_sessions (id, user_id, phase, challenge, enroll_method, enroll_phone,
			attempts_remaining, remember_device, device_fingerprint, redirect_hint, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, string(s.Phase), challenge, string(s.EnrollMethod), s.EnrollPhone,
		s.AttemptsRemaining, s.RememberDevice, s.DeviceFingerprint, s.RedirectHint,
		s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	return err
}

func (r *loginSessionsRepo) GetLoginSession(ctx context.Context, id string) (domain.LoginSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loginSessionColumns+` FROM login_sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC())
	return scanLoginSession(row)
}

func (r *loginSessionsRepo) UpdateLoginSession(ctx context.Context, s domain.LoginSession) error {
	challenge, err := encodeChallenge(s.Challenge)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE login_sessions SET phase = ?, challenge = ?, enroll_method = ?, enroll_phone = ?,
			attempts_remaining = ?, remember_device = ?, device_fingerprint = ?, redirect_hint = ?
		 WHERE id = ?`,
		string(s.Phase), challenge, string(s.EnrollMethod), s.EnrollPhone,
		s.AttemptsRemaining, s.RememberDevice, s.DeviceFingerprint, s.RedirectHint, s.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *loginSessionsRepo) DecrementLoginAttempts(ctx context.Context, id string) (int, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE login_sessions
		 SET attempts_remaining = MAX(attempts_remaining - 1, 0)
		 WHERE id = ?
		 RETURNING attempts_remaining`, id)

	var remaining int
	if err := row.Scan(&remaining); err != nil {
		return 0, mapNotFound(err)
	}
	return remaining, nil
}

func (r *loginSessionsRepo) DeleteLoginSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_sessions WHERE id = ?`, id)
	return err
}

func (r *loginSessionsRepo) DeleteExpiredLoginSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM login_sessions WHERE expires_at <= ?`, time.Now().UTC())
	return err
}

var _ store.LoginSessions = (*loginSessionsRepo)(nil)
