package sqlite

import (
	"context"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
)

type mfaRecordsRepo struct {
	db dbtx
}

const mfaRecordColumns = `user_id, registered_email, phone_number, configured_methods,
	activated_method, enabled, totp_secret_blob, remembered_devices, created_at, updated_at`

func scanMFARecord(row interface{ Scan(...any) error }) (domain.MFARecord, error) {
	var rec domain.MFARecord
	var configured, activated, devices string
	err := row.Scan(&rec.UserID, &rec.RegisteredEmail, &rec.PhoneNumber, &configured,
		&activated, &rec.Enabled, &rec.TOTPSecretBlob, &devices, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.MFARecord{}, mapNotFound(err)
	}

	rec.ConfiguredMethods = splitMethods(configured)
	rec.ActivatedMethod = domain.Method(activated)
	rec.RememberedDevices, err = decodeDevices(devices)
	if err != nil {
		return domain.MFARecord{}, err
	}
	return rec, nil
}

func (r *mfaRecordsRepo) GetMFARecord(ctx context.Context, userID string) (domain.MFARecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mfaRecordColumns+` FROM mfa_records WHERE user_id = ?`, userID)
	return scanMFARecord(row)
}

func (r *mfaRecordsRepo) UpsertMFARecord(ctx context.Context, rec domain.MFARecord) error {
	devices, err := encodeDevices(rec.RememberedDevices)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO mfa_records (user_id, registered_email, phone_number, configured_methods,
			activated_method, enabled, totp_secret_blob, remembered_devices, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			registered_email = excluded.registered_email,
			phone_number = excluded.phone_number,
			configured_methods = excluded.configured_methods,
			activated_method = excluded.activated_method,
			enabled = excluded.enabled,
			totp_secret_blob = excluded.totp_secret_blob,
			remembered_devices = excluded.remembered_devices,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.RegisteredEmail, rec.PhoneNumber, joinMethods(rec.ConfiguredMethods),
		string(rec.ActivatedMethod), rec.Enabled, rec.TOTPSecretBlob, devices, now, now)
	return err
}

func (r *mfaRecordsRepo) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mfa_records SET enabled = ?, updated_at = ? WHERE user_id = ?`,
		enabled, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *mfaRecordsRepo) DeleteMFARecord(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_records WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *mfaRecordsRepo) ListMFARecords(ctx context.Context) ([]domain.MFARecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mfaRecordColumns+` FROM mfa_records ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MFARecord
	for rows.Next() {
		rec, err := scanMFARecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
