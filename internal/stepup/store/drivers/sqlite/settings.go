package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
)

// Settings are stored as a single JSON blob row. It is a read-mostly
// value object written only through the admin API; relational structure
// would buy nothing here.
type settingsRepo struct {
	db dbtx
}

func (r *settingsRepo) GetSettings(ctx context.Context) (domain.Settings, error) {
	var blob string
	row := r.db.QueryRowContext(ctx, `SELECT blob FROM settings WHERE id = 1`)
	if err := row.Scan(&blob); err != nil {
		return domain.Settings{}, mapNotFound(err)
	}

	var s domain.Settings
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

func (r *settingsRepo) SaveSettings(ctx context.Context, s domain.Settings) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO settings (id, blob, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		string(blob), time.Now().UTC())
	return err
}
