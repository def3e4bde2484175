package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/internal/stepup/store/drivers/sqlite"
	"github.com/stepauth/stepauth/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	user := createTestUser(t, st, "alice")
	now := time.Now().UTC()

	// One lapsed session row and one record with a lapsed device.
	expired := domain.LoginSession{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Phase:     domain.PhaseChallenged,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-30 * time.Minute),
	}
	require.NoError(t, st.LoginSessions().CreateLoginSession(ctx, expired))

	rec := domain.MFARecord{
		UserID:          user.ID,
		Enabled:         true,
		ActivatedMethod: domain.MethodOTPOverEmail,
		RememberedDevices: map[string]time.Time{
			"stale": now.Add(-time.Minute),
			"fresh": now.Add(time.Hour),
		},
	}
	require.NoError(t, st.MFARecords().UpsertMFARecord(ctx, rec))

	hk := NewHousekeepingService(st, slog.New(slog.DiscardHandler), time.Hour)
	hk.cleanup()

	got, err := st.MFARecords().GetMFARecord(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.RememberedDevices, 1)
	require.Contains(t, got.RememberedDevices, "fresh")

	_, err = st.LoginSessions().GetLoginSession(ctx, expired.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeepingStartStop(t *testing.T) {
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	hk := NewHousekeepingService(st, slog.New(slog.DiscardHandler), time.Hour)
	hk.Start()
	hk.Stop() // must not hang or panic
}
