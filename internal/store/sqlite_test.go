package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func record(t *testing.T, s *SQLiteStore, appID, buildID, serial string, at time.Time) {
	t.Helper()
	require.NoError(t, s.RecordDeployment(context.Background(), &Deployment{
		ID:           uuid.NewString(),
		AppID:        appID,
		BuildID:      buildID,
		DeviceSerial: serial,
		DeployedAt:   at,
	}))
}

func TestLatestDeployment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	record(t, s, "com.example.app", "build-1", "local-0", base)
	record(t, s, "com.example.app", "build-2", "local-0", base.Add(time.Hour))
	record(t, s, "com.example.app", "build-x", "other-1", base.Add(2*time.Hour))

	latest, err := s.LatestDeployment(ctx, "com.example.app", "local-0")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "build-2", latest.BuildID)
	assert.Equal(t, base.Add(time.Hour), latest.DeployedAt)
}

func TestLatestDeploymentWithNoHistory(t *testing.T) {
	s := newTestStore(t)
	latest, err := s.LatestDeployment(context.Background(), "com.example.app", "local-0")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestListDeploymentsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	record(t, s, "com.example.app", "build-1", "local-0", base)
	record(t, s, "com.example.app", "build-2", "local-0", base.Add(time.Minute))
	record(t, s, "com.example.other", "build-9", "local-0", base.Add(2*time.Minute))

	list, err := s.ListDeployments(context.Background(), "com.example.app")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "build-2", list[0].BuildID)
	assert.Equal(t, "build-1", list[1].BuildID)
}

func TestDeleteDeployments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	record(t, s, "com.example.app", "build-1", "local-0", time.Now())

	require.NoError(t, s.DeleteDeployments(ctx, "com.example.app"))

	list, err := s.ListDeployments(ctx, "com.example.app")
	require.NoError(t, err)
	assert.Empty(t, list)
}
