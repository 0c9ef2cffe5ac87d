package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelens/orchestrator/internal/blobstore"
	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/tests/helpers"
)

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)

	run := &domain.Run{
		RunID:     "run_abc",
		SessionID: "sess_abc",
		VideoID:   "vid1",
		State:     domain.RunStateInit,
		StartedAt: time.Now(),
	}
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, "run_abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.RunStateInit, got.State)
	assert.Equal(t, "vid1", got.VideoID)
	assert.Nil(t, got.EndedAt)

	require.NoError(t, s.UpdateRunState(ctx, "run_abc", domain.RunStateSynthesizing))
	got, err = s.GetRun(ctx, "run_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateSynthesizing, got.State)

	errData := []byte(`{"reason":"synthesis_failed"}`)
	require.NoError(t, s.UpdateRunCompleted(ctx, "run_abc", domain.RunStateFailed, errData))
	got, err = s.GetRun(ctx, "run_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFailed, got.State)
	assert.NotNil(t, got.EndedAt)
	assert.JSONEq(t, string(errData), string(got.Error))
}

func TestGetRunUnknownReturnsNil(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)

	got, err := s.GetRun(context.Background(), "run_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEventLogPagination(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)

	require.NoError(t, s.CreateRun(ctx, &domain.Run{
		RunID: "run_ev", SessionID: "s", VideoID: "v",
		State: domain.RunStateInit, StartedAt: time.Now(),
	}))

	for seq := int64(1); seq <= 5; seq++ {
		require.NoError(t, s.CreateEvent(ctx, &domain.ProgressEvent{
			RunID:  "run_ev",
			Seq:    seq,
			Ts:     time.Now().UnixMilli(),
			Status: domain.EventStatusProcessing,
			Stage:  domain.StageSynthesis,
		}))
	}

	events, err := s.GetEvents(ctx, "run_ev", 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].Seq)
	assert.Equal(t, int64(4), events[1].Seq)

	all, err := s.GetEvents(ctx, "run_ev", 0, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "sess1_full", []byte("payload"), time.Minute))

	data, err := s.Get(ctx, "sess1_full")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// Overwrite.
	require.NoError(t, s.Set(ctx, "sess1_full", []byte("newer"), time.Minute))
	data, err = s.Get(ctx, "sess1_full")
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), data)

	require.NoError(t, s.Delete(ctx, "sess1_full"))
	_, err = s.Get(ctx, "sess1_full")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestBlobExpiryReadsAsNotFound(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "sess1_snippet", []byte("payload"), -time.Second))

	_, err := s.Get(ctx, "sess1_snippet")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSweepExpiredBlobs(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)

	require.NoError(t, s.Set(ctx, "old", []byte("a"), -time.Second))
	require.NoError(t, s.Set(ctx, "fresh", []byte("b"), time.Minute))

	n, err := s.SweepExpiredBlobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, "fresh")
	assert.NoError(t, err)
}
