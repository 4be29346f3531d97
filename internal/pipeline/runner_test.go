package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/internal/ports/mocks"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
)

func TestRegistry_For(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := NewRegistry(Services{Generation: mocks.NewMockGenerationService(ctrl)})

	runner, err := reg.For(domain.JobKindGeneration)
	require.NoError(t, err)
	assert.IsType(t, &GenerationRunner{}, runner)

	_, err = reg.For(domain.JobKindLocalization)
	assert.Error(t, err)
}

func TestGenerationRunner(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockGenerationService(ctrl)
	runner := &GenerationRunner{svc: svc}
	ctx := context.Background()
	job := &domain.Job{ID: "j1", Kind: domain.JobKindGeneration, Payload: map[string]any{"prompt": "p"}}

	svc.EXPECT().Submit(ctx, job.Payload).Return("task-1", nil)
	sub, err := runner.Submit(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "task-1", sub.TaskID)

	job.CollaboratorTaskID = sub.TaskID
	tests := []struct {
		name     string
		poll     ports.PollResult
		want     Result
		wantKind domain.ErrorKind
	}{
		{
			name: "pending reports progress",
			poll: ports.PollResult{Status: ports.PollPending, Progress: 0.3},
			want: Result{Progress: 0.3},
		},
		{
			name: "done carries the artifact",
			poll: ports.PollResult{Status: ports.PollDone, Artifact: map[string]any{"video_ref": "v"}},
			want: Result{Done: true, Progress: 1, Artifact: map[string]any{"video_ref": "v"}},
		},
		{
			name:     "failed keeps the collaborator kind",
			poll:     ports.PollResult{Status: ports.PollFailed, ErrorKind: domain.ErrorKindRateLimited, Message: "quota"},
			wantKind: domain.ErrorKindRateLimited,
		},
		{
			name:     "failed without kind is unknown",
			poll:     ports.PollResult{Status: ports.PollFailed},
			wantKind: domain.ErrorKindUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.EXPECT().Poll(ctx, "task-1").Return(tt.poll, nil)
			got, err := runner.Poll(ctx, job)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, retry.Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalizationRunner_CheckSync(t *testing.T) {
	runner := NewLocalizationRunner(nil, SyncTolerance{})

	tests := []struct {
		name     string
		artifact map[string]any
		wantErr  bool
	}{
		{name: "dub within 100ms", artifact: map[string]any{ArtifactDubSyncOffset: 100.0}},
		{name: "dub beyond 100ms", artifact: map[string]any{ArtifactDubSyncOffset: 101.0}, wantErr: true},
		{name: "negative dub drift counts", artifact: map[string]any{ArtifactDubSyncOffset: -150.0}, wantErr: true},
		{name: "subtitle-only within 200ms", artifact: map[string]any{ArtifactSubtitleSyncOffset: 180.0}},
		{name: "subtitle-only beyond 200ms", artifact: map[string]any{ArtifactSubtitleSyncOffset: 250}, wantErr: true},
		{
			name:     "150ms is fine for subtitles but not for dubbing",
			artifact: map[string]any{ArtifactDubSyncOffset: 150.0, ArtifactSubtitleSyncOffset: 150.0},
			wantErr:  true,
		},
		{name: "no offsets reported", artifact: map[string]any{ArtifactVideoRef: "v"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runner.CheckSync(tt.artifact)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, domain.ErrorKindTransientNetwork, retry.Classify(err))
		})
	}
}

func TestLocalizationRunner_DriftFailsPoll(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockLocalizationService(ctrl)
	runner := NewLocalizationRunner(svc, SyncTolerance{Dub: 50 * time.Millisecond})
	job := &domain.Job{ID: "j1", CollaboratorTaskID: "t1"}

	svc.EXPECT().Poll(gomock.Any(), "t1").Return(ports.PollResult{
		Status:   ports.PollDone,
		Artifact: map[string]any{ArtifactDubSyncOffset: 80.0},
	}, nil)

	_, err := runner.Poll(context.Background(), job)
	require.Error(t, err)
	assert.True(t, retry.Retryable(retry.Classify(err)))
}

func TestLedgerRunner(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockBlockchainLedger(ctrl)
	runner := &LedgerRunner{ledger: ledger}
	ctx := context.Background()
	ts := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	job := &domain.Job{ID: "j1", Payload: map[string]any{domain.PayloadHash: "h1"}}

	ledger.EXPECT().Register(ctx, "h1").Return(ports.Registration{TxID: "0x1", Timestamp: ts}, nil)
	sub, err := runner.Submit(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "0x1", sub.TaskID)
	assert.Equal(t, ts.Format(time.RFC3339Nano), sub.Artifact["registered_at"])

	job.CollaboratorTaskID = sub.TaskID
	gomock.InOrder(
		ledger.EXPECT().Verify(ctx, "h1").Return(false, nil),
		ledger.EXPECT().Verify(ctx, "h1").Return(true, nil),
	)

	res, err := runner.Poll(ctx, job)
	require.NoError(t, err)
	assert.False(t, res.Done)

	res, err = runner.Poll(ctx, job)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "0x1", res.Artifact["tx_id"])
}

func TestLedgerRunner_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockBlockchainLedger(ctrl)
	runner := &LedgerRunner{ledger: ledger}
	ctx := context.Background()

	_, err := runner.Submit(ctx, &domain.Job{ID: "j1"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindInvalidInput, retry.Classify(err))

	boom := ports.NewCollaboratorError(domain.ErrorKindTransientNetwork, errors.New("node down"))
	ledger.EXPECT().Register(ctx, "h1").Return(ports.Registration{}, boom)
	_, err = runner.Submit(ctx, &domain.Job{ID: "j1", Payload: map[string]any{domain.PayloadHash: "h1"}})
	assert.ErrorIs(t, err, boom)
}
