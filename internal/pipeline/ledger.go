package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
)

// LedgerRunner registers a content hash and waits until the ledger confirms it
type LedgerRunner struct {
	ledger ports.BlockchainLedger
}

func contentHash(job *domain.Job) (string, error) {
	hash, _ := job.Payload[domain.PayloadHash].(string)
	if hash == "" {
		return "", ports.NewCollaboratorError(domain.ErrorKindInvalidInput, errors.New("payload carries no content_hash"))
	}
	return hash, nil
}

func (l *LedgerRunner) Submit(ctx context.Context, job *domain.Job) (Submission, error) {
	hash, err := contentHash(job)
	if err != nil {
		return Submission{}, err
	}
	reg, err := l.ledger.Register(ctx, hash)
	if err != nil {
		return Submission{}, err
	}
	return Submission{
		TaskID: reg.TxID,
		Artifact: map[string]any{
			"tx_id":         reg.TxID,
			"registered_at": reg.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

// Poll reports done once Verify matches the registered hash
func (l *LedgerRunner) Poll(ctx context.Context, job *domain.Job) (Result, error) {
	hash, err := contentHash(job)
	if err != nil {
		return Result{}, err
	}
	ok, err := l.ledger.Verify(ctx, hash)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Progress: 0.5}, nil
	}
	return Result{
		Done:     true,
		Progress: 1,
		Artifact: map[string]any{
			"tx_id":        job.CollaboratorTaskID,
			"content_hash": hash,
			"verified":     true,
		},
	}, nil
}
