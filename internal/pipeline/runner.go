// Package pipeline runs one attempt of each job kind against its external collaborator.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
)

// Submission is what starting an attempt produced
type Submission struct {
	TaskID   string
	Artifact map[string]any
}

// Result is what one poll observed
type Result struct {
	Done     bool
	Progress float64
	Artifact map[string]any
}

// Runner submits and polls attempts of one job kind.
// Errors are classified collaborator failures.
type Runner interface {
	Submit(ctx context.Context, job *domain.Job) (Submission, error)
	Poll(ctx context.Context, job *domain.Job) (Result, error)
}

// Registry maps each job kind to its runner
type Registry map[domain.JobKind]Runner

// Services bundles the collaborators the runners call
type Services struct {
	Generation   ports.GenerationService
	Localization ports.LocalizationService
	Ledger       ports.BlockchainLedger
	Sync         SyncTolerance
}

// NewRegistry builds a runner for every kind whose collaborator is configured
func NewRegistry(s Services) Registry {
	r := Registry{}
	if s.Generation != nil {
		r[domain.JobKindGeneration] = &GenerationRunner{svc: s.Generation}
	}
	if s.Localization != nil {
		r[domain.JobKindLocalization] = NewLocalizationRunner(s.Localization, s.Sync)
	}
	if s.Ledger != nil {
		r[domain.JobKindBlockchainRegistration] = &LedgerRunner{ledger: s.Ledger}
	}
	return r
}

// For returns the runner of kind
func (r Registry) For(kind domain.JobKind) (Runner, error) {
	runner, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("no runner configured for job kind %q", kind)
	}
	return runner, nil
}

// pollResult converts a collaborator poll answer into a Result or a classified error
func pollResult(res ports.PollResult) (Result, error) {
	switch res.Status {
	case ports.PollDone:
		return Result{Done: true, Progress: 1, Artifact: res.Artifact}, nil
	case ports.PollFailed:
		kind := res.ErrorKind
		if kind == "" {
			kind = domain.ErrorKindUnknown
		}
		msg := res.Message
		if msg == "" {
			msg = "collaborator reported failure"
		}
		return Result{}, ports.NewCollaboratorError(kind, errors.New(msg))
	}
	return Result{Progress: res.Progress}, nil
}

// GenerationRunner drives video generation tasks
type GenerationRunner struct {
	svc ports.GenerationService
}

func (g *GenerationRunner) Submit(ctx context.Context, job *domain.Job) (Submission, error) {
	taskID, err := g.svc.Submit(ctx, job.Payload)
	if err != nil {
		return Submission{}, err
	}
	return Submission{TaskID: taskID}, nil
}

func (g *GenerationRunner) Poll(ctx context.Context, job *domain.Job) (Result, error) {
	res, err := g.svc.Poll(ctx, job.CollaboratorTaskID)
	if err != nil {
		return Result{}, err
	}
	return pollResult(res)
}
