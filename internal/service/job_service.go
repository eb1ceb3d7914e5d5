package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"novel-translate-service/internal/entity"
)

// Job Store port (implementation: redisstore.JobStore)
type JobStore interface {
	Create(ctx context.Context, userID, jobID string, p entity.WorkflowPayload) error
	MarkCanceled(ctx context.Context, jobID string) error
	ApplyProgress(ctx context.Context, jobID string, u entity.ProgressUpdate) error
	Delete(ctx context.Context, userID, jobID string) error
	Owns(ctx context.Context, userID, jobID string) (bool, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]entity.Job, error)
}

// Trigger starts and cancels out-of-process runs
// (implementations: workflow.Client, RedisDispatchQueue).
type Trigger interface {
	Trigger(ctx context.Context, p entity.WorkflowPayload) (string, error)
	Cancel(ctx context.Context, runID string) error
}

// CredentialSource resolves the delegated credential of the destination
// integration (implementation: postgresql.CredentialRepository).
type CredentialSource interface {
	RefreshToken(ctx context.Context, userID string) (string, error)
}

// Decomposer expands address strings (implementation: novel.Decomposer).
type Decomposer interface {
	DecomposeAll(ctx context.Context, input string) ([]entity.ChapterReference, error)
}

type JobService struct {
	store        JobStore
	trigger      Trigger
	creds        CredentialSource
	decomposer   Decomposer
	historyLimit int
	log          *slog.Logger
}

type Options struct {
	HistoryLimit int
	Logger       *slog.Logger
}

func NewJobService(store JobStore, trigger Trigger, creds CredentialSource, decomposer Decomposer, opts Options) *JobService {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &JobService{
		store:        store,
		trigger:      trigger,
		creds:        creds,
		decomposer:   decomposer,
		historyLimit: opts.HistoryLimit,
		log:          opts.Logger,
	}
}

// Decompose turns a whitespace separated address string into chapters.
func (s *JobService) Decompose(ctx context.Context, urlString string) ([]entity.ChapterReference, error) {
	return s.decomposer.DecomposeAll(ctx, urlString)
}

// Submit validates the request, dispatches the run and records it as starting.
func (s *JobService) Submit(ctx context.Context, userID string, req entity.SubmitRequest) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", entity.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	if _, err := s.creds.RefreshToken(ctx, userID); err != nil {
		if errors.Is(err, entity.ErrNoCredential) {
			s.log.Warn("no refresh token for user", "user_id", userID)
		}
		return "", fmt.Errorf("resolve credential: %w", err)
	}

	payload := entity.WorkflowPayload{SubmitRequest: req, UserID: userID}
	jobID, err := s.trigger.Trigger(ctx, payload)
	if err != nil {
		return "", err
	}

	if err := s.store.Create(ctx, userID, jobID, payload); err != nil {
		// without a record nobody can see or cancel the run
		if cErr := s.trigger.Cancel(ctx, jobID); cErr != nil {
			s.log.Error("orphaned workflow run", "job_id", jobID, "error", cErr)
		}
		return "", err
	}

	s.log.Info("job submitted", "job_id", jobID, "user_id", userID, "total", len(req.URLs), "provider", req.Provider)
	return jobID, nil
}

// Cancel asks the runtime to stop the run, then marks the record canceled
// whatever the runtime said. The store write is what readers see.
// Jobs outside the caller's history are reported as not found.
func (s *JobService) Cancel(ctx context.Context, userID, jobID string) error {
	if strings.TrimSpace(userID) == "" {
		return entity.ErrUnauthorized
	}
	if strings.TrimSpace(jobID) == "" {
		return entity.ErrMissingJobID
	}
	owned, err := s.store.Owns(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if !owned {
		return entity.ErrNotFound
	}
	if err := s.trigger.Cancel(ctx, jobID); err != nil {
		s.log.Warn("workflow cancel failed", "job_id", jobID, "error", err)
	}
	if err := s.store.MarkCanceled(ctx, jobID); err != nil {
		return err
	}
	s.log.Info("job canceled", "job_id", jobID, "user_id", userID)
	return nil
}

// Delete removes the record and the user's index entry.
func (s *JobService) Delete(ctx context.Context, userID, jobID string) error {
	if strings.TrimSpace(userID) == "" {
		return entity.ErrUnauthorized
	}
	if strings.TrimSpace(jobID) == "" {
		return entity.ErrMissingJobID
	}
	return s.store.Delete(ctx, userID, jobID)
}

// ListRecent returns the most recent jobs of a user, newest first.
func (s *JobService) ListRecent(ctx context.Context, userID string) ([]entity.Job, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, entity.ErrUnauthorized
	}
	return s.store.ListRecent(ctx, userID, s.historyLimit)
}

// ReportProgress applies a worker callback.
func (s *JobService) ReportProgress(ctx context.Context, jobID string, u entity.ProgressUpdate) error {
	if strings.TrimSpace(jobID) == "" {
		return entity.ErrMissingJobID
	}
	if u.Status != nil && !u.Status.Valid() {
		return &entity.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *u.Status)}
	}
	if u.Current != nil && *u.Current < 0 {
		return &entity.ValidationError{Field: "current", Message: "must not be negative"}
	}
	if u.Progress != nil && *u.Progress < 0 {
		return &entity.ValidationError{Field: "progress", Message: "must not be negative"}
	}
	return s.store.ApplyProgress(ctx, jobID, u)
}
