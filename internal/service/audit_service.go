package service

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"task-tracker/internal/metrics"
	"task-tracker/internal/model"
	"task-tracker/internal/repository"
)

// Drift is the difference between a user's stored counters and their task rows.
type Drift struct {
	UserID         string `json:"user_id"`
	StoredPending  int    `json:"stored_pending"`
	StoredDone     int    `json:"stored_done"`
	CountedPending int    `json:"counted_pending"`
	CountedDone    int    `json:"counted_done"`
	Repaired       bool   `json:"repaired"`
}

// AuditReport summarizes one pass over all users.
type AuditReport struct {
	Checked int     `json:"checked"`
	Drifted []Drift `json:"drifted"`
	Failed  int     `json:"failed"`
}

// AuditService recounts task rows and compares them with the stored counters.
type AuditService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	taskRepo *repository.TaskRepository
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewAuditService(db *gorm.DB, userRepo *repository.UserRepository, taskRepo *repository.TaskRepository, log *slog.Logger, m *metrics.Metrics) *AuditService {
	if log == nil {
		log = slog.Default()
	}
	return &AuditService{db: db, userRepo: userRepo, taskRepo: taskRepo, log: log, metrics: m}
}

// Reconcile checks one user under the same row lock the engine takes. With repair set,
// drifted counters are overwritten with the counted values in the same transaction.
// The returned Drift is nil when the counters agree.
func (s *AuditService) Reconcile(ctx context.Context, userID string, repair bool) (*Drift, error) {
	var drift *Drift
	err := repository.RunInTransaction(ctx, s.db, s.log, func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		tasks := s.taskRepo.WithTx(tx)

		user, err := lockUser(ctx, users, userID)
		if err != nil {
			return err
		}
		counts, err := tasks.CountByStatus(ctx, userID)
		if err != nil {
			return storageError("count tasks", err)
		}
		if counts.Pending == user.PendingCount && counts.Done == user.DoneCount {
			return nil
		}

		drift = &Drift{
			UserID:         userID,
			StoredPending:  user.PendingCount,
			StoredDone:     user.DoneCount,
			CountedPending: counts.Pending,
			CountedDone:    counts.Done,
		}
		if !repair {
			return nil
		}
		if _, err := users.SetCounters(ctx, userID, counts.Pending, counts.Done); err != nil {
			return storageError("repair counters", err)
		}
		drift.Repaired = true
		return nil
	})
	if err != nil {
		return nil, storageError("reconcile", err)
	}

	if drift != nil {
		s.metrics.ObserveDrift(drift.Repaired)
		s.log.Warn("counter drift detected",
			slog.String("user_id", userID),
			slog.Int("stored_pending", drift.StoredPending),
			slog.Int("stored_done", drift.StoredDone),
			slog.Int("counted_pending", drift.CountedPending),
			slog.Int("counted_done", drift.CountedDone),
			slog.Bool("repaired", drift.Repaired))
	}
	return drift, nil
}

// ReconcileAll audits every user, one transaction each. A failure on one user is logged and
// counted; the pass continues unless ctx is done.
func (s *AuditService) ReconcileAll(ctx context.Context, repair bool) (AuditReport, error) {
	var report AuditReport

	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return report, storageError("list users", err)
	}

	for _, user := range users {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		drift, err := s.Reconcile(ctx, user.UserID, repair)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			report.Failed++
			s.log.Error("reconcile user", slog.String("user_id", user.UserID), slog.String("error", err.Error()))
			continue
		}
		report.Checked++
		if drift != nil {
			report.Drifted = append(report.Drifted, *drift)
		}
	}

	s.log.Info("counter audit finished",
		slog.Int("checked", report.Checked),
		slog.Int("drifted", len(report.Drifted)),
		slog.Int("failed", report.Failed))
	return report, nil
}

// expectedCounters derives counters from a task list. Used by the report service to show
// the same numbers the audit would compute.
func expectedCounters(tasks []model.Task) (pending, done int) {
	for _, t := range tasks {
		if t.IsDone() {
			done++
		} else {
			pending++
		}
	}
	return pending, done
}
