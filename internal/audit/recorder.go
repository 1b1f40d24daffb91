// Package audit appends the action trail of the library.
//
// Recording is best-effort: a failed write is reported on the logger and never
// returned to the operation that triggered it.
package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lendingdesk/internal/models"
	"lendingdesk/internal/retry"
	"lendingdesk/internal/storage"
)

// DefaultActor is recorded when the caller does not name one
const DefaultActor = "Admin"

// Recorder writes LogEntry documents to the logs collection
type Recorder struct {
	db     storage.DocumentStore
	logger *zap.Logger

	now          func() time.Time
	defaultActor string
	retryOptions []retry.Option

	mu   sync.Mutex
	last time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithDefaultActor overrides DefaultActor
func WithDefaultActor(actor string) Option {
	return func(r *Recorder) {
		if actor != "" {
			r.defaultActor = actor
		}
	}
}

// WithRetry configures how often a failed append is retried
func WithRetry(options ...retry.Option) Option {
	return func(r *Recorder) { r.retryOptions = options }
}

// NewRecorder creates a recorder writing to db
func NewRecorder(db storage.DocumentStore, logger *zap.Logger, options ...Option) *Recorder {
	r := &Recorder{
		db:           db,
		logger:       logger,
		now:          time.Now,
		defaultActor: DefaultActor,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// stamp returns a strictly increasing timestamp so ids keep append order
func (r *Recorder) stamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.now()
	if !t.After(r.last) {
		t = r.last.Add(time.Nanosecond)
	}
	r.last = t
	return t
}

// Record appends one entry
func (r *Recorder) Record(ctx context.Context, action models.ActionType, description, actor string) {
	if actor == "" {
		actor = r.defaultActor
	}
	ts := r.stamp()
	entry := models.LogEntry{
		Timestamp:   ts.Format(models.TimestampLayout),
		ActionType:  action,
		Description: description,
		Actor:       actor,
	}
	// ids sort chronologically
	id := fmt.Sprintf("%s-%s", ts.UTC().Format("20060102T150405.000000000"), uuid.NewString())

	err := retry.Do(ctx, func(ctx context.Context) error {
		return storage.Save(ctx, r.db, storage.Logs, id, entry)
	}, r.retryOptions...)
	if err != nil {
		r.logger.Warn("Failed to record audit log entry",
			zap.String("action", string(action)),
			zap.String("description", description),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("Audit log entry recorded", zap.String("action", string(action)), zap.String("log_id", id))
}

// List returns all entries ordered by timestamp
func (r *Recorder) List(ctx context.Context) ([]models.LogEntry, error) {
	entries, err := storage.LoadAll[models.LogEntry](ctx, r.db, storage.Logs)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries, nil
}
