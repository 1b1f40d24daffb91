// Package library is the service surface the HTTP API and the admin CLI call.
// It combines the inventory, the lending engine, reminders and the audit trail.
package library

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lendingdesk/internal/audit"
	"lendingdesk/internal/failure"
	"lendingdesk/internal/inventory"
	"lendingdesk/internal/lending"
	"lendingdesk/internal/models"
	"lendingdesk/internal/reminder"
	"lendingdesk/internal/storage"
)

// ReturnPolicy selects how ReturnBook checks the returning student
type ReturnPolicy string

const (
	// PolicyVerify requires the student id and rejects returns by anyone else
	PolicyVerify ReturnPolicy = "verify"
	// PolicyUnverified closes the active issue whoever returns the book
	PolicyUnverified ReturnPolicy = "unverified"
)

// ParseReturnPolicy parses a policy name; empty means PolicyVerify
func ParseReturnPolicy(s string) (ReturnPolicy, error) {
	switch ReturnPolicy(s) {
	case "", PolicyVerify:
		return PolicyVerify, nil
	case PolicyUnverified:
		return PolicyUnverified, nil
	default:
		return "", fmt.Errorf("unknown return policy %q", s)
	}
}

// Settings tune an assembled Service
type Settings struct {
	LoanDays   int
	Policy     ReturnPolicy
	AuditActor string
}

// Service exposes the library operations
type Service struct {
	inv       *inventory.Store
	engine    *lending.Engine
	evaluator *reminder.Evaluator
	recorder  *audit.Recorder
	logger    *zap.Logger

	policy ReturnPolicy
	now    func() time.Time
}

// Assemble builds every component on top of one document store.
// A nil sender leaves reminders undeliverable.
func Assemble(db storage.DocumentStore, sender reminder.Sender, logger *zap.Logger, settings Settings) *Service {
	recorder := audit.NewRecorder(db, logger.Named("audit"), audit.WithDefaultActor(settings.AuditActor))
	inv := inventory.New(db, logger.Named("inventory"))
	engine := lending.New(db, inv, recorder, logger.Named("lending"), lending.WithLoanDays(settings.LoanDays))
	evaluator := reminder.NewEvaluator(engine, inv, sender, logger.Named("reminder"),
		reminder.WithRecorder(recorder),
		reminder.WithLoanDays(settings.LoanDays),
	)

	return New(inv, engine, evaluator, recorder, logger, settings.Policy)
}

// New creates a service from already built components
func New(inv *inventory.Store, engine *lending.Engine, evaluator *reminder.Evaluator, recorder *audit.Recorder, logger *zap.Logger, policy ReturnPolicy) *Service {
	if policy == "" {
		policy = PolicyVerify
	}
	return &Service{
		inv:       inv,
		engine:    engine,
		evaluator: evaluator,
		recorder:  recorder,
		logger:    logger,
		policy:    policy,
		now:       time.Now,
	}
}

// Policy returns the active return policy
func (s *Service) Policy() ReturnPolicy { return s.policy }

// Scheduler returns a reminder scheduler sweeping this library's issues
func (s *Service) Scheduler(interval time.Duration, leadDays int) *reminder.Scheduler {
	return reminder.NewScheduler(s.engine, s.evaluator, s.logger.Named("scheduler"), interval, leadDays)
}

// Books

func (s *Service) AddBook(ctx context.Context, book models.Book) (models.Book, error) {
	added, err := s.inv.AddBook(ctx, book)
	if err != nil {
		return models.Book{}, err
	}
	s.recorder.Record(ctx, models.ActionAddBook, "Added book: "+added.Title, "")
	return added, nil
}

func (s *Service) UpdateBook(ctx context.Context, book models.Book) (models.Book, error) {
	updated, err := s.inv.UpdateBook(ctx, book)
	if err != nil {
		return models.Book{}, err
	}
	s.recorder.Record(ctx, models.ActionUpdateBook, "Updated book: "+updated.Title, "")
	return updated, nil
}

func (s *Service) GetBook(ctx context.Context, id string) (models.Book, error) {
	return s.inv.GetBook(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.inv.ListBooks(ctx)
}

// DeleteBook removes a book that is not on loan
func (s *Service) DeleteBook(ctx context.Context, id string) (bool, error) {
	removed, err := s.engine.RemoveBook(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.recorder.Record(ctx, models.ActionDeleteBook, "Deleted book: "+id, "")
	}
	return removed, nil
}

// SeedBooks adds the branch-wise starter catalog
func (s *Service) SeedBooks(ctx context.Context) ([]models.Book, error) {
	added, err := s.inv.SeedCatalog(ctx)
	if err != nil {
		return added, err
	}
	s.recorder.Record(ctx, models.ActionSeedBooks, "Added branch-wise books", "")
	s.logger.Info("Catalog seeded", zap.Int("added", len(added)))
	return added, nil
}

// Students

func (s *Service) RegisterStudent(ctx context.Context, student models.Student) (models.Student, error) {
	added, err := s.inv.AddStudent(ctx, student)
	if err != nil {
		return models.Student{}, err
	}
	s.recorder.Record(ctx, models.ActionRegister, "Registered student: "+added.Name, "")
	return added, nil
}

func (s *Service) GetStudent(ctx context.Context, id string) (models.Student, error) {
	return s.inv.GetStudent(ctx, id)
}

func (s *Service) ListStudents(ctx context.Context) ([]models.Student, error) {
	return s.inv.ListStudents(ctx)
}

// DeleteStudent removes a student holding no books
func (s *Service) DeleteStudent(ctx context.Context, id string) (bool, error) {
	removed, err := s.engine.RemoveStudent(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.recorder.Record(ctx, models.ActionDeleteStudent, "Deleted student: "+id, "")
	}
	return removed, nil
}

// Lending

func (s *Service) IssueBook(ctx context.Context, bookID, studentID string) (models.Issue, error) {
	return s.engine.Issue(ctx, bookID, studentID)
}

// ReturnBook closes the active issue of a book according to the return policy.
// Under PolicyVerify studentID is required.
func (s *Service) ReturnBook(ctx context.Context, bookID, studentID string) (string, error) {
	if s.policy == PolicyUnverified {
		return s.engine.Return(ctx, bookID)
	}
	if studentID == "" {
		return "", failure.Withf(failure.ErrInvalidID, "student id is required to return a book")
	}
	return s.engine.ReturnFrom(ctx, bookID, studentID)
}

// SendManualReminder reminds the holder of a book. Unless force is set a
// reminder is delivered at most once per issue.
func (s *Service) SendManualReminder(ctx context.Context, issueID string, force bool) (string, error) {
	var options []reminder.EvalOption
	if force {
		options = append(options, reminder.WithForce())
	}
	outcome, err := s.evaluator.Evaluate(ctx, issueID, options...)
	if err != nil {
		return "", err
	}
	if outcome.Status == reminder.StatusAlreadySent {
		return "Reminder already sent for " + issueID, nil
	}
	return "Email sent successfully to " + outcome.Recipient, nil
}

func (s *Service) ListIssues(ctx context.Context) ([]models.Issue, error) {
	return s.engine.ListIssues(ctx)
}

// Overdue lists active issues past their due date today
func (s *Service) Overdue(ctx context.Context) ([]models.Issue, error) {
	return s.engine.Overdue(ctx, s.now())
}

// Verify reports books whose issued flag disagrees with the issues
func (s *Service) Verify(ctx context.Context) ([]lending.Violation, error) {
	return s.engine.Verify(ctx)
}

func (s *Service) ListLogs(ctx context.Context) ([]models.LogEntry, error) {
	return s.recorder.List(ctx)
}
