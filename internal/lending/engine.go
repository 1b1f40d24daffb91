package lending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lendingdesk/internal/failure"
	"lendingdesk/internal/keylock"
	"lendingdesk/internal/models"
	"lendingdesk/internal/storage"
)

// ReturnedMessage is the confirmation returned by a successful return
const ReturnedMessage = "Book returned successfully"

// archiveSeparator joins a book id and a unique suffix for closed issues
const archiveSeparator = "@"

// Inventory is the subset of the inventory store the engine relies on
type Inventory interface {
	GetBook(ctx context.Context, id string) (models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	MutateBook(ctx context.Context, id string, fn func(*models.Book) error) (models.Book, error)
	RemoveBook(ctx context.Context, id string) (bool, error)
	GetStudent(ctx context.Context, id string) (models.Student, error)
	RemoveStudent(ctx context.Context, id string) (bool, error)
}

// Recorder receives audit entries
type Recorder interface {
	Record(ctx context.Context, action models.ActionType, description, actor string)
}

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Engine runs the issue/return state machine.
// Issue and return on one book are serialized; different books proceed in parallel.
type Engine struct {
	db       storage.DocumentStore
	inv      Inventory
	recorder Recorder
	logger   *zap.Logger
	clock    Clock
	loanDays int

	locks keylock.Map
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the wall clock
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLoanDays overrides the loan period
func WithLoanDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.loanDays = days
		}
	}
}

// New creates a lending engine. Issues are stored in db.
func New(db storage.DocumentStore, inv Inventory, recorder Recorder, logger *zap.Logger, options ...Option) *Engine {
	e := &Engine{
		db:       db,
		inv:      inv,
		recorder: recorder,
		logger:   logger,
		clock:    ClockFunc(time.Now),
		loanDays: models.LoanDays,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func bookKey(id string) string    { return "book/" + id }
func studentKey(id string) string { return "student/" + id }

// BookIDOf returns the book id an issue id refers to
func BookIDOf(issueID string) string {
	bookID, _, _ := strings.Cut(issueID, archiveSeparator)
	return bookID
}

// Issue lends a book to a student
func (e *Engine) Issue(ctx context.Context, bookID, studentID string) (models.Issue, error) {
	if bookID == "" || studentID == "" {
		return models.Issue{}, failure.ErrInvalidID
	}

	unlockBook := e.locks.Lock(bookKey(bookID))
	defer unlockBook()
	unlockStudent := e.locks.Lock(studentKey(studentID))
	defer unlockStudent()

	book, err := e.inv.GetBook(ctx, bookID)
	if err != nil {
		return models.Issue{}, err
	}
	student, err := e.inv.GetStudent(ctx, studentID)
	if err != nil {
		return models.Issue{}, err
	}
	if book.Issued {
		return models.Issue{}, failure.Withf(failure.ErrAlreadyIssued, "book %q", bookID)
	}
	if book.Quantity <= 0 {
		return models.Issue{}, failure.Withf(failure.ErrBookUnavailable, "book %q", bookID)
	}

	prev, found, err := e.loadIssue(ctx, bookID)
	if err != nil {
		return models.Issue{}, err
	}
	if found && prev.Active() {
		e.logger.Error("Active issue found for a book marked available",
			zap.String("book_id", bookID),
			zap.String("student_id", prev.StudentID),
		)
		return models.Issue{}, failure.Withf(failure.ErrAlreadyIssued, "book %q", bookID)
	}

	now := e.clock.Now()
	issue := models.Issue{
		BookID:      bookID,
		BookTitle:   book.Title,
		StudentID:   studentID,
		StudentName: student.Name,
		IssueDate:   models.FormatDate(now),
		DueDate:     models.FormatDate(models.AddDays(now, e.loanDays)),
	}

	// keep the closed issue before it is replaced
	archiveID := ""
	if found {
		archiveID = bookID + archiveSeparator + uuid.NewString()
		if err := storage.Save(ctx, e.db, storage.Issues, archiveID, prev); err != nil {
			return models.Issue{}, failure.Store("archive issue", err)
		}
	}

	if err := storage.Save(ctx, e.db, storage.Issues, bookID, issue); err != nil {
		e.discardArchive(ctx, archiveID)
		return models.Issue{}, failure.Store("save issue", err)
	}

	_, err = e.inv.MutateBook(ctx, bookID, func(b *models.Book) error {
		if b.Issued {
			return failure.Withf(failure.ErrAlreadyIssued, "book %q", bookID)
		}
		if b.Quantity <= 0 {
			return failure.Withf(failure.ErrBookUnavailable, "book %q", bookID)
		}
		b.Issued = true
		b.IssuedTo = studentID
		return nil
	})
	if err != nil {
		e.restoreIssue(ctx, bookID, prev, found)
		e.discardArchive(ctx, archiveID)
		return models.Issue{}, err
	}

	e.recorder.Record(ctx, models.ActionIssue, fmt.Sprintf("Issued %s to %s", book.Title, student.Name), "")
	e.logger.Info("Book issued",
		zap.String("book_id", bookID),
		zap.String("student_id", studentID),
		zap.String("due_date", issue.DueDate),
	)
	return issue, nil
}

// Return closes the active issue of a book without checking who returns it
func (e *Engine) Return(ctx context.Context, bookID string) (string, error) {
	return e.returnBook(ctx, bookID, "")
}

// ReturnFrom closes the active issue of a book if it is held by studentID
func (e *Engine) ReturnFrom(ctx context.Context, bookID, studentID string) (string, error) {
	if studentID == "" {
		return "", failure.ErrInvalidID
	}
	return e.returnBook(ctx, bookID, studentID)
}

func (e *Engine) returnBook(ctx context.Context, bookID, studentID string) (string, error) {
	if bookID == "" {
		return "", failure.ErrInvalidID
	}

	unlock := e.locks.Lock(bookKey(bookID))
	defer unlock()

	issue, found, err := e.loadIssue(ctx, bookID)
	if err != nil {
		return "", err
	}
	if !found || !issue.Active() {
		return "", failure.Withf(failure.ErrIssueNotFound, "book %q", bookID)
	}
	if studentID != "" && issue.StudentID != studentID {
		return "", failure.Withf(failure.ErrNotIssuedToStudent, "book %q, student %q", bookID, studentID)
	}

	returned := models.FormatDate(e.clock.Now())
	if returned < issue.IssueDate {
		// local clock went behind the recorded issue date
		returned = issue.IssueDate
	}
	closed := issue
	closed.ReturnDate = &returned

	if err := storage.Save(ctx, e.db, storage.Issues, bookID, closed); err != nil {
		return "", failure.Store("save issue", err)
	}

	_, err = e.inv.MutateBook(ctx, bookID, func(b *models.Book) error {
		b.Issued = false
		b.IssuedTo = ""
		return nil
	})
	switch {
	case errors.Is(err, failure.ErrBookNotFound):
		e.logger.Warn("Returned book no longer in inventory", zap.String("book_id", bookID))
	case err != nil:
		e.restoreIssue(ctx, bookID, issue, true)
		return "", err
	}

	e.recorder.Record(ctx, models.ActionReturn, fmt.Sprintf("Returned %s", issue.BookTitle), "")
	e.logger.Info("Book returned",
		zap.String("book_id", bookID),
		zap.String("student_id", issue.StudentID),
	)
	return ReturnedMessage, nil
}

// GetIssue returns an issue by id; the active issue of a book has the book id
func (e *Engine) GetIssue(ctx context.Context, issueID string) (models.Issue, error) {
	issue, found, err := e.loadIssue(ctx, issueID)
	if err != nil {
		return models.Issue{}, err
	}
	if !found {
		return models.Issue{}, failure.Withf(failure.ErrIssueNotFound, "issue %q", issueID)
	}
	return issue, nil
}

// MarkReminderSent sets the reminder flag of an issue. reminded is the issue
// the reminder was composed from; if the stored issue is no longer that
// loan (returned or lent again in the meantime) nothing is written and
// ErrIssueNotFound is returned.
func (e *Engine) MarkReminderSent(ctx context.Context, issueID string, reminded models.Issue) error {
	unlock := e.locks.Lock(bookKey(BookIDOf(issueID)))
	defer unlock()

	issue, err := e.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	if !issue.Active() || !issue.SameLoan(reminded) {
		return failure.Withf(failure.ErrIssueNotFound, "issue %q changed since the reminder was composed", issueID)
	}
	if issue.ReminderSent {
		return nil
	}
	issue.ReminderSent = true
	if err := storage.Save(ctx, e.db, storage.Issues, issueID, issue); err != nil {
		return failure.Store("save issue", err)
	}
	return nil
}

// RemoveBook deletes a book unless it is on loan
func (e *Engine) RemoveBook(ctx context.Context, bookID string) (bool, error) {
	unlock := e.locks.Lock(bookKey(bookID))
	defer unlock()

	issue, found, err := e.loadIssue(ctx, bookID)
	if err != nil {
		return false, err
	}
	if found && issue.Active() {
		return false, failure.Withf(failure.ErrBookIssued, "book %q is issued to %q", bookID, issue.StudentID)
	}
	return e.inv.RemoveBook(ctx, bookID)
}

// RemoveStudent deletes a student unless they hold a book
func (e *Engine) RemoveStudent(ctx context.Context, studentID string) (bool, error) {
	unlock := e.locks.Lock(studentKey(studentID))
	defer unlock()

	active, err := e.ActiveIssues(ctx)
	if err != nil {
		return false, err
	}
	for _, issue := range active {
		if issue.StudentID == studentID {
			return false, failure.Withf(failure.ErrStudentHasLoans, "student %q holds book %q", studentID, issue.BookID)
		}
	}
	return e.inv.RemoveStudent(ctx, studentID)
}

// ListIssues returns every issue, active and closed
func (e *Engine) ListIssues(ctx context.Context) ([]models.Issue, error) {
	issues, err := storage.LoadAll[models.Issue](ctx, e.db, storage.Issues)
	if err != nil {
		return nil, failure.Store("list issues", err)
	}
	return issues, nil
}

// ActiveIssues returns the issues that have not been returned
func (e *Engine) ActiveIssues(ctx context.Context) ([]models.Issue, error) {
	issues, err := e.ListIssues(ctx)
	if err != nil {
		return nil, err
	}
	active := issues[:0]
	for _, issue := range issues {
		if issue.Active() {
			active = append(active, issue)
		}
	}
	return active, nil
}

// Overdue returns active issues whose due date is before asOf
func (e *Engine) Overdue(ctx context.Context, asOf time.Time) ([]models.Issue, error) {
	active, err := e.ActiveIssues(ctx)
	if err != nil {
		return nil, err
	}
	var overdue []models.Issue
	for _, issue := range active {
		if issue.OverdueIn(asOf, e.loanDays) {
			overdue = append(overdue, issue)
		}
	}
	return overdue, nil
}

func (e *Engine) loadIssue(ctx context.Context, id string) (models.Issue, bool, error) {
	issue, err := storage.Load[models.Issue](ctx, e.db, storage.Issues, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Issue{}, false, nil
		}
		return models.Issue{}, false, failure.Store("get issue", err)
	}
	return issue, true, nil
}

// restoreIssue puts back the issue document that existed before a failed mutation
func (e *Engine) restoreIssue(ctx context.Context, bookID string, prev models.Issue, existed bool) {
	var err error
	if existed {
		err = storage.Save(ctx, e.db, storage.Issues, bookID, prev)
	} else {
		err = e.db.Delete(ctx, storage.Issues, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			err = nil
		}
	}
	if err != nil {
		e.logger.Error("Failed to roll back issue", zap.String("book_id", bookID), zap.Error(err))
	}
}

func (e *Engine) discardArchive(ctx context.Context, archiveID string) {
	if archiveID == "" {
		return
	}
	if err := e.db.Delete(ctx, storage.Issues, archiveID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.logger.Error("Failed to discard archived issue", zap.String("issue_id", archiveID), zap.Error(err))
	}
}
