// Package reminder decides whether an issue gets a return reminder and
// delivers it through a Sender.
package reminder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lendingdesk/internal/failure"
	"lendingdesk/internal/keylock"
	"lendingdesk/internal/models"
)

// Status is the result of one evaluation
type Status string

const (
	StatusSent           Status = "sent"
	StatusAlreadySent    Status = "already_sent"
	StatusDeliveryFailed Status = "delivery_failed"
)

// Outcome describes what an evaluation did
type Outcome struct {
	Status    Status `json:"status"`
	Recipient string `json:"recipient,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Issues is the part of the lending engine the evaluator reads and flags
type Issues interface {
	GetIssue(ctx context.Context, issueID string) (models.Issue, error)
	MarkReminderSent(ctx context.Context, issueID string, reminded models.Issue) error
}

// Students resolves the recipient of a reminder
type Students interface {
	GetStudent(ctx context.Context, id string) (models.Student, error)
}

// Recorder receives an audit entry per delivered reminder
type Recorder interface {
	Record(ctx context.Context, action models.ActionType, description, actor string)
}

// Evaluator sends at most one reminder per issue unless forced
type Evaluator struct {
	issues   Issues
	students Students
	sender   Sender
	recorder Recorder
	logger   *zap.Logger
	loanDays int

	locks keylock.Map
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithRecorder records a REMIND entry for every delivered reminder
func WithRecorder(recorder Recorder) Option {
	return func(e *Evaluator) { e.recorder = recorder }
}

// WithLoanDays sets the loan period used when an issue lacks a due date
func WithLoanDays(days int) Option {
	return func(e *Evaluator) {
		if days > 0 {
			e.loanDays = days
		}
	}
}

// NewEvaluator creates an evaluator. A nil sender makes every delivery fail.
func NewEvaluator(issues Issues, students Students, sender Sender, logger *zap.Logger, options ...Option) *Evaluator {
	e := &Evaluator{
		issues:   issues,
		students: students,
		sender:   sender,
		logger:   logger,
		loanDays: models.LoanDays,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

type evalOptions struct {
	force bool
}

// EvalOption tunes a single evaluation
type EvalOption func(*evalOptions)

// WithForce sends even if a reminder was already delivered
func WithForce() EvalOption {
	return func(o *evalOptions) { o.force = true }
}

// Evaluate reminds the holder of an issue. issueID is a book id for the
// active issue of that book.
func (e *Evaluator) Evaluate(ctx context.Context, issueID string, options ...EvalOption) (Outcome, error) {
	var opts evalOptions
	for _, option := range options {
		option(&opts)
	}
	if issueID == "" {
		return Outcome{}, failure.ErrInvalidID
	}

	unlock := e.locks.Lock(issueID)
	defer unlock()

	issue, err := e.issues.GetIssue(ctx, issueID)
	if err != nil {
		return Outcome{}, err
	}
	if !issue.Active() {
		return Outcome{}, failure.Withf(failure.ErrIssueNotFound, "issue %q is closed", issueID)
	}
	if issue.ReminderSent && !opts.force {
		return Outcome{Status: StatusAlreadySent}, nil
	}

	student, err := e.students.GetStudent(ctx, issue.StudentID)
	if err != nil {
		return Outcome{}, err
	}
	if !student.HasEmail() {
		return Outcome{}, failure.Withf(failure.ErrMissingEmail, "student %q", student.ID)
	}

	due, err := issue.DueIn(e.loanDays)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to compute due date: %w", err)
	}
	msg := Compose(student.Email, student.Name, issue.BookTitle, models.FormatDate(due))

	if e.sender == nil {
		return Outcome{Status: StatusDeliveryFailed, Reason: "email config missing"}, failure.Delivery("email config missing")
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		e.logger.Warn("Reminder delivery failed",
			zap.String("issue_id", issueID),
			zap.String("recipient", student.Email),
			zap.Error(err),
		)
		return Outcome{Status: StatusDeliveryFailed, Reason: err.Error()}, failure.Delivery(err.Error())
	}

	err = e.issues.MarkReminderSent(ctx, issueID, issue)
	switch {
	case failure.Is(err, failure.NotFound):
		// returned or lent again during delivery; the new loan keeps its flag clear
		e.logger.Warn("Issue changed during reminder delivery, flag not set",
			zap.String("issue_id", issueID),
			zap.String("recipient", student.Email),
		)
	case err != nil:
		// delivered but not flagged; a later sweep may send again
		e.logger.Error("Failed to flag reminder as sent", zap.String("issue_id", issueID), zap.Error(err))
		return Outcome{Status: StatusSent, Recipient: student.Email}, err
	}

	if e.recorder != nil {
		e.recorder.Record(ctx, models.ActionRemind, fmt.Sprintf("Reminder sent to %s for %s", student.Email, issue.BookTitle), "")
	}
	e.logger.Info("Reminder sent",
		zap.String("issue_id", issueID),
		zap.String("recipient", student.Email),
	)
	return Outcome{Status: StatusSent, Recipient: student.Email}, nil
}
