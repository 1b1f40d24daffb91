package models

import (
	"fmt"
	"time"
)

// DateLayout is the persisted calendar-date format
const DateLayout = "2006-01-02"

// TimestampLayout is the persisted local date-time format for log entries
const TimestampLayout = "2006-01-02T15:04:05.000"

// LoanDays is the default loan period in calendar days
const LoanDays = 14

// Book represents a catalog entry
type Book struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Issued   bool   `json:"issued"`
	IssuedTo string `json:"issuedTo"`
}

// Issuable reports whether the book can be lent right now
func (b Book) Issuable() bool {
	return b.Quantity > 0 && !b.Issued
}

// Student represents a library member
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HasEmail reports whether reminders can be addressed to the student
func (s Student) HasEmail() bool {
	return s.Email != ""
}

// Issue represents one lending transaction.
// The active issue of a book is stored under the book id.
type Issue struct {
	BookID       string  `json:"bookId"`
	BookTitle    string  `json:"bookTitle"`
	StudentID    string  `json:"studentId"`
	StudentName  string  `json:"studentName"`
	IssueDate    string  `json:"issueDate"`
	DueDate      string  `json:"dueDate"`
	ReturnDate   *string `json:"returnDate"`
	ReminderSent bool    `json:"reminderSent"`
}

// Active reports whether the issue is still outstanding
func (i Issue) Active() bool {
	return i.ReturnDate == nil
}

// Due returns the due date, recomputing it from the issue date with the
// default loan period when absent
func (i Issue) Due() (time.Time, error) {
	return i.DueIn(LoanDays)
}

// DueIn returns the due date, falling back to issue date plus loanDays
func (i Issue) DueIn(loanDays int) (time.Time, error) {
	if i.DueDate != "" {
		return ParseDate(i.DueDate)
	}
	issued, err := ParseDate(i.IssueDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("issue %s has no usable dates: %w", i.BookID, err)
	}
	return AddDays(issued, loanDays), nil
}

// Overdue reports whether an active issue is past its due date on asOf
func (i Issue) Overdue(asOf time.Time) bool {
	return i.OverdueIn(asOf, LoanDays)
}

// OverdueIn is Overdue with loanDays as the fallback loan period
func (i Issue) OverdueIn(asOf time.Time, loanDays int) bool {
	if !i.Active() {
		return false
	}
	due, err := i.DueIn(loanDays)
	if err != nil {
		return false
	}
	return due.Before(Day(asOf))
}

// SameLoan reports whether other describes the same lending of the same book
func (i Issue) SameLoan(other Issue) bool {
	return i.BookID == other.BookID && i.StudentID == other.StudentID && i.IssueDate == other.IssueDate
}

// ActionType enumerates audited actions
type ActionType string

const (
	ActionAddBook       ActionType = "ADD_BOOK"
	ActionUpdateBook    ActionType = "UPDATE_BOOK"
	ActionDeleteBook    ActionType = "DELETE_BOOK"
	ActionRegister      ActionType = "REGISTER"
	ActionDeleteStudent ActionType = "DELETE_STUDENT"
	ActionIssue         ActionType = "ISSUE"
	ActionReturn        ActionType = "RETURN"
	ActionRemind        ActionType = "REMIND"
	ActionSeedBooks     ActionType = "SEED_BOOKS"
)

// LogEntry represents one audit trail record
type LogEntry struct {
	Timestamp   string     `json:"timestamp"`
	ActionType  ActionType `json:"actionType"`
	Description string     `json:"description"`
	Actor       string     `json:"user"`
}

// Day truncates t to midnight in its own location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays adds calendar days to the date part of t
func AddDays(t time.Time, days int) time.Time {
	return Day(t).AddDate(0, 0, days)
}

// FormatDate renders t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string in the local time zone
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
