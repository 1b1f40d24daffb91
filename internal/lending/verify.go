package lending

import (
	"context"
	"fmt"
	"sort"
)

// Violation describes a book whose availability flag disagrees with its issues
type Violation struct {
	BookID string `json:"bookId"`
	Reason string `json:"reason"`
}

// Verify checks that every book is marked issued exactly when it has an
// active issue, and that the holder matches.
func (e *Engine) Verify(ctx context.Context) ([]Violation, error) {
	books, err := e.inv.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	active, err := e.ActiveIssues(ctx)
	if err != nil {
		return nil, err
	}

	holders := make(map[string]string, len(active))
	for _, issue := range active {
		holders[issue.BookID] = issue.StudentID
	}

	var violations []Violation
	for _, book := range books {
		holder, onLoan := holders[book.ID]
		delete(holders, book.ID)

		switch {
		case book.Issued && !onLoan:
			violations = append(violations, Violation{BookID: book.ID, Reason: "marked issued without an active issue"})
		case !book.Issued && onLoan:
			violations = append(violations, Violation{BookID: book.ID, Reason: fmt.Sprintf("active issue to %q but marked available", holder)})
		case onLoan && book.IssuedTo != holder:
			violations = append(violations, Violation{BookID: book.ID, Reason: fmt.Sprintf("issued to %q but active issue belongs to %q", book.IssuedTo, holder)})
		}
	}

	missing := make([]string, 0, len(holders))
	for bookID := range holders {
		missing = append(missing, bookID)
	}
	sort.Strings(missing)
	for _, bookID := range missing {
		violations = append(violations, Violation{BookID: bookID, Reason: fmt.Sprintf("active issue to %q for a missing book", holders[bookID])})
	}
	return violations, nil
}
