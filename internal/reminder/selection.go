package reminder

import (
	"sort"
	"time"

	"lendingdesk/internal/models"
)

// SelectDue picks the issues a scheduled sweep should remind.
//
// Selection rules:
// 1. Closed issues are skipped
// 2. Issues already reminded are skipped
// 3. Issues without a usable due date are skipped; a missing due date is
//    issue date plus loanDays
// 4. An issue is selected once asOf is within leadDays of its due date,
//    so overdue issues are always selected
// 5. The result is ordered by due date, then by book id
func SelectDue(issues []models.Issue, asOf time.Time, leadDays, loanDays int) []models.Issue {
	if leadDays < 0 {
		leadDays = 0
	}
	horizon := models.AddDays(asOf, leadDays)

	type candidate struct {
		issue models.Issue
		due   time.Time
	}
	var selected []candidate
	for _, issue := range issues {
		if !issue.Active() || issue.ReminderSent {
			continue
		}
		due, err := issue.DueIn(loanDays)
		if err != nil {
			continue
		}
		if due.After(horizon) {
			continue
		}
		selected = append(selected, candidate{issue: issue, due: due})
	}

	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].due.Equal(selected[j].due) {
			return selected[i].due.Before(selected[j].due)
		}
		return selected[i].issue.BookID < selected[j].issue.BookID
	})

	result := make([]models.Issue, 0, len(selected))
	for _, c := range selected {
		result = append(result, c.issue)
	}
	return result
}
