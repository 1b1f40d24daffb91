package lending

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lendingdesk/internal/failure"
	"lendingdesk/internal/inventory"
	"lendingdesk/internal/models"
	"lendingdesk/internal/storage"
	"lendingdesk/internal/storage/stubs"
)

type recorderSpy struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorderSpy) Record(ctx context.Context, action models.ActionType, description, actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, string(action)+": "+description)
}

func (r *recorderSpy) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

type fixture struct {
	engine   *Engine
	inv      *inventory.Store
	db       *stubs.FaultyDB
	recorder *recorderSpy
	now      time.Time
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	mock := stubs.NewMockDB()
	require.NoError(t, mock.Initialize(context.Background()))
	db := stubs.NewFaultyDB(mock)

	f := &fixture{
		db:       db,
		inv:      inventory.New(db, zap.NewNop()),
		recorder: &recorderSpy{},
		now:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local),
	}
	options = append([]Option{WithClock(ClockFunc(func() time.Time { return f.now }))}, options...)
	f.engine = New(db, f.inv, f.recorder, zap.NewNop(), options...)
	return f
}

func (f *fixture) addBook(t *testing.T, id string, quantity int) {
	t.Helper()
	_, err := f.inv.AddBook(context.Background(), models.Book{ID: id, Title: "Title " + id, Quantity: quantity})
	require.NoError(t, err)
}

func (f *fixture) addStudent(t *testing.T, id, email string) {
	t.Helper()
	_, err := f.inv.AddStudent(context.Background(), models.Student{ID: id, Name: "Name " + id, Email: email})
	require.NoError(t, err)
}

func (f *fixture) book(t *testing.T, id string) models.Book {
	t.Helper()
	b, err := f.inv.GetBook(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	violations, err := f.engine.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "a@b.com")
	f.addStudent(t, "S2", "c@d.com")

	// issue
	issue, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)
	assert.Equal(t, models.Issue{
		BookID:      "B1",
		BookTitle:   "Title B1",
		StudentID:   "S1",
		StudentName: "Name S1",
		IssueDate:   "2024-03-01",
		DueDate:     "2024-03-15",
	}, issue)

	book := f.book(t, "B1")
	assert.True(t, book.Issued)
	assert.Equal(t, "S1", book.IssuedTo)

	// second issue conflicts
	_, err = f.engine.Issue(ctx, "B1", "S2")
	assert.ErrorIs(t, err, failure.ErrAlreadyIssued)
	assert.Equal(t, failure.Conflict, failure.KindOf(err))
	assert.Equal(t, "S1", f.book(t, "B1").IssuedTo)

	// return
	msg, err := f.engine.Return(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, ReturnedMessage, msg)
	book = f.book(t, "B1")
	assert.False(t, book.Issued)
	assert.Empty(t, book.IssuedTo)

	// second return is not found
	_, err = f.engine.Return(ctx, "B1")
	assert.ErrorIs(t, err, failure.ErrIssueNotFound)
	assert.Equal(t, failure.NotFound, failure.KindOf(err))

	f.assertConsistent(t)
	assert.Equal(t, []string{"ISSUE: Issued Title B1 to Name S1", "RETURN: Returned Title B1"}, f.recorder.all())
}

func TestIssue_Failures(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "B1", 1)
	f.addBook(t, "EMPTY", 0)
	f.addStudent(t, "S1", "")

	testCases := []struct {
		name      string
		bookID    string
		studentID string
		err       error
	}{
		{name: "missing book", bookID: "B9", studentID: "S1", err: failure.ErrBookNotFound},
		{name: "missing student", bookID: "B1", studentID: "S9", err: failure.ErrStudentNotFound},
		{name: "book checked before student", bookID: "B9", studentID: "S9", err: failure.ErrBookNotFound},
		{name: "no copies", bookID: "EMPTY", studentID: "S1", err: failure.ErrBookUnavailable},
		{name: "empty book id", bookID: "", studentID: "S1", err: failure.ErrInvalidID},
		{name: "empty student id", bookID: "B1", studentID: "", err: failure.ErrInvalidID},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Issue(context.Background(), tc.bookID, tc.studentID)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	issues, err := f.engine.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Empty(t, f.recorder.all())
}

func TestIssue_DueDateFollowsLoanPeriod(t *testing.T) {
	testCases := []struct {
		name     string
		now      time.Time
		options  []Option
		expected string
	}{
		{name: "default period", now: time.Date(2024, 1, 25, 23, 59, 0, 0, time.Local), expected: "2024-02-08"},
		{name: "leap february", now: time.Date(2024, 2, 20, 8, 0, 0, 0, time.Local), expected: "2024-03-05"},
		{name: "year end", now: time.Date(2024, 12, 25, 8, 0, 0, 0, time.Local), expected: "2025-01-08"},
		{name: "custom period", now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local), options: []Option{WithLoanDays(7)}, expected: "2024-03-08"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.options...)
			f.now = tc.now
			f.addBook(t, "B1", 1)
			f.addStudent(t, "S1", "")

			issue, err := f.engine.Issue(context.Background(), "B1", "S1")
			require.NoError(t, err)
			assert.Equal(t, models.FormatDate(tc.now), issue.IssueDate)
			assert.Equal(t, tc.expected, issue.DueDate)
		})
	}
}

func TestIssue_ConcurrentSameBook(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "B1", 1)

	const callers = 32
	for i := 0; i < callers; i++ {
		f.addStudent(t, fmt.Sprintf("S%02d", i), "")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			<-start
			_, err := f.engine.Issue(context.Background(), "B1", studentID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, studentID)
			case failure.KindOf(err) == failure.Conflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("S%02d", i))
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, winners[0], f.book(t, "B1").IssuedTo)
	f.assertConsistent(t)
}

func TestIssue_ConcurrentDistinctBooks(t *testing.T) {
	f := newFixture(t)
	const books = 24
	for i := 0; i < books; i++ {
		f.addBook(t, fmt.Sprintf("B%02d", i), 1)
	}
	f.addStudent(t, "S1", "")

	var wg sync.WaitGroup
	errs := make([]error, books)
	for i := 0; i < books; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Issue(context.Background(), fmt.Sprintf("B%02d", i), "S1")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "book %d", i)
	}
	active, err := f.engine.ActiveIssues(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, books)
	f.assertConsistent(t)
}

func TestReturnFrom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")
	f.addStudent(t, "S2", "")

	_, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)

	_, err = f.engine.ReturnFrom(ctx, "B1", "S2")
	assert.ErrorIs(t, err, failure.ErrNotIssuedToStudent)
	assert.True(t, f.book(t, "B1").Issued)

	_, err = f.engine.ReturnFrom(ctx, "B1", "")
	assert.ErrorIs(t, err, failure.ErrInvalidID)

	msg, err := f.engine.ReturnFrom(ctx, "B1", "S1")
	require.NoError(t, err)
	assert.Equal(t, ReturnedMessage, msg)
	assert.False(t, f.book(t, "B1").Issued)

	_, err = f.engine.ReturnFrom(ctx, "B1", "S1")
	assert.ErrorIs(t, err, failure.ErrIssueNotFound)
}

func TestReturn_NeverIssued(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "B1", 1)

	_, err := f.engine.Return(context.Background(), "B1")
	assert.ErrorIs(t, err, failure.ErrIssueNotFound)
	assert.False(t, f.book(t, "B1").Issued)
}

func TestReturn_DateNeverPrecedesIssueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")

	_, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)

	f.now = f.now.AddDate(0, 0, -3)
	_, err = f.engine.Return(ctx, "B1")
	require.NoError(t, err)

	issue, err := f.engine.GetIssue(ctx, "B1")
	require.NoError(t, err)
	require.NotNil(t, issue.ReturnDate)
	assert.Equal(t, "2024-03-01", *issue.ReturnDate)
}

func TestReissue_ArchivesClosedIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")
	f.addStudent(t, "S2", "")

	_, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)
	f.now = f.now.AddDate(0, 0, 5)
	_, err = f.engine.Return(ctx, "B1")
	require.NoError(t, err)
	_, err = f.engine.Issue(ctx, "B1", "S2")
	require.NoError(t, err)

	issues, err := f.engine.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	var closed, active int
	for _, issue := range issues {
		if issue.Active() {
			active++
			assert.Equal(t, "S2", issue.StudentID)
		} else {
			closed++
			assert.Equal(t, "S1", issue.StudentID)
			assert.Equal(t, "2024-03-06", *issue.ReturnDate)
		}
	}
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, active)
	f.assertConsistent(t)
}

func TestIssue_RollsBackWhenBookWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")

	f.db.FailNext(stubs.OpPut, storage.Books, 1)
	_, err := f.engine.Issue(ctx, "B1", "S1")
	assert.Equal(t, failure.StoreFailure, failure.KindOf(err))

	_, err = f.engine.GetIssue(ctx, "B1")
	assert.ErrorIs(t, err, failure.ErrIssueNotFound)
	assert.False(t, f.book(t, "B1").Issued)
	assert.Empty(t, f.recorder.all())
	f.assertConsistent(t)

	// a later attempt succeeds
	_, err = f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)
	f.assertConsistent(t)
}

func TestIssue_RollbackRestoresPreviousClosedIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")

	_, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)
	_, err = f.engine.Return(ctx, "B1")
	require.NoError(t, err)

	f.db.FailNext(stubs.OpPut, storage.Books, 1)
	_, err = f.engine.Issue(ctx, "B1", "S1")
	require.Error(t, err)

	issues, err := f.engine.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1, "archived copy is discarded on rollback")
	assert.False(t, issues[0].Active())
	f.assertConsistent(t)
}

func TestIssue_StoreFailureOnIssueWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")

	f.db.FailNext(stubs.OpPut, storage.Issues, 1)
	_, err := f.engine.Issue(ctx, "B1", "S1")
	assert.ErrorIs(t, err, failure.ErrStoreFailure)
	assert.ErrorIs(t, err, stubs.ErrInjected)
	assert.False(t, f.book(t, "B1").Issued)
	f.assertConsistent(t)
}

func TestReturn_RollsBackWhenBookWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")

	_, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)

	f.db.FailNext(stubs.OpPut, storage.Books, 1)
	_, err = f.engine.Return(ctx, "B1")
	assert.Equal(t, failure.StoreFailure, failure.KindOf(err))

	issue, err := f.engine.GetIssue(ctx, "B1")
	require.NoError(t, err)
	assert.True(t, issue.Active())
	assert.True(t, f.book(t, "B1").Issued)
	f.assertConsistent(t)
}

func TestReturn_BookDeletedOutOfBand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")

	_, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)
	// inventory removal is not guarded at the inventory level
	_, err = f.inv.RemoveBook(ctx, "B1")
	require.NoError(t, err)

	_, err = f.engine.Return(ctx, "B1")
	require.NoError(t, err)

	issue, err := f.engine.GetIssue(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, issue.Active())
}

func TestRemoveGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addBook(t, "B2", 1)
	f.addStudent(t, "S1", "")
	f.addStudent(t, "S2", "")

	_, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)

	_, err = f.engine.RemoveBook(ctx, "B1")
	assert.ErrorIs(t, err, failure.ErrBookIssued)
	_, err = f.engine.RemoveStudent(ctx, "S1")
	assert.ErrorIs(t, err, failure.ErrStudentHasLoans)

	removed, err := f.engine.RemoveBook(ctx, "B2")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.engine.RemoveStudent(ctx, "S2")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = f.engine.Return(ctx, "B1")
	require.NoError(t, err)
	removed, err = f.engine.RemoveBook(ctx, "B1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.engine.RemoveStudent(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.engine.RemoveBook(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addBook(t, "B2", 1)
	f.addBook(t, "B3", 1)
	f.addStudent(t, "S1", "")

	_, err := f.engine.Issue(ctx, "B1", "S1") // due 2024-03-15
	require.NoError(t, err)
	_, err = f.engine.Issue(ctx, "B2", "S1")
	require.NoError(t, err)
	_, err = f.engine.Return(ctx, "B2")
	require.NoError(t, err)
	f.now = time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	_, err = f.engine.Issue(ctx, "B3", "S1") // due 2024-03-24
	require.NoError(t, err)

	overdue, err := f.engine.Overdue(ctx, time.Date(2024, 3, 15, 12, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Empty(t, overdue)

	overdue, err = f.engine.Overdue(ctx, time.Date(2024, 3, 16, 12, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "B1", overdue[0].BookID)
}

func TestMarkReminderSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addStudent(t, "S1", "")

	assert.ErrorIs(t, f.engine.MarkReminderSent(ctx, "B1", models.Issue{BookID: "B1"}), failure.ErrIssueNotFound)

	issued, err := f.engine.Issue(ctx, "B1", "S1")
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkReminderSent(ctx, "B1", issued))
	require.NoError(t, f.engine.MarkReminderSent(ctx, "B1", issued))

	issue, err := f.engine.GetIssue(ctx, "B1")
	require.NoError(t, err)
	assert.True(t, issue.ReminderSent)
}

func TestMarkReminderSent_LoanChanged(t *testing.T) {
	testCases := []struct {
		name   string
		change func(t *testing.T, f *fixture)
	}{
		{
			name: "returned",
			change: func(t *testing.T, f *fixture) {
				_, err := f.engine.Return(context.Background(), "B1")
				require.NoError(t, err)
			},
		},
		{
			name: "lent to someone else",
			change: func(t *testing.T, f *fixture) {
				_, err := f.engine.Return(context.Background(), "B1")
				require.NoError(t, err)
				_, err = f.engine.Issue(context.Background(), "B1", "S2")
				require.NoError(t, err)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.addBook(t, "B1", 1)
			f.addStudent(t, "S1", "")
			f.addStudent(t, "S2", "")

			reminded, err := f.engine.Issue(ctx, "B1", "S1")
			require.NoError(t, err)
			tc.change(t, f)

			err = f.engine.MarkReminderSent(ctx, "B1", reminded)
			assert.ErrorIs(t, err, failure.ErrIssueNotFound)

			issue, err := f.engine.GetIssue(ctx, "B1")
			require.NoError(t, err)
			assert.False(t, issue.ReminderSent)
		})
	}
}

func TestOverdue_FallbackUsesLoanDays(t *testing.T) {
	f := newFixture(t, WithLoanDays(7))
	ctx := context.Background()

	// an issue written without a due date
	legacy := models.Issue{BookID: "B1", BookTitle: "Title B1", StudentID: "S1", IssueDate: "2024-03-01"}
	require.NoError(t, storage.Save(ctx, f.db, storage.Issues, "B1", legacy))

	overdue, err := f.engine.Overdue(ctx, time.Date(2024, 3, 8, 12, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Empty(t, overdue)

	overdue, err = f.engine.Overdue(ctx, time.Date(2024, 3, 9, 12, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "B1", overdue[0].BookID)
}

func TestBookIDOf(t *testing.T) {
	assert.Equal(t, "B1", BookIDOf("B1"))
	assert.Equal(t, "B1", BookIDOf("B1@6f1c"))
}

func TestVerify_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "B1", 1)
	f.addBook(t, "B2", 1)
	f.addStudent(t, "S1", "")

	_, err := f.engine.Issue(ctx, "B2", "S1")
	require.NoError(t, err)

	// drift introduced behind the engine's back
	_, err = f.inv.MutateBook(ctx, "B1", func(b *models.Book) error {
		b.Issued = true
		return nil
	})
	require.NoError(t, err)
	_, err = f.inv.MutateBook(ctx, "B2", func(b *models.Book) error {
		b.IssuedTo = "S7"
		return nil
	})
	require.NoError(t, err)

	violations, err := f.engine.Verify(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, "B1", violations[0].BookID)
	assert.Equal(t, "B2", violations[1].BookID)
	assert.True(t, strings.Contains(violations[1].Reason, "S7"))
}

func TestVerify_MissingBooksOrderedByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := []string{"B5", "B3", "B9", "B1", "B7", "B2"}
	f.addStudent(t, "S1", "")
	for _, id := range ids {
		f.addBook(t, id, 1)
		_, err := f.engine.Issue(ctx, id, "S1")
		require.NoError(t, err)
	}

	// books removed behind the engine's back
	for _, id := range ids {
		require.NoError(t, f.db.Delete(ctx, storage.Books, id))
	}

	// map iteration order must not leak into the report
	for i := 0; i < 5; i++ {
		violations, err := f.engine.Verify(ctx)
		require.NoError(t, err)
		require.Len(t, violations, len(ids))

		got := make([]string, 0, len(violations))
		for _, v := range violations {
			got = append(got, v.BookID)
			assert.Contains(t, v.Reason, "missing book")
		}
		assert.Equal(t, []string{"B1", "B2", "B3", "B5", "B7", "B9"}, got)
	}
}

// TestRandomOperationsKeepInvariant runs mixed issue/return traffic and checks
// the issued flag against active issues after every step.
func TestRandomOperationsKeepInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	bookIDs := []string{"B1", "B2", "B3", "B4"}
	studentIDs := []string{"S1", "S2", "S3"}
	for i, id := range bookIDs {
		f.addBook(t, id, i%3) // B1 and B4 have no copies
	}
	for _, id := range studentIDs {
		f.addStudent(t, id, "")
	}

	for step := 0; step < 200; step++ {
		bookID := bookIDs[rng.Intn(len(bookIDs))]
		studentID := studentIDs[rng.Intn(len(studentIDs))]

		before := f.book(t, bookID)
		var err error
		switch rng.Intn(3) {
		case 0:
			_, err = f.engine.Issue(ctx, bookID, studentID)
			if err != nil {
				assert.Equal(t, failure.Conflict, failure.KindOf(err))
				assert.Equal(t, before, f.book(t, bookID), "failed issue leaves state unchanged")
			}
		case 1:
			_, err = f.engine.Return(ctx, bookID)
			if err != nil {
				assert.ErrorIs(t, err, failure.ErrIssueNotFound)
				assert.Equal(t, before, f.book(t, bookID), "failed return leaves state unchanged")
			}
		default:
			_, err = f.engine.ReturnFrom(ctx, bookID, studentID)
			if err != nil {
				assert.Contains(t, []failure.Kind{failure.NotFound, failure.Conflict}, failure.KindOf(err))
			}
		}
		f.now = f.now.Add(6 * time.Hour)

		violations, err := f.engine.Verify(ctx)
		require.NoError(t, err)
		require.Empty(t, violations, "step %d", step)
	}

	assert.False(t, f.book(t, "B1").Issued)
	assert.False(t, f.book(t, "B4").Issued)
}
