// Package inventory keeps the authoritative book and student records.
//
// Every write goes through a per-record critical section, so a successful add
// is visible to all later reads and concurrent writers replace whole records.
// Whether a record may be removed while referenced by a loan is decided by the
// lending engine, not here.
package inventory

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"lendingdesk/internal/failure"
	"lendingdesk/internal/keylock"
	"lendingdesk/internal/models"
	"lendingdesk/internal/storage"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Store is the inventory of books and students
type Store struct {
	db     storage.DocumentStore
	locks  keylock.Map
	logger *zap.Logger
}

// New creates an inventory backed by db
func New(db storage.DocumentStore, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func bookKey(id string) string    { return "book/" + id }
func studentKey(id string) string { return "student/" + id }

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// AddBook stores a new book. Lending state on the input is ignored.
func (s *Store) AddBook(ctx context.Context, book models.Book) (models.Book, error) {
	book.ID = clean(book.ID)
	if book.ID == "" {
		return models.Book{}, failure.ErrInvalidID
	}
	if book.Quantity < 0 {
		return models.Book{}, failure.ErrInvalidQuantity
	}
	book.Title = clean(book.Title)
	book.Author = clean(book.Author)
	book.Category = clean(book.Category)
	book.Issued = false
	book.IssuedTo = ""

	unlock := s.locks.Lock(bookKey(book.ID))
	defer unlock()

	if err := s.ensureAbsent(ctx, storage.Books, book.ID); err != nil {
		return models.Book{}, err
	}
	if err := storage.Save(ctx, s.db, storage.Books, book.ID, book); err != nil {
		return models.Book{}, failure.Store("add book", err)
	}

	s.logger.Debug("Book added", zap.String("book_id", book.ID))
	return book, nil
}

// GetBook returns a book by id
func (s *Store) GetBook(ctx context.Context, id string) (models.Book, error) {
	book, err := storage.Load[models.Book](ctx, s.db, storage.Books, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Book{}, failure.Withf(failure.ErrBookNotFound, "id %q", id)
		}
		return models.Book{}, failure.Store("get book", err)
	}
	return book, nil
}

// ListBooks returns all books ordered by id
func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	books, err := storage.LoadAll[models.Book](ctx, s.db, storage.Books)
	if err != nil {
		return nil, failure.Store("list books", err)
	}
	return books, nil
}

// RemoveBook deletes a book, reporting whether it existed
func (s *Store) RemoveBook(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(bookKey(id))
	defer unlock()

	return s.remove(ctx, storage.Books, id)
}

// UpdateBook replaces the catalog fields of an existing book.
// Lending state is preserved.
func (s *Store) UpdateBook(ctx context.Context, book models.Book) (models.Book, error) {
	if book.Quantity < 0 {
		return models.Book{}, failure.ErrInvalidQuantity
	}
	return s.MutateBook(ctx, clean(book.ID), func(current *models.Book) error {
		current.Title = clean(book.Title)
		current.Author = clean(book.Author)
		current.Category = clean(book.Category)
		current.Quantity = book.Quantity
		return nil
	})
}

// MutateBook applies fn to a book as one atomic read-modify-write.
// Nothing is written when fn fails.
func (s *Store) MutateBook(ctx context.Context, id string, fn func(*models.Book) error) (models.Book, error) {
	if id == "" {
		return models.Book{}, failure.ErrInvalidID
	}

	unlock := s.locks.Lock(bookKey(id))
	defer unlock()

	book, err := s.GetBook(ctx, id)
	if err != nil {
		return models.Book{}, err
	}
	if err := fn(&book); err != nil {
		return models.Book{}, err
	}
	book.ID = id
	if err := storage.Save(ctx, s.db, storage.Books, id, book); err != nil {
		return models.Book{}, failure.Store("update book", err)
	}
	return book, nil
}

// AddStudent registers a new student
func (s *Store) AddStudent(ctx context.Context, student models.Student) (models.Student, error) {
	student.ID = clean(student.ID)
	if student.ID == "" {
		return models.Student{}, failure.ErrInvalidID
	}
	student.Name = clean(student.Name)
	student.Email = strings.TrimSpace(student.Email)

	unlock := s.locks.Lock(studentKey(student.ID))
	defer unlock()

	if err := s.ensureAbsent(ctx, storage.Students, student.ID); err != nil {
		return models.Student{}, err
	}
	if err := storage.Save(ctx, s.db, storage.Students, student.ID, student); err != nil {
		return models.Student{}, failure.Store("add student", err)
	}

	s.logger.Debug("Student added", zap.String("student_id", student.ID))
	return student, nil
}

// GetStudent returns a student by id
func (s *Store) GetStudent(ctx context.Context, id string) (models.Student, error) {
	student, err := storage.Load[models.Student](ctx, s.db, storage.Students, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Student{}, failure.Withf(failure.ErrStudentNotFound, "id %q", id)
		}
		return models.Student{}, failure.Store("get student", err)
	}
	return student, nil
}

// ListStudents returns all students ordered by id
func (s *Store) ListStudents(ctx context.Context) ([]models.Student, error) {
	students, err := storage.LoadAll[models.Student](ctx, s.db, storage.Students)
	if err != nil {
		return nil, failure.Store("list students", err)
	}
	return students, nil
}

// RemoveStudent deletes a student, reporting whether it existed
func (s *Store) RemoveStudent(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(studentKey(id))
	defer unlock()

	return s.remove(ctx, storage.Students, id)
}

// SeedCatalog adds the embedded starter catalog, skipping ids already present
func (s *Store) SeedCatalog(ctx context.Context) ([]models.Book, error) {
	books, err := parseCatalog(catalogYAML)
	if err != nil {
		return nil, err
	}

	added := make([]models.Book, 0, len(books))
	for _, b := range books {
		book, err := s.AddBook(ctx, b)
		if err != nil {
			if errors.Is(err, failure.ErrDuplicateID) {
				s.logger.Debug("Seed book already present", zap.String("book_id", b.ID))
				continue
			}
			return added, err
		}
		added = append(added, book)
	}
	return added, nil
}

type catalogFile struct {
	Books []struct {
		ID       string `yaml:"id"`
		Title    string `yaml:"title"`
		Author   string `yaml:"author"`
		Category string `yaml:"category"`
		Quantity int    `yaml:"quantity"`
	} `yaml:"books"`
}

func parseCatalog(data []byte) ([]models.Book, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	books := make([]models.Book, 0, len(f.Books))
	for _, b := range f.Books {
		books = append(books, models.Book{
			ID:       b.ID,
			Title:    b.Title,
			Author:   b.Author,
			Category: b.Category,
			Quantity: b.Quantity,
		})
	}
	return books, nil
}

func (s *Store) ensureAbsent(ctx context.Context, collection storage.Collection, id string) error {
	_, err := s.db.Get(ctx, collection, id)
	switch {
	case err == nil:
		return failure.Withf(failure.ErrDuplicateID, "%s %q", collection, id)
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return failure.Store("check "+string(collection), err)
	}
}

func (s *Store) remove(ctx context.Context, collection storage.Collection, id string) (bool, error) {
	if err := s.db.Delete(ctx, collection, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, failure.Store("delete "+string(collection), err)
	}
	return true, nil
}
