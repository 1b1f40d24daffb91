package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lendingdesk/internal/failure"
	"lendingdesk/internal/models"
)

type bookRequest struct {
	ID       string `json:"id" form:"id" validate:"required"`
	Title    string `json:"title" form:"title" validate:"required"`
	Author   string `json:"author" form:"author"`
	Category string `json:"category" form:"category"`
	Quantity int    `json:"quantity" form:"quantity" validate:"gte=0"`
}

func (r bookRequest) book() models.Book {
	return models.Book{
		ID:       r.ID,
		Title:    r.Title,
		Author:   r.Author,
		Category: r.Category,
		Quantity: r.Quantity,
	}
}

type studentRequest struct {
	ID    string `json:"id" form:"id" validate:"required"`
	Name  string `json:"name" form:"name" validate:"required"`
	Email string `json:"email" form:"email" validate:"omitempty,email"`
}

type issueRequest struct {
	BookID    string `json:"bookId" form:"bookId" validate:"required"`
	StudentID string `json:"studentId" form:"studentId" validate:"required"`
}

type returnRequest struct {
	StudentID string `json:"studentId" form:"studentId"`
}

// statusOf maps an error kind to an HTTP status
func statusOf(err error) int {
	switch failure.KindOf(err) {
	case failure.NotFound:
		return http.StatusNotFound
	case failure.Conflict:
		return http.StatusConflict
	case failure.Invalid:
		return http.StatusBadRequest
	case failure.DeliveryFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c echo.Context, op string, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		return c.JSON(status, echo.Map{"message": "internal error", "code": failure.CodeOf(err)})
	}
	s.logger.Debug("Request rejected", zap.String("op", op), zap.Error(err))
	return c.JSON(status, echo.Map{"message": err.Error(), "code": failure.CodeOf(err)})
}

// bind decodes and validates a request; the returned error is an *echo.HTTPError
func (s *Server) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.v.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	return nil
}

// GET /api/books
func (s *Server) listBooks(c echo.Context) error {
	books, err := s.lib.ListBooks(c.Request().Context())
	if err != nil {
		return s.fail(c, "list books", err)
	}
	return c.JSON(http.StatusOK, books)
}

// POST /api/books
func (s *Server) addBook(c echo.Context) error {
	var req bookRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	book, err := s.lib.AddBook(c.Request().Context(), req.book())
	if err != nil {
		return s.fail(c, "add book", err)
	}
	return c.JSON(http.StatusCreated, book)
}

// PUT /api/books/:id
func (s *Server) updateBook(c echo.Context) error {
	var req bookRequest
	req.ID = c.Param("id")
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if req.ID != c.Param("id") {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "id in body does not match path"})
	}
	book, err := s.lib.UpdateBook(c.Request().Context(), req.book())
	if err != nil {
		return s.fail(c, "update book", err)
	}
	return c.JSON(http.StatusOK, book)
}

// DELETE /api/books/:id
func (s *Server) deleteBook(c echo.Context) error {
	removed, err := s.lib.DeleteBook(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "delete book", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": removed})
}

// POST /api/seed-books
func (s *Server) seedBooks(c echo.Context) error {
	added, err := s.lib.SeedBooks(c.Request().Context())
	if err != nil {
		return s.fail(c, "seed books", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Branch-wise books added", "added": len(added)})
}

// GET /api/students
func (s *Server) listStudents(c echo.Context) error {
	students, err := s.lib.ListStudents(c.Request().Context())
	if err != nil {
		return s.fail(c, "list students", err)
	}
	return c.JSON(http.StatusOK, students)
}

// POST /api/students
func (s *Server) addStudent(c echo.Context) error {
	var req studentRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	student, err := s.lib.RegisterStudent(c.Request().Context(), models.Student{ID: req.ID, Name: req.Name, Email: req.Email})
	if err != nil {
		return s.fail(c, "register student", err)
	}
	return c.JSON(http.StatusCreated, student)
}

// DELETE /api/students/:id
func (s *Server) deleteStudent(c echo.Context) error {
	removed, err := s.lib.DeleteStudent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, "delete student", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": removed})
}

// GET /api/issues
func (s *Server) listIssues(c echo.Context) error {
	issues, err := s.lib.ListIssues(c.Request().Context())
	if err != nil {
		return s.fail(c, "list issues", err)
	}
	return c.JSON(http.StatusOK, issues)
}

// GET /api/issues/overdue
func (s *Server) overdue(c echo.Context) error {
	issues, err := s.lib.Overdue(c.Request().Context())
	if err != nil {
		return s.fail(c, "list overdue", err)
	}
	return c.JSON(http.StatusOK, issues)
}

// GET /api/issues/verify
func (s *Server) verify(c echo.Context) error {
	violations, err := s.lib.Verify(c.Request().Context())
	if err != nil {
		return s.fail(c, "verify", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"consistent": len(violations) == 0, "violations": violations})
}

// POST /api/issue
func (s *Server) issue(c echo.Context) error {
	var req issueRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	issue, err := s.lib.IssueBook(c.Request().Context(), req.BookID, req.StudentID)
	if err != nil {
		return s.fail(c, "issue", err)
	}
	return c.JSON(http.StatusCreated, issue)
}

// POST /api/return/:id
func (s *Server) returnBook(c echo.Context) error {
	var req returnRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}
	}
	if req.StudentID == "" {
		req.StudentID = c.QueryParam("studentId")
	}

	msg, err := s.lib.ReturnBook(c.Request().Context(), c.Param("id"), req.StudentID)
	if err != nil {
		return s.fail(c, "return", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// POST /api/remind/:bookId?force=true
func (s *Server) remind(c echo.Context) error {
	force := false
	if raw := c.QueryParam("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid force flag"})
		}
		force = parsed
	}

	msg, err := s.lib.SendManualReminder(c.Request().Context(), c.Param("bookId"), force)
	if err != nil {
		return s.fail(c, "remind", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// GET /api/logs
func (s *Server) listLogs(c echo.Context) error {
	logs, err := s.lib.ListLogs(c.Request().Context())
	if err != nil {
		return s.fail(c, "list logs", err)
	}
	return c.JSON(http.StatusOK, logs)
}
