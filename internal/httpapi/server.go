// Package httpapi serves the library over REST with echo.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lendingdesk/internal/lending"
	"lendingdesk/internal/models"
)

// Library is the service the handlers call
type Library interface {
	AddBook(ctx context.Context, book models.Book) (models.Book, error)
	UpdateBook(ctx context.Context, book models.Book) (models.Book, error)
	GetBook(ctx context.Context, id string) (models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	DeleteBook(ctx context.Context, id string) (bool, error)
	SeedBooks(ctx context.Context) ([]models.Book, error)

	RegisterStudent(ctx context.Context, student models.Student) (models.Student, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	DeleteStudent(ctx context.Context, id string) (bool, error)

	IssueBook(ctx context.Context, bookID, studentID string) (models.Issue, error)
	ReturnBook(ctx context.Context, bookID, studentID string) (string, error)
	SendManualReminder(ctx context.Context, issueID string, force bool) (string, error)
	ListIssues(ctx context.Context) ([]models.Issue, error)
	Overdue(ctx context.Context) ([]models.Issue, error)
	Verify(ctx context.Context) ([]lending.Violation, error)
	ListLogs(ctx context.Context) ([]models.LogEntry, error)
}

// Credentials protect the /api routes with HTTP basic auth.
// An empty PasswordHash disables auth.
type Credentials struct {
	User         string
	PasswordHash string
}

// Server wraps an echo instance serving the library
type Server struct {
	echo   *echo.Echo
	lib    Library
	v      *validator.Validate
	logger *zap.Logger
}

// New creates a server with all routes registered
func New(lib Library, creds Credentials, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		lib:    lib,
		v:      validator.New(),
		logger: logger,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(s.requestLogger())

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	api := e.Group("/api")
	if creds.PasswordHash != "" {
		api.Use(basicAuth(creds, logger))
	}
	s.registerRoutes(api)

	return s
}

func (s *Server) registerRoutes(api *echo.Group) {
	api.GET("/books", s.listBooks)
	api.POST("/books", s.addBook)
	api.PUT("/books/:id", s.updateBook)
	api.DELETE("/books/:id", s.deleteBook)
	api.POST("/seed-books", s.seedBooks)
	api.GET("/seed-books", s.seedBooks)

	api.GET("/students", s.listStudents)
	api.POST("/students", s.addStudent)
	api.DELETE("/students/:id", s.deleteStudent)

	api.GET("/issues", s.listIssues)
	api.GET("/issues/overdue", s.overdue)
	api.GET("/issues/verify", s.verify)
	api.POST("/issue", s.issue)
	api.POST("/return/:id", s.returnBook)
	api.POST("/remind/:bookId", s.remind)
	api.POST("/reminder/:bookId", s.remind)

	api.GET("/logs", s.listLogs)
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	s.echo.Server.ReadTimeout = 10 * time.Second
	s.echo.Server.WriteTimeout = 10 * time.Second
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			s.logger.Info("http",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Int64("latency_ms", time.Since(start).Milliseconds()),
				zap.String("req_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}

func basicAuth(creds Credentials, logger *zap.Logger) echo.MiddlewareFunc {
	hash := []byte(creds.PasswordHash)
	return middleware.BasicAuth(func(user, password string, c echo.Context) (bool, error) {
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(creds.User)) == 1
		passOK := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
		if !userOK || !passOK {
			logger.Warn("Unauthorized access attempt",
				zap.String("user", user),
				zap.String("remote_addr", c.RealIP()),
			)
			return false, nil
		}
		return true, nil
	})
}
