package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/finance"
	"github.com/shule/backend/core/staff"
	"github.com/shule/backend/core/student"
	"github.com/shule/backend/core/timetable"
	"github.com/shule/backend/core/user"
)

// ServerDeps is filled by the dig container, or by hand in tests.
type ServerDeps struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	UserSvc      *user.Service
	AcademicSvc  *academic.Service
	TimetableSvc *timetable.Service
	FinanceSvc   *finance.Service
	StaffSvc     *staff.Service
	StudentSvc   *student.Service
	Validate     *validator.Validate
	Translator   ut.Translator
}

type Server struct {
	app      *echo.Echo
	conf     *core.Config
	logger   core.Logger
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		conf:     deps.Conf,
		logger:   deps.Logger,
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	} else {
		s.app.Logger.SetLevel(log.WARN)
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	bnd := binder{validate: deps.Validate, translator: deps.Translator}

	registerUserAPI(v1, jwt, s.auth, deps.UserSvc, bnd)
	registerAcademicAPI(v1, jwt, deps.AcademicSvc, bnd)
	registerTimetableAPI(v1, jwt, deps.TimetableSvc, bnd)
	registerFinanceAPI(v1, jwt, deps.FinanceSvc, bnd)
	registerStaffAPI(v1, jwt, deps.StaffSvc, bnd)
	registerStudentAPI(v1, jwt, deps.StudentSvc, bnd)
}

// Start blocks until the server stops; errors other than a clean shutdown are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
