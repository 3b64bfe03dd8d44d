package dig_container

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/shule/backend/apps/api/echo"
	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/finance"
	"github.com/shule/backend/core/staff"
	"github.com/shule/backend/core/student"
	"github.com/shule/backend/core/timetable"
	"github.com/shule/backend/core/user"
	"github.com/shule/backend/services/email"
	"github.com/shule/backend/services/logger"
	"github.com/shule/backend/services/scheduler"
	"github.com/shule/backend/storage/database"
	"github.com/shule/backend/storage/database/inmem"
	"github.com/shule/backend/storage/database/sqlxrepos"
)

const dbSetupTimeout = 30 * time.Second

type Options struct {
	// InMemory swaps Postgres for the in-process store; data is lost on exit.
	InMemory bool
}

// Storage is every repository the services need, backed by one store.
type Storage struct {
	dig.Out

	Tx        core.Transactor
	Seq       core.Sequencer
	Users     user.Repository
	Academic  academic.Repository
	Timetable timetable.Repository
	Finance   finance.Repository
	Staff     staff.Repository
	Students  student.Repository
	Closer    StorageCloser
}

type StorageCloser func() error

func newLogger(conf *core.Config, zl *zap.SugaredLogger) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newSQLStorage(conf *core.Config) (Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return Storage{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return Storage{}, errors.Wrap(err, "opening database")
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return Storage{}, err
	}
	return Storage{
		Tx:        database.NewTransactor(db),
		Seq:       sqlxrepos.NewSequencer(db),
		Users:     sqlxrepos.NewUserRepository(db),
		Academic:  sqlxrepos.NewAcademicRepository(db),
		Timetable: sqlxrepos.NewTimetableRepository(db),
		Finance:   sqlxrepos.NewFinanceRepository(db),
		Staff:     sqlxrepos.NewStaffRepository(db),
		Students:  sqlxrepos.NewStudentRepository(db),
		Closer:    db.Close,
	}, nil
}

func newInmemStorage() Storage {
	db := inmemdb.Open()
	return Storage{
		Tx:        db,
		Seq:       db,
		Users:     inmemdb.NewUserRepository(db),
		Academic:  inmemdb.NewAcademicRepository(db),
		Timetable: inmemdb.NewTimetableRepository(db),
		Finance:   inmemdb.NewFinanceRepository(db),
		Staff:     inmemdb.NewStaffRepository(db),
		Students:  inmemdb.NewStudentRepository(db),
		Closer:    func() error { return nil },
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newTimetableService(tx core.Transactor, repo timetable.Repository, acad academic.Repository) *timetable.Service {
	return timetable.NewService(tx, repo, acad)
}

func newFinanceService(
	conf *core.Config,
	tx core.Transactor,
	repo finance.Repository,
	acad academic.Repository,
	seq core.Sequencer,
	mailer core.EmailService,
) *finance.Service {
	return finance.NewService(tx, repo, acad, seq, mailer, conf.Finance)
}

func newStaffService(
	conf *core.Config,
	tx core.Transactor,
	repo staff.Repository,
	users user.Repository,
	acad academic.Repository,
) *staff.Service {
	return staff.NewService(tx, repo, users, acad, conf.Staff)
}

func newStudentService(
	tx core.Transactor,
	repo student.Repository,
	users user.Repository,
	acad academic.Repository,
) *student.Service {
	return student.NewService(tx, repo, users, acad)
}

func newScheduler(conf *core.Config, fin *finance.Service, logger core.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(conf, fin, logger)
}

// New returns a new dependency injection dig.Container
func New(opts Options) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZap))
	must(c.Provide(newLogger))
	if opts.InMemory {
		must(c.Provide(newInmemStorage))
	} else {
		must(c.Provide(newSQLStorage))
	}
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(newTimetableService))
	must(c.Provide(newFinanceService))
	must(c.Provide(newStaffService))
	must(c.Provide(newStudentService))
	must(c.Provide(newScheduler))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
