package inmemdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/finance"
	"github.com/shule/backend/core/staff"
	"github.com/shule/backend/core/student"
	"github.com/shule/backend/core/timetable"
	"github.com/shule/backend/core/user"
)

type (
	// DB is a process-local store, used by tests and the API's `-inmem` mode.
	// Each domain's tables share one RWMutex; WithinTx serializes transactions
	// but does not roll back: services validate before they write.
	DB struct {
		txMu sync.Mutex

		user      *userTables
		academic  *academicTables
		timetable *timetableTables
		finance   *financeTables
		staff     *staffTables
		student   *studentTables
		seq       *sequenceTable
	}

	userTables struct {
		mutex sync.RWMutex
		users map[string]user.User
	}

	academicTables struct {
		mutex       sync.RWMutex
		years       map[string]academic.AcademicYear
		terms       map[string]academic.Term
		classes     map[string]academic.SchoolClass
		sections    map[string]academic.Section
		subjects    map[string]academic.Subject
		assignments map[string]academic.TeacherAssignment
	}

	timetableTables struct {
		mutex      sync.RWMutex
		slots      map[string]timetable.TimeSlot
		timetables map[string]timetable.Timetable
		entries    map[string]timetable.Entry
	}

	financeTables struct {
		mutex         sync.RWMutex
		feeStructures map[string]finance.FeeStructure
		invoices      map[string]finance.Invoice
		items         map[string]finance.InvoiceItem
		payments      map[string]finance.Payment
		expenses      map[string]finance.Expense
		budgets       map[string]finance.Budget
	}

	staffTables struct {
		mutex      sync.RWMutex
		profiles   map[string]staff.Profile
		leaves     map[string]staff.Leave
		attendance map[string]staff.Attendance
		payrolls   map[string]staff.Payroll
	}

	studentTables struct {
		mutex       sync.RWMutex
		profiles    map[string]student.Profile
		enrollments map[string]student.Enrollment
		attendance  map[string]student.Attendance
	}

	sequenceTable struct {
		mutex sync.Mutex
		last  map[string]int64
	}
)

var (
	_ core.Transactor = (*DB)(nil)
	_ core.Sequencer  = (*DB)(nil)
)

func Open() *DB {
	return &DB{
		user: &userTables{users: make(map[string]user.User)},
		academic: &academicTables{
			years:       make(map[string]academic.AcademicYear),
			terms:       make(map[string]academic.Term),
			classes:     make(map[string]academic.SchoolClass),
			sections:    make(map[string]academic.Section),
			subjects:    make(map[string]academic.Subject),
			assignments: make(map[string]academic.TeacherAssignment),
		},
		timetable: &timetableTables{
			slots:      make(map[string]timetable.TimeSlot),
			timetables: make(map[string]timetable.Timetable),
			entries:    make(map[string]timetable.Entry),
		},
		finance: &financeTables{
			feeStructures: make(map[string]finance.FeeStructure),
			invoices:      make(map[string]finance.Invoice),
			items:         make(map[string]finance.InvoiceItem),
			payments:      make(map[string]finance.Payment),
			expenses:      make(map[string]finance.Expense),
			budgets:       make(map[string]finance.Budget),
		},
		staff: &staffTables{
			profiles:   make(map[string]staff.Profile),
			leaves:     make(map[string]staff.Leave),
			attendance: make(map[string]staff.Attendance),
			payrolls:   make(map[string]staff.Payroll),
		},
		student: &studentTables{
			profiles:    make(map[string]student.Profile),
			enrollments: make(map[string]student.Enrollment),
			attendance:  make(map[string]student.Attendance),
		},
		seq: &sequenceTable{last: make(map[string]int64)},
	}
}

// WithinTx runs fn with a nil executor, one transaction at a time.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(nil)
}

func (db *DB) Next(ctx context.Context, name string, scope int, _ ...core.DBExecutor) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db.seq.mutex.Lock()
	defer db.seq.mutex.Unlock()

	key := fmt.Sprintf("%s:%d", name, scope)
	db.seq.last[key]++
	return db.seq.last[key], nil
}

func newID() string {
	return uuid.New().String()
}
