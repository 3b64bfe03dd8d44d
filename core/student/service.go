package student

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/user"
)

var (
	// errors
	ErrProfileNotFound    = core.NewNotFoundError("student profile")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrAttendanceNotFound = core.NewNotFoundError("attendance")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (Profile, error)
		// QueryProfiles returns profiles ordered by last then first name.
		QueryProfiles(ctx context.Context, filter ProfileFilter, exec ...core.DBExecutor) ([]Profile, error)
		// UserProfileExists reports whether another profile (id != excludeID) belongs to the user.
		UserProfileExists(ctx context.Context, userID, excludeID string, exec ...core.DBExecutor) (bool, error)

		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		// QueryEnrollments returns enrollments ordered by enrollment time, latest first.
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		// EnrollmentExists reports whether another enrollment (id != excludeID) places the student in the year.
		EnrollmentExists(ctx context.Context, studentID, yearID, excludeID string, exec ...core.DBExecutor) (bool, error)

		CreateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		UpdateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		GetAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (Attendance, error)
		// QueryAttendance returns records ordered by date, latest first.
		QueryAttendance(ctx context.Context, filter AttendanceFilter, exec ...core.DBExecutor) ([]Attendance, error)
		// AttendanceExists reports whether another record (id != excludeID) exists for the student on that day.
		AttendanceExists(ctx context.Context, studentID string, date core.Date, excludeID string, exec ...core.DBExecutor) (bool, error)
	}

	UserReader interface {
		GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error)
	}

	AcademicReader interface {
		GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error)
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Term, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (academic.SchoolClass, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Section, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		users    UserReader
		academic AcademicReader
	}
)

func NewService(tx core.Transactor, repo Repository, users UserReader, acad AcademicReader) *Service {
	return &Service{tx: tx, repo: repo, users: users, academic: acad}
}

// Profiles

func (svc *Service) CreateProfile(ctx context.Context, np NewProfile) (Profile, error) {
	now := nowFunc().UTC()
	p := Profile{CreatedAt: now}
	np.apply(&p)
	p.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkProfile(ctx, p, exec); err != nil {
			return err
		}
		var err error
		p, err = svc.repo.CreateProfile(ctx, p, exec)
		return errors.Wrap(err, "creating student profile")
	})
	return p, err
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, np NewProfile) (Profile, error) {
	var p Profile
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetProfile(ctx, id, exec); err != nil {
			return err
		}
		np.apply(&p)
		p.UpdatedAt = nowFunc().UTC()
		if err = svc.checkProfile(ctx, p, exec); err != nil {
			return err
		}
		p, err = svc.repo.UpdateProfile(ctx, p, exec)
		return errors.Wrap(err, "updating student profile")
	})
	return p, err
}

func (np NewProfile) apply(p *Profile) {
	p.UserID = np.UserID
	p.FirstName = np.FirstName
	p.MiddleName = np.MiddleName
	p.LastName = np.LastName
	p.DateOfBirth = np.DateOfBirth
	p.Gender = np.Gender
	p.Religion = np.Religion
}

// checkProfile allows profiles without a login; a linked user holds at most one profile.
func (svc *Service) checkProfile(ctx context.Context, p Profile, exec core.DBExecutor) error {
	if p.UserID == nil {
		return nil
	}
	if _, err := svc.users.GetUser(ctx, user.GetFilter{ID: *p.UserID}, exec); err != nil {
		return refError(err, user.ErrNotFound, "user_id")
	}
	exists, err := svc.repo.UserProfileExists(ctx, *p.UserID, p.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking student profile uniqueness")
	}
	if exists {
		return core.NewConflictError("student_profile", "", "user_id", msgUserHasProfile)
	}
	return nil
}

func (svc *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *Service) ListProfiles(ctx context.Context, filter ProfileFilter) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx, filter)
}

// Enrollments

// Enroll places a student in a class for a year; a student has one enrollment per year.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	now := nowFunc().UTC()
	e := Enrollment{IsActive: true, EnrolledOn: now}
	ne.apply(&e)
	e.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkEnrollment(ctx, e, exec); err != nil {
			return err
		}
		var err error
		e, err = svc.repo.CreateEnrollment(ctx, e, exec)
		return errors.Wrap(err, "creating enrollment")
	})
	return e, err
}

// UpdateEnrollment leaves attendance already marked under the enrollment unchanged.
func (svc *Service) UpdateEnrollment(ctx context.Context, id string, ne NewEnrollment) (Enrollment, error) {
	var e Enrollment
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if e, err = svc.repo.GetEnrollment(ctx, id, exec); err != nil {
			return err
		}
		ne.apply(&e)
		e.UpdatedAt = nowFunc().UTC()
		if err = svc.checkEnrollment(ctx, e, exec); err != nil {
			return err
		}
		e, err = svc.repo.UpdateEnrollment(ctx, e, exec)
		return errors.Wrap(err, "updating enrollment")
	})
	return e, err
}

func (ne NewEnrollment) apply(e *Enrollment) {
	e.StudentID = ne.StudentID
	e.AcademicYearID = ne.AcademicYearID
	e.ClassID = ne.ClassID
	e.SectionID = ne.SectionID
	if ne.IsActive != nil {
		e.IsActive = *ne.IsActive
	}
}

func (svc *Service) checkEnrollment(ctx context.Context, e Enrollment, exec core.DBExecutor) error {
	if _, err := svc.repo.GetProfile(ctx, e.StudentID, exec); err != nil {
		return refError(err, ErrProfileNotFound, "student_id")
	}
	if _, err := svc.academic.GetAcademicYear(ctx, e.AcademicYearID, exec); err != nil {
		return refError(err, academic.ErrAcademicYearNotFound, "academic_year_id")
	}
	if _, err := svc.academic.GetClass(ctx, e.ClassID, exec); err != nil {
		return refError(err, academic.ErrClassNotFound, "class_id")
	}
	if e.SectionID != nil {
		section, err := svc.academic.GetSection(ctx, *e.SectionID, exec)
		if err != nil {
			return refError(err, academic.ErrSectionNotFound, "section_id")
		}
		if section.ClassID != e.ClassID {
			return core.NewFieldError("section_id", msgSectionClass)
		}
	}
	exists, err := svc.repo.EnrollmentExists(ctx, e.StudentID, e.AcademicYearID, e.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking enrollment uniqueness")
	}
	if exists {
		return core.NewConflictError("enrollment", "", "academic_year_id", msgAlreadyEnrolled)
	}
	return nil
}

func (svc *Service) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

// StudentEnrollments returns the student's enrollments, latest first.
func (svc *Service) StudentEnrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	if _, err := svc.repo.GetProfile(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: studentID})
}

// Attendance

// MarkAttendance records a student's day against an active enrollment, once per day.
func (svc *Service) MarkAttendance(ctx context.Context, na NewAttendance, markedBy *string) (Attendance, error) {
	var a Attendance
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		a, err = svc.markAttendance(ctx, na, markedBy, exec)
		return err
	})
	return a, err
}

func (svc *Service) markAttendance(ctx context.Context, na NewAttendance, markedBy *string, exec core.DBExecutor) (Attendance, error) {
	now := nowFunc().UTC()
	a := Attendance{MarkedBy: markedBy, CreatedAt: now}
	na.apply(&a)
	a.UpdatedAt = now
	if err := svc.checkAttendance(ctx, &a, exec); err != nil {
		return Attendance{}, err
	}
	a, err := svc.repo.CreateAttendance(ctx, a, exec)
	return a, errors.Wrap(err, "creating attendance")
}

func (svc *Service) UpdateAttendance(ctx context.Context, id string, na NewAttendance) (Attendance, error) {
	var a Attendance
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.GetAttendance(ctx, id, exec); err != nil {
			return err
		}
		na.apply(&a)
		a.UpdatedAt = nowFunc().UTC()
		if err = svc.checkAttendance(ctx, &a, exec); err != nil {
			return err
		}
		a, err = svc.repo.UpdateAttendance(ctx, a, exec)
		return errors.Wrap(err, "updating attendance")
	})
	return a, err
}

func (na NewAttendance) apply(a *Attendance) {
	a.EnrollmentID = na.EnrollmentID
	a.TermID = na.TermID
	a.Date = na.Date
	a.Status = na.Status
	a.Remarks = na.Remarks
}

// checkAttendance fills a's placement from its enrollment.
func (svc *Service) checkAttendance(ctx context.Context, a *Attendance, exec core.DBExecutor) error {
	e, err := svc.repo.GetEnrollment(ctx, a.EnrollmentID, exec)
	if err != nil {
		return refError(err, ErrEnrollmentNotFound, "enrollment_id")
	}
	if !e.IsActive {
		return core.NewFieldError("enrollment_id", msgEnrollmentClosed)
	}
	term, err := svc.academic.GetTerm(ctx, a.TermID, exec)
	if err != nil {
		return refError(err, academic.ErrTermNotFound, "term_id")
	}
	if err = CheckAttendanceTerm(e, term, a.Date); err != nil {
		return err
	}
	a.ApplyEnrollment(e)

	exists, err := svc.repo.AttendanceExists(ctx, a.StudentID, a.Date, a.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking attendance uniqueness")
	}
	if exists {
		return core.NewConflictError("student_attendance", "", "date", fmt.Sprintf(msgAttendanceMarked, a.Date))
	}
	return nil
}

// BulkMarkAttendance marks each record in its own transaction; failures are collected, not fatal.
// validate must report struct validation failures as core.ValidationError.
func (svc *Service) BulkMarkAttendance(ctx context.Context, records []NewAttendance, validate func(*NewAttendance) error, markedBy *string) (BulkAttendanceResult, error) {
	if len(records) == 0 {
		return BulkAttendanceResult{}, core.NewFieldError("attendances", "attendances array is required")
	}

	res := BulkAttendanceResult{Created: []Attendance{}, Errors: []BulkAttendanceError{}}
	for i := range records {
		na := records[i]
		var a Attendance
		err := validate(&na)
		if err == nil {
			err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
				var err error
				a, err = svc.markAttendance(ctx, na, markedBy, exec)
				return err
			})
		}
		if err != nil {
			fields, ok := core.ClientErrorFields(err)
			if !ok {
				return BulkAttendanceResult{}, err
			}
			res.Errors = append(res.Errors, BulkAttendanceError{Index: i, Data: na, Errors: fields})
			continue
		}
		res.Created = append(res.Created, a)
	}
	res.Summary = BulkSummary{Total: len(records), Created: len(res.Created), Failed: len(res.Errors)}
	return res, nil
}

func (svc *Service) GetAttendance(ctx context.Context, id string) (Attendance, error) {
	return svc.repo.GetAttendance(ctx, id)
}

func (svc *Service) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, filter)
}

// ClassAttendance returns the class register for one day.
func (svc *Service) ClassAttendance(ctx context.Context, classID string, date *core.Date) ([]Attendance, error) {
	if classID == "" || date == nil {
		return nil, core.NewFieldError("non_field_errors", msgClassDateRequired)
	}
	return svc.repo.QueryAttendance(ctx, AttendanceFilter{ClassID: classID, Date: date})
}

// StudentAttendance returns the student's records, optionally limited to [from, to].
func (svc *Service) StudentAttendance(ctx context.Context, studentID string, from, to *core.Date) ([]Attendance, error) {
	if _, err := svc.repo.GetProfile(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, AttendanceFilter{StudentID: studentID, From: from, To: to})
}

// AttendanceSummary summarizes the records matching filter.
func (svc *Service) AttendanceSummary(ctx context.Context, filter AttendanceFilter) (AttendanceSummary, error) {
	records, err := svc.repo.QueryAttendance(ctx, filter)
	if err != nil {
		return AttendanceSummary{}, err
	}
	return Summarize(records), nil
}

func refError(err, notFound error, field string) error {
	if errors.Cause(err) == notFound {
		return core.NewFieldError(field, notFound.Error())
	}
	return errors.Wrapf(err, "getting %s", field)
}
