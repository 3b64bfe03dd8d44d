package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/student"
)

const (
	studentColumns           = `id, user_id, first_name, middle_name, last_name, dob, gender, religion, created_at, updated_at`
	enrollmentColumns        = `id, student_id, academic_year_id, class_id, section_id, enrolled_on, is_active, updated_at`
	studentAttendanceColumns = `id, student_id, enrollment_id, academic_year_id, term_id, class_id, section_id, date, status,
		remarks, marked_by, created_at, updated_at`
)

var (
	studentConstraints    = map[string]string{"student_profile_user_id_key": "user_id"}
	enrollmentConstraints = map[string]string{"enrollment_student_year_key": "academic_year_id"}
	registerConstraints   = map[string]string{"student_attendance_day_key": "date"}
)

type studentRepository struct {
	baseRepository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{baseRepository{exec: exec}}
}

// Profiles

func (repo studentRepository) CreateProfile(ctx context.Context, p student.Profile, exec ...core.DBExecutor) (student.Profile, error) {
	p.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO student_profile (`+studentColumns+`)
		VALUES (:id, :user_id, :first_name, :middle_name, :last_name, :dob, :gender, :religion, :created_at, :updated_at)`, p)
	if err = trapUniqueViolation(err, "student_profile", studentConstraints); err != nil {
		return student.Profile{}, errors.Wrap(err, "inserting student profile")
	}
	return p, nil
}

func (repo studentRepository) UpdateProfile(ctx context.Context, p student.Profile, exec ...core.DBExecutor) (student.Profile, error) {
	err := namedUpdate(ctx, repo.getExec(exec), student.ErrProfileNotFound, `
		UPDATE student_profile SET user_id = :user_id, first_name = :first_name, middle_name = :middle_name,
			last_name = :last_name, dob = :dob, gender = :gender, religion = :religion, updated_at = :updated_at
		WHERE id = :id`, p)
	if err = trapUniqueViolation(err, "student_profile", studentConstraints); err != nil {
		return student.Profile{}, wrapGet(err, student.ErrProfileNotFound, "updating student profile")
	}
	return p, nil
}

func (repo studentRepository) GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (student.Profile, error) {
	var p student.Profile
	err := get(ctx, repo.getExec(exec), &p, student.ErrProfileNotFound,
		`SELECT `+studentColumns+` FROM student_profile WHERE id = ?`, id)
	if err != nil {
		return student.Profile{}, wrapGet(err, student.ErrProfileNotFound, "selecting student profile")
	}
	return p, nil
}

func (repo studentRepository) QueryProfiles(ctx context.Context, filter student.ProfileFilter, exec ...core.DBExecutor) ([]student.Profile, error) {
	w := &where{}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		w.add("(first_name ILIKE ? OR last_name ILIKE ?)", pattern, pattern)
	}
	res := make([]student.Profile, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+studentColumns+` FROM student_profile`+w.String()+` ORDER BY last_name, first_name`, w.args...)
	return res, errors.Wrap(err, "selecting student profiles")
}

func (repo studentRepository) UserProfileExists(ctx context.Context, userID, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM student_profile WHERE user_id::text = ? AND id::text <> ?`, userID, excludeID)
}

// Enrollments

func (repo studentRepository) CreateEnrollment(ctx context.Context, e student.Enrollment, exec ...core.DBExecutor) (student.Enrollment, error) {
	e.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO enrollment (`+enrollmentColumns+`)
		VALUES (:id, :student_id, :academic_year_id, :class_id, :section_id, :enrolled_on, :is_active, :updated_at)`, e)
	if err = trapUniqueViolation(err, "enrollment", enrollmentConstraints); err != nil {
		return student.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo studentRepository) UpdateEnrollment(ctx context.Context, e student.Enrollment, exec ...core.DBExecutor) (student.Enrollment, error) {
	err := namedUpdate(ctx, repo.getExec(exec), student.ErrEnrollmentNotFound, `
		UPDATE enrollment SET student_id = :student_id, academic_year_id = :academic_year_id, class_id = :class_id,
			section_id = :section_id, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, e)
	if err = trapUniqueViolation(err, "enrollment", enrollmentConstraints); err != nil {
		return student.Enrollment{}, wrapGet(err, student.ErrEnrollmentNotFound, "updating enrollment")
	}
	return e, nil
}

func (repo studentRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (student.Enrollment, error) {
	var e student.Enrollment
	err := get(ctx, repo.getExec(exec), &e, student.ErrEnrollmentNotFound,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE id = ?`, id)
	if err != nil {
		return student.Enrollment{}, wrapGet(err, student.ErrEnrollmentNotFound, "selecting enrollment")
	}
	return e, nil
}

func (repo studentRepository) QueryEnrollments(ctx context.Context, filter student.EnrollmentFilter, exec ...core.DBExecutor) ([]student.Enrollment, error) {
	w := &where{}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.AcademicYearID != "" {
		w.add("academic_year_id::text = ?", filter.AcademicYearID)
	}
	if filter.ClassID != "" {
		w.add("class_id::text = ?", filter.ClassID)
	}
	if filter.SectionID != "" {
		w.add("section_id::text = ?", filter.SectionID)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	res := make([]student.Enrollment, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+enrollmentColumns+` FROM enrollment`+w.String()+` ORDER BY enrolled_on DESC`, w.args...)
	return res, errors.Wrap(err, "selecting enrollments")
}

func (repo studentRepository) EnrollmentExists(ctx context.Context, studentID, yearID, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM enrollment WHERE student_id::text = ? AND academic_year_id::text = ? AND id::text <> ?`,
		studentID, yearID, excludeID)
}

// Attendance

func (repo studentRepository) CreateAttendance(ctx context.Context, a student.Attendance, exec ...core.DBExecutor) (student.Attendance, error) {
	a.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO student_attendance (`+studentAttendanceColumns+`)
		VALUES (:id, :student_id, :enrollment_id, :academic_year_id, :term_id, :class_id, :section_id, :date, :status,
			:remarks, :marked_by, :created_at, :updated_at)`, a)
	if err = trapUniqueViolation(err, "student_attendance", registerConstraints); err != nil {
		return student.Attendance{}, errors.Wrap(err, "inserting student attendance")
	}
	return a, nil
}

func (repo studentRepository) UpdateAttendance(ctx context.Context, a student.Attendance, exec ...core.DBExecutor) (student.Attendance, error) {
	err := namedUpdate(ctx, repo.getExec(exec), student.ErrAttendanceNotFound, `
		UPDATE student_attendance SET student_id = :student_id, enrollment_id = :enrollment_id,
			academic_year_id = :academic_year_id, term_id = :term_id, class_id = :class_id, section_id = :section_id,
			date = :date, status = :status, remarks = :remarks, updated_at = :updated_at
		WHERE id = :id`, a)
	if err = trapUniqueViolation(err, "student_attendance", registerConstraints); err != nil {
		return student.Attendance{}, wrapGet(err, student.ErrAttendanceNotFound, "updating student attendance")
	}
	return a, nil
}

func (repo studentRepository) GetAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (student.Attendance, error) {
	var a student.Attendance
	err := get(ctx, repo.getExec(exec), &a, student.ErrAttendanceNotFound,
		`SELECT `+studentAttendanceColumns+` FROM student_attendance WHERE id = ?`, id)
	if err != nil {
		return student.Attendance{}, wrapGet(err, student.ErrAttendanceNotFound, "selecting student attendance")
	}
	return a, nil
}

func (repo studentRepository) QueryAttendance(ctx context.Context, filter student.AttendanceFilter, exec ...core.DBExecutor) ([]student.Attendance, error) {
	w := &where{}
	for _, ref := range []struct{ col, val string }{
		{"student_id", filter.StudentID},
		{"enrollment_id", filter.EnrollmentID},
		{"academic_year_id", filter.AcademicYearID},
		{"term_id", filter.TermID},
		{"class_id", filter.ClassID},
		{"section_id", filter.SectionID},
	} {
		if ref.val != "" {
			w.add(ref.col+"::text = ?", ref.val)
		}
	}
	if filter.Date != nil {
		w.add("date = ?", *filter.Date)
	}
	if filter.From != nil {
		w.add("date >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("date <= ?", *filter.To)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	res := make([]student.Attendance, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+studentAttendanceColumns+` FROM student_attendance`+w.String()+` ORDER BY date DESC, created_at DESC`,
		w.args...)
	return res, errors.Wrap(err, "selecting student attendance")
}

func (repo studentRepository) AttendanceExists(ctx context.Context, studentID string, date core.Date, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM student_attendance WHERE student_id::text = ? AND date = ? AND id::text <> ?`,
		studentID, date, excludeID)
}
