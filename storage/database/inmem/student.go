package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/student"
)

type studentRepository struct {
	db *studentTables
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

// Profiles

func (repo *studentRepository) CreateProfile(ctx context.Context, p student.Profile, _ ...core.DBExecutor) (student.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUser(p); err != nil {
		return student.Profile{}, err
	}
	p.ID = newID()
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *studentRepository) UpdateProfile(ctx context.Context, p student.Profile, _ ...core.DBExecutor) (student.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.profiles[p.ID]; !ok {
		return student.Profile{}, student.ErrProfileNotFound
	}
	if err := repo.checkUser(p); err != nil {
		return student.Profile{}, err
	}
	repo.db.profiles[p.ID] = p
	return p, nil
}

// checkUser mirrors the unique user_id column; the caller holds the lock.
func (repo *studentRepository) checkUser(p student.Profile) error {
	if p.UserID == nil {
		return nil
	}
	for _, other := range repo.db.profiles {
		if other.ID != p.ID && other.UserID != nil && *other.UserID == *p.UserID {
			return core.NewConflictError("student_profile", other.ID, "user_id", "a record with this user id already exists")
		}
	}
	return nil
}

func (repo *studentRepository) GetProfile(ctx context.Context, id string, _ ...core.DBExecutor) (student.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return p, nil
	}
	return student.Profile{}, student.ErrProfileNotFound
}

func (repo *studentRepository) QueryProfiles(ctx context.Context, filter student.ProfileFilter, _ ...core.DBExecutor) ([]student.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	res := make([]student.Profile, 0)
	for _, p := range repo.db.profiles {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.FirstName), search) &&
			!strings.Contains(strings.ToLower(p.LastName), search) {
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].LastName != res[j].LastName {
			return res[i].LastName < res[j].LastName
		}
		return res[i].FirstName < res[j].FirstName
	})
	return res, nil
}

func (repo *studentRepository) UserProfileExists(ctx context.Context, userID, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.profiles {
		if p.ID != excludeID && p.UserID != nil && *p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Enrollments

func (repo *studentRepository) CreateEnrollment(ctx context.Context, e student.Enrollment, _ ...core.DBExecutor) (student.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkYear(e); err != nil {
		return student.Enrollment{}, err
	}
	e.ID = newID()
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *studentRepository) UpdateEnrollment(ctx context.Context, e student.Enrollment, _ ...core.DBExecutor) (student.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return student.Enrollment{}, student.ErrEnrollmentNotFound
	}
	if err := repo.checkYear(e); err != nil {
		return student.Enrollment{}, err
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}

// checkYear mirrors the unique (student_id, academic_year_id) key; the caller holds the lock.
func (repo *studentRepository) checkYear(e student.Enrollment) error {
	for _, other := range repo.db.enrollments {
		if other.ID != e.ID && other.StudentID == e.StudentID && other.AcademicYearID == e.AcademicYearID {
			return core.NewConflictError("enrollment", other.ID, "academic_year_id",
				"a record with this academic year id already exists")
		}
	}
	return nil
}

func (repo *studentRepository) GetEnrollment(ctx context.Context, id string, _ ...core.DBExecutor) (student.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok {
		return e, nil
	}
	return student.Enrollment{}, student.ErrEnrollmentNotFound
}

func (repo *studentRepository) QueryEnrollments(ctx context.Context, filter student.EnrollmentFilter, _ ...core.DBExecutor) ([]student.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]student.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		switch {
		case filter.StudentID != "" && e.StudentID != filter.StudentID,
			filter.AcademicYearID != "" && e.AcademicYearID != filter.AcademicYearID,
			filter.ClassID != "" && e.ClassID != filter.ClassID,
			filter.SectionID != "" && (e.SectionID == nil || *e.SectionID != filter.SectionID),
			filter.ActiveOnly && !e.IsActive:
			continue
		}
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EnrolledOn.After(res[j].EnrolledOn) })
	return res, nil
}

func (repo *studentRepository) EnrollmentExists(ctx context.Context, studentID, yearID, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.ID != excludeID && e.StudentID == studentID && e.AcademicYearID == yearID {
			return true, nil
		}
	}
	return false, nil
}

// Attendance

func (repo *studentRepository) CreateAttendance(ctx context.Context, a student.Attendance, _ ...core.DBExecutor) (student.Attendance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkDay(a); err != nil {
		return student.Attendance{}, err
	}
	a.ID = newID()
	repo.db.attendance[a.ID] = a
	return a, nil
}

func (repo *studentRepository) UpdateAttendance(ctx context.Context, a student.Attendance, _ ...core.DBExecutor) (student.Attendance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.attendance[a.ID]; !ok {
		return student.Attendance{}, student.ErrAttendanceNotFound
	}
	if err := repo.checkDay(a); err != nil {
		return student.Attendance{}, err
	}
	repo.db.attendance[a.ID] = a
	return a, nil
}

// checkDay mirrors the unique (student_id, date) key; the caller holds the lock.
func (repo *studentRepository) checkDay(a student.Attendance) error {
	for _, other := range repo.db.attendance {
		if other.ID != a.ID && other.StudentID == a.StudentID && other.Date.Equal(a.Date) {
			return core.NewConflictError("student_attendance", other.ID, "date", "a record with this date already exists")
		}
	}
	return nil
}

func (repo *studentRepository) GetAttendance(ctx context.Context, id string, _ ...core.DBExecutor) (student.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.attendance[id]; ok {
		return a, nil
	}
	return student.Attendance{}, student.ErrAttendanceNotFound
}

func (repo *studentRepository) QueryAttendance(ctx context.Context, filter student.AttendanceFilter, _ ...core.DBExecutor) ([]student.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]student.Attendance, 0)
	for _, a := range repo.db.attendance {
		switch {
		case filter.StudentID != "" && a.StudentID != filter.StudentID,
			filter.EnrollmentID != "" && a.EnrollmentID != filter.EnrollmentID,
			filter.AcademicYearID != "" && a.AcademicYearID != filter.AcademicYearID,
			filter.TermID != "" && a.TermID != filter.TermID,
			filter.ClassID != "" && a.ClassID != filter.ClassID,
			filter.SectionID != "" && (a.SectionID == nil || *a.SectionID != filter.SectionID),
			filter.Date != nil && !a.Date.Equal(*filter.Date),
			filter.From != nil && a.Date.Before(*filter.From),
			filter.To != nil && a.Date.After(*filter.To),
			filter.Status != "" && a.Status != filter.Status:
			continue
		}
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.After(res[j].Date)
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *studentRepository) AttendanceExists(ctx context.Context, studentID string, date core.Date, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.attendance {
		if a.ID != excludeID && a.StudentID == studentID && a.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}
