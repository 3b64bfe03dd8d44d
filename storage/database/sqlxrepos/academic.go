package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

const (
	yearColumns       = `id, name, start_date, end_date, is_active, created_at, updated_at`
	termColumns       = `id, academic_year_id, name, start_date, end_date, is_active, created_at, updated_at`
	classColumns      = `id, name, code, level, is_active, created_at`
	sectionColumns    = `id, class_id, name, capacity, is_active, created_at`
	subjectColumns    = `id, name, code, is_active, created_at`
	assignmentColumns = `id, teacher_id, subject_id, class_id, section_id, academic_year_id, is_active, created_at`
)

type academicRepository struct {
	baseRepository
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(exec core.DBExecutor) *academicRepository {
	return &academicRepository{baseRepository{exec: exec}}
}

// Academic years

func (repo academicRepository) CreateAcademicYear(ctx context.Context, year academic.AcademicYear, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	year.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO academic_year (`+yearColumns+`)
		VALUES (:id, :name, :start_date, :end_date, :is_active, :created_at, :updated_at)`, year)
	if err = trapUniqueViolation(err, "academic_year", map[string]string{"academic_year_name_key": "name"}); err != nil {
		return academic.AcademicYear{}, errors.Wrap(err, "inserting academic year")
	}
	return year, nil
}

func (repo academicRepository) UpdateAcademicYear(ctx context.Context, year academic.AcademicYear, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	err := namedUpdate(ctx, repo.getExec(exec), academic.ErrAcademicYearNotFound, `
		UPDATE academic_year SET name = :name, start_date = :start_date, end_date = :end_date,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, year)
	if err != nil {
		return academic.AcademicYear{}, wrapGet(err, academic.ErrAcademicYearNotFound, "updating academic year")
	}
	return year, nil
}

func (repo academicRepository) DeactivateAcademicYears(ctx context.Context, exceptID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE academic_year SET is_active = FALSE WHERE is_active AND id <> $1`, exceptID)
	return errors.Wrap(err, "deactivating academic years")
}

func (repo academicRepository) GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	var year academic.AcademicYear
	err := get(ctx, repo.getExec(exec), &year, academic.ErrAcademicYearNotFound,
		`SELECT `+yearColumns+` FROM academic_year WHERE id = ?`, id)
	if err != nil {
		return academic.AcademicYear{}, wrapGet(err, academic.ErrAcademicYearNotFound, "selecting academic year")
	}
	return year, nil
}

func (repo academicRepository) QueryAcademicYears(ctx context.Context, exec ...core.DBExecutor) ([]academic.AcademicYear, error) {
	years := make([]academic.AcademicYear, 0)
	err := selectAll(ctx, repo.getExec(exec), &years, `SELECT `+yearColumns+` FROM academic_year ORDER BY start_date DESC`)
	return years, errors.Wrap(err, "selecting academic years")
}

func (repo academicRepository) AcademicYearNameExists(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `SELECT 1 FROM academic_year WHERE name = ?`, name)
}

// Terms

func (repo academicRepository) CreateTerm(ctx context.Context, term academic.Term, exec ...core.DBExecutor) (academic.Term, error) {
	term.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO term (`+termColumns+`)
		VALUES (:id, :academic_year_id, :name, :start_date, :end_date, :is_active, :created_at, :updated_at)`, term)
	if err = trapUniqueViolation(err, "term", map[string]string{"term_year_name_key": "name"}); err != nil {
		return academic.Term{}, errors.Wrap(err, "inserting term")
	}
	return term, nil
}

func (repo academicRepository) GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Term, error) {
	var term academic.Term
	err := get(ctx, repo.getExec(exec), &term, academic.ErrTermNotFound, `SELECT `+termColumns+` FROM term WHERE id = ?`, id)
	if err != nil {
		return academic.Term{}, wrapGet(err, academic.ErrTermNotFound, "selecting term")
	}
	return term, nil
}

func (repo academicRepository) QueryTerms(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]academic.Term, error) {
	w := &where{}
	if yearID != "" {
		w.add("academic_year_id = ?", yearID)
	}
	terms := make([]academic.Term, 0)
	err := selectAll(ctx, repo.getExec(exec), &terms, `SELECT `+termColumns+` FROM term`+w.String()+` ORDER BY start_date`, w.args...)
	return terms, errors.Wrap(err, "selecting terms")
}

func (repo academicRepository) TermNameExists(ctx context.Context, yearID, name string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `SELECT 1 FROM term WHERE academic_year_id = ? AND name = ?`, yearID, name)
}

// Classes, sections & subjects

func (repo academicRepository) CreateClass(ctx context.Context, class academic.SchoolClass, exec ...core.DBExecutor) (academic.SchoolClass, error) {
	class.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO school_class (`+classColumns+`)
		VALUES (:id, :name, :code, :level, :is_active, :created_at)`, class)
	if err = trapUniqueViolation(err, "class", map[string]string{"school_class_code_key": "code"}); err != nil {
		return academic.SchoolClass{}, errors.Wrap(err, "inserting class")
	}
	return class, nil
}

func (repo academicRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (academic.SchoolClass, error) {
	var class academic.SchoolClass
	err := get(ctx, repo.getExec(exec), &class, academic.ErrClassNotFound, `SELECT `+classColumns+` FROM school_class WHERE id = ?`, id)
	if err != nil {
		return academic.SchoolClass{}, wrapGet(err, academic.ErrClassNotFound, "selecting class")
	}
	return class, nil
}

func (repo academicRepository) QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]academic.SchoolClass, error) {
	classes := make([]academic.SchoolClass, 0)
	err := selectAll(ctx, repo.getExec(exec), &classes, `SELECT `+classColumns+` FROM school_class ORDER BY level, name`)
	return classes, errors.Wrap(err, "selecting classes")
}

func (repo academicRepository) CreateSection(ctx context.Context, section academic.Section, exec ...core.DBExecutor) (academic.Section, error) {
	section.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO section (`+sectionColumns+`)
		VALUES (:id, :class_id, :name, :capacity, :is_active, :created_at)`, section)
	if err = trapUniqueViolation(err, "section", map[string]string{"section_class_name_key": "name"}); err != nil {
		return academic.Section{}, errors.Wrap(err, "inserting section")
	}
	return section, nil
}

func (repo academicRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Section, error) {
	var section academic.Section
	err := get(ctx, repo.getExec(exec), &section, academic.ErrSectionNotFound, `SELECT `+sectionColumns+` FROM section WHERE id = ?`, id)
	if err != nil {
		return academic.Section{}, wrapGet(err, academic.ErrSectionNotFound, "selecting section")
	}
	return section, nil
}

func (repo academicRepository) QuerySections(ctx context.Context, classID string, exec ...core.DBExecutor) ([]academic.Section, error) {
	w := &where{}
	if classID != "" {
		w.add("class_id = ?", classID)
	}
	sections := make([]academic.Section, 0)
	err := selectAll(ctx, repo.getExec(exec), &sections, `SELECT `+sectionColumns+` FROM section`+w.String()+` ORDER BY name`, w.args...)
	return sections, errors.Wrap(err, "selecting sections")
}

func (repo academicRepository) CreateSubject(ctx context.Context, subject academic.Subject, exec ...core.DBExecutor) (academic.Subject, error) {
	subject.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO subject (`+subjectColumns+`)
		VALUES (:id, :name, :code, :is_active, :created_at)`, subject)
	if err = trapUniqueViolation(err, "subject", map[string]string{"subject_code_key": "code"}); err != nil {
		return academic.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return subject, nil
}

func (repo academicRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Subject, error) {
	var subject academic.Subject
	err := get(ctx, repo.getExec(exec), &subject, academic.ErrSubjectNotFound, `SELECT `+subjectColumns+` FROM subject WHERE id = ?`, id)
	if err != nil {
		return academic.Subject{}, wrapGet(err, academic.ErrSubjectNotFound, "selecting subject")
	}
	return subject, nil
}

func (repo academicRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]academic.Subject, error) {
	subjects := make([]academic.Subject, 0)
	err := selectAll(ctx, repo.getExec(exec), &subjects, `SELECT `+subjectColumns+` FROM subject ORDER BY name`)
	return subjects, errors.Wrap(err, "selecting subjects")
}

// Teacher assignments

func (repo academicRepository) CreateTeacherAssignment(ctx context.Context, asg academic.TeacherAssignment, exec ...core.DBExecutor) (academic.TeacherAssignment, error) {
	asg.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO teacher_assignment (`+assignmentColumns+`)
		VALUES (:id, :teacher_id, :subject_id, :class_id, :section_id, :academic_year_id, :is_active, :created_at)`, asg)
	if err = trapUniqueViolation(err, "teacher_assignment", nil); err != nil {
		return academic.TeacherAssignment{}, errors.Wrap(err, "inserting teacher assignment")
	}
	return asg, nil
}

func (repo academicRepository) GetTeacherAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (academic.TeacherAssignment, error) {
	var asg academic.TeacherAssignment
	err := get(ctx, repo.getExec(exec), &asg, academic.ErrTeacherAssignmentNotFound,
		`SELECT `+assignmentColumns+` FROM teacher_assignment WHERE id = ?`, id)
	if err != nil {
		return academic.TeacherAssignment{}, wrapGet(err, academic.ErrTeacherAssignmentNotFound, "selecting teacher assignment")
	}
	return asg, nil
}

func (repo academicRepository) QueryTeacherAssignments(ctx context.Context, filter academic.AssignmentFilter, exec ...core.DBExecutor) ([]academic.TeacherAssignment, error) {
	w := &where{}
	if filter.TeacherID != "" {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.SubjectID != "" {
		w.add("subject_id = ?", filter.SubjectID)
	}
	if filter.ClassID != "" {
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.AcademicYearID != "" {
		w.add("academic_year_id = ?", filter.AcademicYearID)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	asgs := make([]academic.TeacherAssignment, 0)
	err := selectAll(ctx, repo.getExec(exec), &asgs,
		`SELECT `+assignmentColumns+` FROM teacher_assignment`+w.String()+` ORDER BY created_at`, w.args...)
	return asgs, errors.Wrap(err, "selecting teacher assignments")
}

func (repo academicRepository) TeacherAssignmentExists(ctx context.Context, asg academic.TeacherAssignment, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `
		SELECT 1 FROM teacher_assignment
		WHERE id::text <> ?
			AND teacher_id = ? AND subject_id = ? AND class_id = ? AND academic_year_id = ?
			AND section_id IS NOT DISTINCT FROM ?`,
		asg.ID, asg.TeacherID, asg.SubjectID, asg.ClassID, asg.AcademicYearID, asg.SectionID)
}
