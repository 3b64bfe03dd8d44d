package inmemdb

import (
	"context"
	"sort"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

type academicRepository struct {
	db *academicTables
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db.academic}
}

// Academic years

func (repo *academicRepository) CreateAcademicYear(ctx context.Context, year academic.AcademicYear, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	year.ID = newID()
	repo.db.years[year.ID] = year
	return year, nil
}

func (repo *academicRepository) UpdateAcademicYear(ctx context.Context, year academic.AcademicYear, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.years[year.ID]; !ok {
		return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
	}
	repo.db.years[year.ID] = year
	return year, nil
}

func (repo *academicRepository) DeactivateAcademicYears(ctx context.Context, exceptID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, year := range repo.db.years {
		if id != exceptID && year.IsActive {
			year.IsActive = false
			repo.db.years[id] = year
		}
	}
	return nil
}

func (repo *academicRepository) GetAcademicYear(ctx context.Context, id string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if year, ok := repo.db.years[id]; ok {
		return year, nil
	}
	return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
}

func (repo *academicRepository) QueryAcademicYears(ctx context.Context, _ ...core.DBExecutor) ([]academic.AcademicYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	years := make([]academic.AcademicYear, 0, len(repo.db.years))
	for _, year := range repo.db.years {
		years = append(years, year)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate.After(years[j].StartDate) })
	return years, nil
}

func (repo *academicRepository) AcademicYearNameExists(ctx context.Context, name string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, year := range repo.db.years {
		if year.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Terms

func (repo *academicRepository) CreateTerm(ctx context.Context, term academic.Term, _ ...core.DBExecutor) (academic.Term, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	term.ID = newID()
	repo.db.terms[term.ID] = term
	return term, nil
}

func (repo *academicRepository) GetTerm(ctx context.Context, id string, _ ...core.DBExecutor) (academic.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if term, ok := repo.db.terms[id]; ok {
		return term, nil
	}
	return academic.Term{}, academic.ErrTermNotFound
}

func (repo *academicRepository) QueryTerms(ctx context.Context, yearID string, _ ...core.DBExecutor) ([]academic.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	terms := make([]academic.Term, 0)
	for _, term := range repo.db.terms {
		if yearID == "" || term.AcademicYearID == yearID {
			terms = append(terms, term)
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].StartDate.Before(terms[j].StartDate) })
	return terms, nil
}

func (repo *academicRepository) TermNameExists(ctx context.Context, yearID, name string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, term := range repo.db.terms {
		if term.AcademicYearID == yearID && term.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Classes, sections & subjects

func (repo *academicRepository) CreateClass(ctx context.Context, class academic.SchoolClass, _ ...core.DBExecutor) (academic.SchoolClass, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, c := range repo.db.classes {
		if c.Code == class.Code {
			return academic.SchoolClass{}, core.NewConflictError("class", c.ID, "code", "a class with this code already exists")
		}
	}
	class.ID = newID()
	repo.db.classes[class.ID] = class
	return class, nil
}

func (repo *academicRepository) GetClass(ctx context.Context, id string, _ ...core.DBExecutor) (academic.SchoolClass, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if class, ok := repo.db.classes[id]; ok {
		return class, nil
	}
	return academic.SchoolClass{}, academic.ErrClassNotFound
}

func (repo *academicRepository) QueryClasses(ctx context.Context, _ ...core.DBExecutor) ([]academic.SchoolClass, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]academic.SchoolClass, 0, len(repo.db.classes))
	for _, class := range repo.db.classes {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Level != classes[j].Level {
			return classes[i].Level < classes[j].Level
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *academicRepository) CreateSection(ctx context.Context, section academic.Section, _ ...core.DBExecutor) (academic.Section, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.sections {
		if s.ClassID == section.ClassID && s.Name == section.Name {
			return academic.Section{}, core.NewConflictError("section", s.ID, "name", "this class already has a section with this name")
		}
	}
	section.ID = newID()
	repo.db.sections[section.ID] = section
	return section, nil
}

func (repo *academicRepository) GetSection(ctx context.Context, id string, _ ...core.DBExecutor) (academic.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if section, ok := repo.db.sections[id]; ok {
		return section, nil
	}
	return academic.Section{}, academic.ErrSectionNotFound
}

func (repo *academicRepository) QuerySections(ctx context.Context, classID string, _ ...core.DBExecutor) ([]academic.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sections := make([]academic.Section, 0)
	for _, section := range repo.db.sections {
		if classID == "" || section.ClassID == classID {
			sections = append(sections, section)
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Name < sections[j].Name })
	return sections, nil
}

func (repo *academicRepository) CreateSubject(ctx context.Context, subject academic.Subject, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.subjects {
		if s.Code == subject.Code {
			return academic.Subject{}, core.NewConflictError("subject", s.ID, "code", "a subject with this code already exists")
		}
	}
	subject.ID = newID()
	repo.db.subjects[subject.ID] = subject
	return subject, nil
}

func (repo *academicRepository) GetSubject(ctx context.Context, id string, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if subject, ok := repo.db.subjects[id]; ok {
		return subject, nil
	}
	return academic.Subject{}, academic.ErrSubjectNotFound
}

func (repo *academicRepository) QuerySubjects(ctx context.Context, _ ...core.DBExecutor) ([]academic.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]academic.Subject, 0, len(repo.db.subjects))
	for _, subject := range repo.db.subjects {
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

// Teacher assignments

func (repo *academicRepository) CreateTeacherAssignment(ctx context.Context, asg academic.TeacherAssignment, _ ...core.DBExecutor) (academic.TeacherAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	asg.ID = newID()
	repo.db.assignments[asg.ID] = asg
	return asg, nil
}

func (repo *academicRepository) GetTeacherAssignment(ctx context.Context, id string, _ ...core.DBExecutor) (academic.TeacherAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return asg, nil
	}
	return academic.TeacherAssignment{}, academic.ErrTeacherAssignmentNotFound
}

func (repo *academicRepository) QueryTeacherAssignments(ctx context.Context, filter academic.AssignmentFilter, _ ...core.DBExecutor) ([]academic.TeacherAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	asgs := make([]academic.TeacherAssignment, 0)
	for _, asg := range repo.db.assignments {
		switch {
		case filter.TeacherID != "" && asg.TeacherID != filter.TeacherID,
			filter.SubjectID != "" && asg.SubjectID != filter.SubjectID,
			filter.ClassID != "" && asg.ClassID != filter.ClassID,
			filter.AcademicYearID != "" && asg.AcademicYearID != filter.AcademicYearID,
			filter.ActiveOnly && !asg.IsActive:
			continue
		}
		asgs = append(asgs, asg)
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.Before(asgs[j].CreatedAt) })
	return asgs, nil
}

func (repo *academicRepository) TeacherAssignmentExists(ctx context.Context, asg academic.TeacherAssignment, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.assignments {
		if a.ID != asg.ID && a.TeacherID == asg.TeacherID &&
			a.Matches(asg.SubjectID, asg.ClassID, asg.SectionID, asg.AcademicYearID) {
			return true, nil
		}
	}
	return false, nil
}
