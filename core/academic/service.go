package academic

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
)

var (
	// errors
	ErrAcademicYearNotFound      = core.NewNotFoundError("academic year")
	ErrTermNotFound              = core.NewNotFoundError("term")
	ErrClassNotFound             = core.NewNotFoundError("class")
	ErrSectionNotFound           = core.NewNotFoundError("section")
	ErrSubjectNotFound           = core.NewNotFoundError("subject")
	ErrTeacherAssignmentNotFound = core.NewNotFoundError("teacher assignment")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAcademicYear(ctx context.Context, year AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)
		UpdateAcademicYear(ctx context.Context, year AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)
		// DeactivateAcademicYears marks every year but exceptID as inactive.
		DeactivateAcademicYears(ctx context.Context, exceptID string, exec ...core.DBExecutor) error
		GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (AcademicYear, error)
		QueryAcademicYears(ctx context.Context, exec ...core.DBExecutor) ([]AcademicYear, error)
		AcademicYearNameExists(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error)

		CreateTerm(ctx context.Context, term Term, exec ...core.DBExecutor) (Term, error)
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (Term, error)
		QueryTerms(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]Term, error)
		TermNameExists(ctx context.Context, yearID, name string, exec ...core.DBExecutor) (bool, error)

		CreateClass(ctx context.Context, class SchoolClass, exec ...core.DBExecutor) (SchoolClass, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (SchoolClass, error)
		QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]SchoolClass, error)

		CreateSection(ctx context.Context, section Section, exec ...core.DBExecutor) (Section, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (Section, error)
		QuerySections(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Section, error)

		CreateSubject(ctx context.Context, subject Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)

		CreateTeacherAssignment(ctx context.Context, asg TeacherAssignment, exec ...core.DBExecutor) (TeacherAssignment, error)
		GetTeacherAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (TeacherAssignment, error)
		QueryTeacherAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]TeacherAssignment, error)
		TeacherAssignmentExists(ctx context.Context, asg TeacherAssignment, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		tx   core.Transactor
		repo Repository
	}
)

func NewService(tx core.Transactor, repo Repository) *Service {
	return &Service{tx: tx, repo: repo}
}

// Academic years

// CreateAcademicYear creates a year; activating it deactivates every other year.
func (svc *Service) CreateAcademicYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error) {
	if err := ValidateDateRange(ny.StartDate, ny.EndDate); err != nil {
		return AcademicYear{}, err
	}

	var year AcademicYear
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		exists, err := svc.repo.AcademicYearNameExists(ctx, ny.Name, exec)
		if err != nil {
			return errors.Wrap(err, "checking academic year name")
		}
		if exists {
			return core.NewConflictError("academic_year", "", "name", fmt.Sprintf("academic year %q already exists", ny.Name))
		}

		now := nowFunc().UTC()
		year, err = svc.repo.CreateAcademicYear(ctx, AcademicYear{
			Name:      ny.Name,
			StartDate: ny.StartDate,
			EndDate:   ny.EndDate,
			IsActive:  ny.IsActive,
			CreatedAt: now,
			UpdatedAt: now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating academic year")
		}
		if year.IsActive {
			return errors.Wrap(svc.repo.DeactivateAcademicYears(ctx, year.ID, exec), "deactivating other years")
		}
		return nil
	})
	return year, err
}

// ActivateAcademicYear makes id the only active year.
func (svc *Service) ActivateAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	var year AcademicYear
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if year, err = svc.repo.GetAcademicYear(ctx, id, exec); err != nil {
			return err
		}
		year.IsActive = true
		year.UpdatedAt = nowFunc().UTC()
		if year, err = svc.repo.UpdateAcademicYear(ctx, year, exec); err != nil {
			return errors.Wrap(err, "updating academic year")
		}
		return errors.Wrap(svc.repo.DeactivateAcademicYears(ctx, year.ID, exec), "deactivating other years")
	})
	return year, err
}

func (svc *Service) GetAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	return svc.repo.GetAcademicYear(ctx, id)
}

func (svc *Service) ListAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return svc.repo.QueryAcademicYears(ctx)
}

// Terms

// CreateTerm creates a term lying within its academic year; term names are unique per year.
func (svc *Service) CreateTerm(ctx context.Context, nt NewTerm) (Term, error) {
	if err := ValidateDateRange(nt.StartDate, nt.EndDate); err != nil {
		return Term{}, err
	}

	var term Term
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		year, err := svc.repo.GetAcademicYear(ctx, nt.AcademicYearID, exec)
		if err != nil {
			if errors.Cause(err) == ErrAcademicYearNotFound {
				return core.NewFieldError("academic_year_id", "academic year not found")
			}
			return errors.Wrap(err, "getting academic year")
		}
		if !year.Contains(nt.StartDate) || !year.Contains(nt.EndDate) {
			return core.NewFieldError("start_date", fmt.Sprintf("term dates must fall within the academic year %s", year.Name))
		}

		exists, err := svc.repo.TermNameExists(ctx, year.ID, nt.Name, exec)
		if err != nil {
			return errors.Wrap(err, "checking term name")
		}
		if exists {
			return core.NewConflictError("term", "", "name", fmt.Sprintf("term %q already exists in %s", nt.Name, year.Name))
		}

		now := nowFunc().UTC()
		term, err = svc.repo.CreateTerm(ctx, Term{
			AcademicYearID: year.ID,
			Name:           nt.Name,
			StartDate:      nt.StartDate,
			EndDate:        nt.EndDate,
			IsActive:       nt.IsActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, exec)
		return errors.Wrap(err, "creating term")
	})
	return term, err
}

func (svc *Service) GetTerm(ctx context.Context, id string) (Term, error) {
	return svc.repo.GetTerm(ctx, id)
}

func (svc *Service) ListTerms(ctx context.Context, yearID string) ([]Term, error) {
	return svc.repo.QueryTerms(ctx, yearID)
}

// Classes, sections & subjects

func (svc *Service) CreateClass(ctx context.Context, nc NewSchoolClass) (SchoolClass, error) {
	return svc.repo.CreateClass(ctx, SchoolClass{
		Name:      nc.Name,
		Code:      nc.Code,
		Level:     nc.Level,
		IsActive:  true,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) GetClass(ctx context.Context, id string) (SchoolClass, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) ListClasses(ctx context.Context) ([]SchoolClass, error) {
	return svc.repo.QueryClasses(ctx)
}

func (svc *Service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return Section{}, core.NewFieldError("class_id", "class not found")
		}
		return Section{}, errors.Wrap(err, "getting class")
	}
	return svc.repo.CreateSection(ctx, Section{
		ClassID:   ns.ClassID,
		Name:      ns.Name,
		Capacity:  ns.Capacity,
		IsActive:  true,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) GetSection(ctx context.Context, id string) (Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *Service) ListSections(ctx context.Context, classID string) ([]Section, error) {
	return svc.repo.QuerySections(ctx, classID)
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	return svc.repo.CreateSubject(ctx, Subject{
		Name:      ns.Name,
		Code:      ns.Code,
		IsActive:  true,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

// Teacher assignments

// CheckSectionOfClass rejects a section that does not belong to classID. A nil section is always accepted.
func (svc *Service) CheckSectionOfClass(ctx context.Context, sectionID *string, classID string, exec ...core.DBExecutor) error {
	if sectionID == nil {
		return nil
	}
	section, err := svc.repo.GetSection(ctx, *sectionID, exec...)
	if err != nil {
		if errors.Cause(err) == ErrSectionNotFound {
			return core.NewFieldError("section_id", "section not found")
		}
		return errors.Wrap(err, "getting section")
	}
	if section.ClassID != classID {
		return core.NewFieldError("section_id", "Selected section does not belong to this class.")
	}
	return nil
}

func (svc *Service) CreateTeacherAssignment(ctx context.Context, na NewTeacherAssignment) (TeacherAssignment, error) {
	var asg TeacherAssignment
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetSubject(ctx, na.SubjectID, exec); err != nil {
			if errors.Cause(err) == ErrSubjectNotFound {
				return core.NewFieldError("subject_id", "subject not found")
			}
			return errors.Wrap(err, "getting subject")
		}
		if _, err := svc.repo.GetClass(ctx, na.ClassID, exec); err != nil {
			if errors.Cause(err) == ErrClassNotFound {
				return core.NewFieldError("class_id", "class not found")
			}
			return errors.Wrap(err, "getting class")
		}
		if _, err := svc.repo.GetAcademicYear(ctx, na.AcademicYearID, exec); err != nil {
			if errors.Cause(err) == ErrAcademicYearNotFound {
				return core.NewFieldError("academic_year_id", "academic year not found")
			}
			return errors.Wrap(err, "getting academic year")
		}
		if err := svc.CheckSectionOfClass(ctx, na.SectionID, na.ClassID, exec); err != nil {
			return err
		}

		asg = TeacherAssignment{
			TeacherID:      na.TeacherID,
			SubjectID:      na.SubjectID,
			ClassID:        na.ClassID,
			SectionID:      na.SectionID,
			AcademicYearID: na.AcademicYearID,
			IsActive:       true,
			CreatedAt:      nowFunc().UTC(),
		}
		exists, err := svc.repo.TeacherAssignmentExists(ctx, asg, exec)
		if err != nil {
			return errors.Wrap(err, "checking teacher assignment uniqueness")
		}
		if exists {
			return core.NewConflictError("teacher_assignment", "", "", "this teacher is already assigned to this subject and class for the year")
		}
		asg, err = svc.repo.CreateTeacherAssignment(ctx, asg, exec)
		return errors.Wrap(err, "creating teacher assignment")
	})
	return asg, err
}

func (svc *Service) GetTeacherAssignment(ctx context.Context, id string) (TeacherAssignment, error) {
	return svc.repo.GetTeacherAssignment(ctx, id)
}

func (svc *Service) ListTeacherAssignments(ctx context.Context, filter AssignmentFilter) ([]TeacherAssignment, error) {
	return svc.repo.QueryTeacherAssignments(ctx, filter)
}
