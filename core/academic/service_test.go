package academic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/storage/database/inmem"
)

func newService() *academic.Service {
	db := inmemdb.Open()
	return academic.NewService(db, inmemdb.NewAcademicRepository(db))
}

func TestService_academicYears(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	year := func(name string, y int, active bool) academic.NewAcademicYear {
		return academic.NewAcademicYear{
			Name:      name,
			StartDate: core.NewDate(y, time.January, 8),
			EndDate:   core.NewDate(y, time.November, 29),
			IsActive:  active,
		}
	}
	activeYears := func() []string {
		years, err := svc.ListAcademicYears(ctx)
		require.NoError(t, err)
		var names []string
		for _, y := range years {
			if y.IsActive {
				names = append(names, y.Name)
			}
		}
		return names
	}

	y2023, err := svc.CreateAcademicYear(ctx, year("2023", 2023, true))
	require.NoError(t, err)
	_, err = svc.CreateAcademicYear(ctx, year("2024", 2024, true))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, activeYears())

	_, err = svc.CreateAcademicYear(ctx, year("2025", 2025, false))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, activeYears(), "an inactive year leaves the others alone")

	_, err = svc.ActivateAcademicYear(ctx, y2023.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023"}, activeYears())

	tests := []struct {
		name      string
		ny        academic.NewAcademicYear
		wantField string
		conflict  bool
	}{
		{name: "duplicated name", ny: year("2024", 2024, false), conflict: true},
		{
			name: "ends before it starts",
			ny: academic.NewAcademicYear{
				Name: "2026", StartDate: core.NewDate(2026, time.June, 1), EndDate: core.NewDate(2026, time.January, 1),
			},
			wantField: "end_date",
		},
		{
			name: "empty range",
			ny: academic.NewAcademicYear{
				Name: "2026", StartDate: core.NewDate(2026, time.June, 1), EndDate: core.NewDate(2026, time.June, 1),
			},
			wantField: "end_date",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAcademicYear(ctx, tc.ny)
			if tc.conflict {
				assert.True(t, core.IsConflictError(err), "err = %v", err)
				return
			}
			fields, ok := core.ClientErrorFields(err)
			require.True(t, ok, "err = %v", err)
			assert.Contains(t, fields, tc.wantField)
		})
	}

	_, err = svc.ActivateAcademicYear(ctx, "nope")
	assert.True(t, core.IsNotFound(err))
}

func TestService_CreateTerm(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	year, err := svc.CreateAcademicYear(ctx, academic.NewAcademicYear{
		Name: "2024", StartDate: core.NewDate(2024, time.January, 8), EndDate: core.NewDate(2024, time.November, 29),
	})
	require.NoError(t, err)
	term := func(name string, start, end core.Date) academic.NewTerm {
		return academic.NewTerm{AcademicYearID: year.ID, Name: name, StartDate: start, EndDate: end}
	}

	_, err = svc.CreateTerm(ctx, term("Term 1", core.NewDate(2024, time.January, 8), core.NewDate(2024, time.April, 5)))
	require.NoError(t, err)

	tests := []struct {
		name      string
		nt        academic.NewTerm
		wantField string
		conflict  bool
	}{
		{name: "name taken in the year", nt: term("Term 1", core.NewDate(2024, time.May, 1), core.NewDate(2024, time.June, 1)), conflict: true},
		{name: "starts before the year", nt: term("Term 0", core.NewDate(2024, time.January, 1), core.NewDate(2024, time.February, 1)), wantField: "start_date"},
		{name: "ends after the year", nt: term("Term 3", core.NewDate(2024, time.September, 1), core.NewDate(2024, time.December, 20)), wantField: "start_date"},
		{name: "inverted dates", nt: term("Term 2", core.NewDate(2024, time.July, 1), core.NewDate(2024, time.May, 1)), wantField: "end_date"},
		{
			name:      "unknown year",
			nt:        academic.NewTerm{AcademicYearID: "nope", Name: "T", StartDate: core.NewDate(2024, time.May, 1), EndDate: core.NewDate(2024, time.June, 1)},
			wantField: "academic_year_id",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTerm(ctx, tc.nt)
			if tc.conflict {
				assert.True(t, core.IsConflictError(err), "err = %v", err)
				return
			}
			fields, ok := core.ClientErrorFields(err)
			require.True(t, ok, "err = %v", err)
			assert.Contains(t, fields, tc.wantField)
		})
	}

	terms, err := svc.ListTerms(ctx, year.ID)
	require.NoError(t, err)
	assert.Len(t, terms, 1)
}

func TestService_CreateTeacherAssignment(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	year, err := svc.CreateAcademicYear(ctx, academic.NewAcademicYear{
		Name: "2024", StartDate: core.NewDate(2024, time.January, 8), EndDate: core.NewDate(2024, time.November, 29), IsActive: true,
	})
	require.NoError(t, err)
	g1, err := svc.CreateClass(ctx, academic.NewSchoolClass{Name: "Grade 1", Code: "G1", Level: 1})
	require.NoError(t, err)
	g2, err := svc.CreateClass(ctx, academic.NewSchoolClass{Name: "Grade 2", Code: "G2", Level: 2})
	require.NoError(t, err)
	sectionA, err := svc.CreateSection(ctx, academic.NewSection{ClassID: g1.ID, Name: "A", Capacity: 30})
	require.NoError(t, err)
	math, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Mathematics", Code: "MATH"})
	require.NoError(t, err)

	_, err = svc.CreateClass(ctx, academic.NewSchoolClass{Name: "Grade 1 bis", Code: "G1"})
	assert.True(t, core.IsConflictError(err), "class codes are unique")

	_, err = svc.CreateSection(ctx, academic.NewSection{ClassID: "nope", Name: "B"})
	assert.True(t, core.IsValidationError(err), "err = %v", err)

	na := academic.NewTeacherAssignment{
		TeacherID: "teacher-1", SubjectID: math.ID, ClassID: g1.ID, SectionID: &sectionA.ID, AcademicYearID: year.ID,
	}
	asg, err := svc.CreateTeacherAssignment(ctx, na)
	require.NoError(t, err)
	assert.True(t, asg.Matches(math.ID, g1.ID, &sectionA.ID, year.ID))
	assert.False(t, asg.Matches(math.ID, g1.ID, nil, year.ID), "a section assignment does not cover the whole class")

	_, err = svc.CreateTeacherAssignment(ctx, na)
	assert.True(t, core.IsConflictError(err), "err = %v", err)

	wholeClass := na
	wholeClass.SectionID = nil
	_, err = svc.CreateTeacherAssignment(ctx, wholeClass)
	assert.NoError(t, err)

	otherClass := na
	otherClass.ClassID = g2.ID
	_, err = svc.CreateTeacherAssignment(ctx, otherClass)
	fields, ok := core.ClientErrorFields(err)
	require.True(t, ok, "err = %v", err)
	assert.Contains(t, fields, "section_id")

	asgs, err := svc.ListTeacherAssignments(ctx, academic.AssignmentFilter{TeacherID: "teacher-1"})
	require.NoError(t, err)
	assert.Len(t, asgs, 2)
}
