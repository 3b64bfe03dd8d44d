package timetable_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/timetable"
	"github.com/shule/backend/core/user"
	"github.com/shule/backend/storage/database/inmem"
	"github.com/shule/backend/tests"
)

type fixture struct {
	svc      *timetable.Service
	repo     timetable.Repository
	acad     academic.Repository
	school   testutil.School
	teacher  user.User
	asg      academic.TeacherAssignment
	mon8     timetable.TimeSlot
	mon9     timetable.TimeSlot
	tue8     timetable.TimeSlot
	monBreak timetable.TimeSlot
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	f := fixture{
		repo: inmemdb.NewTimetableRepository(db),
		acad: inmemdb.NewAcademicRepository(db),
	}
	f.svc = timetable.NewService(db, f.repo, f.acad)
	f.school = testutil.SeedSchool(t, f.acad)
	f.teacher = testutil.CreateUser(t, inmemdb.NewUserRepository(db), "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	f.asg = testutil.CreateAssignment(t, f.acad, f.teacher.ID, f.school.Subject.ID, f.school.Class.ID, &f.school.Section.ID, f.school.Year.ID)
	f.mon8 = testutil.CreateTimeSlot(t, f.repo, "P1", timetable.Monday, "08:00", "08:40", false)
	f.mon9 = testutil.CreateTimeSlot(t, f.repo, "P2", timetable.Monday, "09:00", "09:40", false)
	f.tue8 = testutil.CreateTimeSlot(t, f.repo, "P1", timetable.Tuesday, "08:00", "08:40", false)
	f.monBreak = testutil.CreateTimeSlot(t, f.repo, "Break", timetable.Monday, "10:00", "10:30", true)
	return f
}

func (f fixture) timetable(t *testing.T, name, classID string, sectionID *string, termID string) timetable.Timetable {
	tt, err := f.svc.CreateTimetable(context.Background(), timetable.NewTimetable{
		Name:           name,
		ClassID:        classID,
		SectionID:      sectionID,
		AcademicYearID: f.school.Year.ID,
		TermID:         termID,
	}, &f.teacher.ID)
	require.NoError(t, err)
	return tt
}

func (f fixture) entry(ttID string, slot timetable.TimeSlot, asg *academic.TeacherAssignment) timetable.NewEntry {
	ne := timetable.NewEntry{TimetableID: ttID, TimeSlotID: slot.ID, SubjectID: &f.school.Subject.ID}
	if asg != nil {
		ne.TeacherAssignmentID = &asg.ID
	}
	return ne
}

func conflictOf(t *testing.T, err error) *core.ConflictError {
	var cerr *core.ConflictError
	require.True(t, errors.As(err, &cerr), "want ConflictError, got %v", err)
	return cerr
}

func fieldsOf(t *testing.T, err error) map[string]string {
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
	return verr.FieldMap()
}

func TestService_CreateTimeSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	clock := func(s string) *core.ClockTime {
		c := testutil.Clock(t, s)
		return &c
	}
	inactive := false

	tests := []struct {
		name      string
		slot      timetable.NewTimeSlot
		wantField string // validation error field
		conflict  bool
	}{
		{
			name: "adjacent slot",
			slot: timetable.NewTimeSlot{Name: "P1b", Day: timetable.Monday, StartTime: clock("08:40"), EndTime: clock("09:00")},
		},
		{
			name:     "overlaps an active slot",
			slot:     timetable.NewTimeSlot{Name: "X", Day: timetable.Monday, StartTime: clock("08:20"), EndTime: clock("08:50")},
			conflict: true,
		},
		{
			name:     "same start on the same day",
			slot:     timetable.NewTimeSlot{Name: "X", Day: timetable.Tuesday, StartTime: clock("08:00"), EndTime: clock("08:30")},
			conflict: true,
		},
		{
			name: "overlap on another day",
			slot: timetable.NewTimeSlot{Name: "X", Day: timetable.Wednesday, StartTime: clock("08:20"), EndTime: clock("08:50")},
		},
		{
			name: "inactive slot may overlap",
			slot: timetable.NewTimeSlot{Name: "X", Day: timetable.Monday, StartTime: clock("09:10"), EndTime: clock("09:50"), IsActive: &inactive},
		},
		{
			name:      "end before start",
			slot:      timetable.NewTimeSlot{Name: "X", Day: timetable.Friday, StartTime: clock("11:00"), EndTime: clock("10:00")},
			wantField: "end_time",
		},
		{
			name:      "empty range",
			slot:      timetable.NewTimeSlot{Name: "X", Day: timetable.Friday, StartTime: clock("11:00"), EndTime: clock("11:00")},
			wantField: "end_time",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slot, err := f.svc.CreateTimeSlot(ctx, tc.slot)
			switch {
			case tc.conflict:
				assert.True(t, core.IsConflictError(err), "err = %v", err)
			case tc.wantField != "":
				assert.Contains(t, fieldsOf(t, err), tc.wantField)
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, slot.ID)
			}
		})
	}
}

func TestService_UpdateTimeSlot_excludesItself(t *testing.T) {
	f := setup(t)
	end := testutil.Clock(t, "08:45")
	start := f.mon8.StartTime

	slot, err := f.svc.UpdateTimeSlot(context.Background(), f.mon8.ID, timetable.NewTimeSlot{
		Name: "P1", Day: timetable.Monday, StartTime: &start, EndTime: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, end, slot.EndTime)
}

func TestService_WeeklySchedule(t *testing.T) {
	f := setup(t)
	schedule, err := f.svc.WeeklySchedule(context.Background())
	require.NoError(t, err)

	require.Len(t, schedule, 2)
	assert.Equal(t, timetable.Monday, schedule[0].Day)
	assert.Equal(t, timetable.Tuesday, schedule[1].Day)
	require.Len(t, schedule[0].Slots, 3)
	assert.Equal(t, f.mon8.ID, schedule[0].Slots[0].ID)
	assert.Equal(t, f.mon9.ID, schedule[0].Slots[1].ID)
	assert.Equal(t, f.monBreak.ID, schedule[0].Slots[2].ID)
}

func TestService_CreateTimetable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	otherYear, err := f.acad.CreateAcademicYear(ctx, academic.AcademicYear{
		Name: "2025", StartDate: core.NewDate(2025, 1, 6), EndDate: core.NewDate(2025, 11, 28),
	})
	require.NoError(t, err)
	otherTerm := testutil.CreateTerm(t, f.acad, otherYear.ID, "Term 1", core.NewDate(2025, 1, 6), core.NewDate(2025, 4, 4))
	otherClass := testutil.CreateClass(t, f.acad, "Grade 2", "G2")

	f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)

	tests := []struct {
		name      string
		nt        timetable.NewTimetable
		wantField string
		conflict  bool
	}{
		{
			name: "whole class",
			nt:   timetable.NewTimetable{Name: "G1", ClassID: f.school.Class.ID, AcademicYearID: f.school.Year.ID, TermID: f.school.Term.ID},
		},
		{
			name: "same class, section & term",
			nt: timetable.NewTimetable{
				Name: "G1 A bis", ClassID: f.school.Class.ID, SectionID: &f.school.Section.ID,
				AcademicYearID: f.school.Year.ID, TermID: f.school.Term.ID,
			},
			conflict: true,
		},
		{
			name: "section of another class",
			nt: timetable.NewTimetable{
				Name: "G2 A", ClassID: otherClass.ID, SectionID: &f.school.Section.ID,
				AcademicYearID: f.school.Year.ID, TermID: f.school.Term.ID,
			},
			wantField: "section_id",
		},
		{
			name:      "term of another year",
			nt:        timetable.NewTimetable{Name: "G2", ClassID: otherClass.ID, AcademicYearID: f.school.Year.ID, TermID: otherTerm.ID},
			wantField: "term_id",
		},
		{
			name:      "unknown class",
			nt:        timetable.NewTimetable{Name: "G?", ClassID: "nope", AcademicYearID: f.school.Year.ID, TermID: f.school.Term.ID},
			wantField: "class_id",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateTimetable(ctx, tc.nt, nil)
			switch {
			case tc.conflict:
				assert.True(t, core.IsConflictError(err), "err = %v", err)
			case tc.wantField != "":
				assert.Contains(t, fieldsOf(t, err), tc.wantField)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_CreateEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	g2 := testutil.CreateClass(t, f.acad, "Grade 2", "G2")
	g2Asg := testutil.CreateAssignment(t, f.acad, f.teacher.ID, f.school.Subject.ID, g2.ID, nil, f.school.Year.ID)
	ttA := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)
	ttB := f.timetable(t, "G2", g2.ID, nil, f.school.Term.ID)

	booked, err := f.svc.CreateEntry(ctx, f.entry(ttA.ID, f.mon8, &f.asg))
	require.NoError(t, err)

	t.Run("teacher double booked", func(t *testing.T) {
		_, err := f.svc.CreateEntry(ctx, f.entry(ttB.ID, f.mon8, &g2Asg))
		cerr := conflictOf(t, err)
		assert.Equal(t, booked.ID, cerr.ID)
		assert.Equal(t, "teacher_assignment_id", cerr.Field)
		assert.Contains(t, cerr.Message, "G1 A")
	})

	t.Run("same teacher, another slot", func(t *testing.T) {
		_, err := f.svc.CreateEntry(ctx, f.entry(ttB.ID, f.mon9, &g2Asg))
		assert.NoError(t, err)
	})

	t.Run("slot already used in the timetable", func(t *testing.T) {
		_, err := f.svc.CreateEntry(ctx, f.entry(ttA.ID, f.mon8, nil))
		assert.Equal(t, "time_slot_id", conflictOf(t, err).Field)
	})

	t.Run("assignment of another class", func(t *testing.T) {
		_, err := f.svc.CreateEntry(ctx, f.entry(ttA.ID, f.tue8, &g2Asg))
		assert.Contains(t, fieldsOf(t, err), "teacher_assignment_id")
	})

	t.Run("subject on a break", func(t *testing.T) {
		_, err := f.svc.CreateEntry(ctx, f.entry(ttA.ID, f.monBreak, nil))
		assert.Contains(t, fieldsOf(t, err), "time_slot_id")
	})

	t.Run("empty break", func(t *testing.T) {
		_, err := f.svc.CreateEntry(ctx, timetable.NewEntry{TimetableID: ttB.ID, TimeSlotID: f.monBreak.ID})
		assert.NoError(t, err)
	})

	t.Run("lesson without subject", func(t *testing.T) {
		_, err := f.svc.CreateEntry(ctx, timetable.NewEntry{TimetableID: ttA.ID, TimeSlotID: f.tue8.ID})
		assert.Contains(t, fieldsOf(t, err), "subject_id")
	})

	t.Run("unknown time slot", func(t *testing.T) {
		ne := f.entry(ttA.ID, f.tue8, nil)
		ne.TimeSlotID = "nope"
		_, err := f.svc.CreateEntry(ctx, ne)
		assert.Contains(t, fieldsOf(t, err), "time_slot_id")
	})
}

func TestService_UpdateEntry_keepsItsOwnBooking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tt := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)
	entry, err := f.svc.CreateEntry(ctx, f.entry(tt.ID, f.mon8, &f.asg))
	require.NoError(t, err)

	ne := f.entry(tt.ID, f.mon8, &f.asg)
	ne.Room = "Lab 2"
	updated, err := f.svc.UpdateEntry(ctx, entry.ID, ne)
	require.NoError(t, err)
	assert.Equal(t, "Lab 2", updated.Room)
}

func TestService_inactiveTimetables(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g2 := testutil.CreateClass(t, f.acad, "Grade 2", "G2")
	g2Asg := testutil.CreateAssignment(t, f.acad, f.teacher.ID, f.school.Subject.ID, g2.ID, nil, f.school.Year.ID)
	ttA := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)
	ttB := f.timetable(t, "G2", g2.ID, nil, f.school.Term.ID)

	_, err := f.svc.CreateEntry(ctx, f.entry(ttA.ID, f.mon8, &f.asg))
	require.NoError(t, err)

	off, on := false, true
	upd := func(tt timetable.Timetable, active *bool) timetable.NewTimetable {
		return timetable.NewTimetable{
			Name: tt.Name, ClassID: tt.ClassID, SectionID: tt.SectionID,
			AcademicYearID: tt.AcademicYearID, TermID: tt.TermID, IsActive: active,
		}
	}
	_, err = f.svc.UpdateTimetable(ctx, ttA.ID, upd(ttA, &off))
	require.NoError(t, err)

	// bookings of inactive timetables do not count
	_, err = f.svc.CreateEntry(ctx, f.entry(ttB.ID, f.mon8, &g2Asg))
	require.NoError(t, err)

	// but they do once the timetable is reactivated
	_, err = f.svc.UpdateTimetable(ctx, ttA.ID, upd(ttA, &on))
	assert.True(t, core.IsConflictError(err), "err = %v", err)
}

func TestService_UpdateTimetable_revalidatesEntries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g2 := testutil.CreateClass(t, f.acad, "Grade 2", "G2")
	term2 := testutil.CreateTerm(t, f.acad, f.school.Year.ID, "Term 2", core.NewDate(2024, 4, 22), core.NewDate(2024, 7, 26))
	tt := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)
	_, err := f.svc.CreateEntry(ctx, f.entry(tt.ID, f.mon8, &f.asg))
	require.NoError(t, err)

	moved := func(name, classID string, sectionID *string, termID string) timetable.NewTimetable {
		return timetable.NewTimetable{Name: name, ClassID: classID, SectionID: sectionID, AcademicYearID: f.school.Year.ID, TermID: termID}
	}
	tests := []struct {
		name      string
		nt        timetable.NewTimetable
		wantField string
	}{
		{name: "another class", nt: moved("G2", g2.ID, nil, f.school.Term.ID), wantField: "teacher_assignment_id"},
		{name: "whole class", nt: moved("G1", f.school.Class.ID, nil, f.school.Term.ID), wantField: "teacher_assignment_id"},
		{name: "another term of the year", nt: moved("G1 A", f.school.Class.ID, &f.school.Section.ID, term2.ID)},
		{name: "renamed", nt: moved("Grade 1 A", f.school.Class.ID, &f.school.Section.ID, term2.ID)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.UpdateTimetable(ctx, tt.ID, tc.nt)
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, fieldsOf(t, err), tc.wantField)
		})
	}

	got, err := f.svc.GetTimetable(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, f.school.Class.ID, got.ClassID)
	assert.Equal(t, &f.school.Section.ID, got.SectionID)
}

func TestService_UpdateTimeSlot_toBreak(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tt := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)
	_, err := f.svc.CreateEntry(ctx, f.entry(tt.ID, f.mon8, &f.asg))
	require.NoError(t, err)

	toBreak := func(slot timetable.TimeSlot) timetable.NewTimeSlot {
		start, end := slot.StartTime, slot.EndTime
		return timetable.NewTimeSlot{Name: slot.Name, Day: slot.Day, StartTime: &start, EndTime: &end, IsBreak: true}
	}

	_, err = f.svc.UpdateTimeSlot(ctx, f.mon8.ID, toBreak(f.mon8))
	assert.Contains(t, fieldsOf(t, err), "is_break")
	slot, err := f.svc.GetTimeSlot(ctx, f.mon8.ID)
	require.NoError(t, err)
	assert.False(t, slot.IsBreak)

	slot, err = f.svc.UpdateTimeSlot(ctx, f.mon9.ID, toBreak(f.mon9))
	require.NoError(t, err, "no lesson booked")
	assert.True(t, slot.IsBreak)
}

func TestService_Duplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	term2 := testutil.CreateTerm(t, f.acad, f.school.Year.ID, "Term 2", core.NewDate(2024, 4, 22), core.NewDate(2024, 7, 26))
	tt := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)

	taught, err := f.svc.CreateEntry(ctx, f.entry(tt.ID, f.mon8, &f.asg))
	require.NoError(t, err)
	_, err = f.svc.CreateEntry(ctx, f.entry(tt.ID, f.tue8, nil))
	require.NoError(t, err)

	res, err := f.svc.Duplicate(ctx, tt.ID, timetable.DuplicateTimetable{AcademicYearID: f.school.Year.ID, TermID: term2.ID}, nil)
	require.NoError(t, err)

	assert.Equal(t, "G1 A (Copy)", res.Timetable.Name)
	assert.Equal(t, term2.ID, res.Timetable.TermID)
	assert.Equal(t, 2, res.Copied)
	// the original is still active, so the teacher cannot be booked twice in the same slot
	assert.Equal(t, []string{taught.ID}, res.Unassigned)

	entries, err := f.svc.EntriesByTimetable(ctx, res.Timetable.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Nil(t, e.TeacherAssignmentID)
		assert.Equal(t, f.school.Subject.ID, *e.SubjectID)
	}

	t.Run("into an occupied term", func(t *testing.T) {
		_, err := f.svc.Duplicate(ctx, tt.ID, timetable.DuplicateTimetable{AcademicYearID: f.school.Year.ID, TermID: term2.ID}, nil)
		assert.True(t, core.IsConflictError(err), "err = %v", err)
	})
}

func TestService_BulkCreateEntries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tt := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)
	validate := func(ne *timetable.NewEntry) error {
		if ne.TimeSlotID == "" {
			return core.NewFieldError("time_slot_id", "time_slot_id is a required field")
		}
		return nil
	}

	res, err := f.svc.BulkCreateEntries(ctx, []timetable.NewEntry{
		f.entry(tt.ID, f.mon8, &f.asg),
		f.entry(tt.ID, f.mon8, nil),
		{TimetableID: tt.ID},
		f.entry(tt.ID, f.tue8, &f.asg),
	}, validate)
	require.NoError(t, err)

	assert.Equal(t, timetable.BulkSummary{Total: 4, Created: 2, Failed: 2}, res.Summary)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Contains(t, res.Errors[0].Errors, "time_slot_id")
	assert.Equal(t, 2, res.Errors[1].Index)
	assert.Contains(t, res.Errors[1].Errors, "time_slot_id")

	t.Run("empty batch", func(t *testing.T) {
		_, err := f.svc.BulkCreateEntries(ctx, nil, validate)
		assert.Contains(t, fieldsOf(t, err), "entries")
	})
}

func TestService_TeacherSchedule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tt := f.timetable(t, "G1 A", f.school.Class.ID, &f.school.Section.ID, f.school.Term.ID)
	for _, slot := range []timetable.TimeSlot{f.tue8, f.mon9, f.mon8} {
		_, err := f.svc.CreateEntry(ctx, f.entry(tt.ID, slot, &f.asg))
		require.NoError(t, err)
	}

	schedule, err := f.svc.TeacherSchedule(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.Equal(t, timetable.Monday, schedule[0].Day)
	require.Len(t, schedule[0].Entries, 2)
	assert.Equal(t, f.mon8.ID, schedule[0].Entries[0].TimeSlotID)
	assert.Equal(t, f.mon9.ID, schedule[0].Entries[1].TimeSlotID)
	assert.Equal(t, timetable.Tuesday, schedule[1].Day)

	tts, err := f.svc.TimetablesByTeacher(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, tts, 1)
	assert.Equal(t, tt.ID, tts[0].ID)

	_, err = f.svc.TeacherSchedule(ctx, "")
	assert.True(t, core.IsValidationError(err))
}
