package timetable

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

var (
	// errors
	ErrTimeSlotNotFound  = core.NewNotFoundError("time slot")
	ErrTimetableNotFound = core.NewNotFoundError("timetable")
	ErrEntryNotFound     = core.NewNotFoundError("timetable entry")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateTimeSlot(ctx context.Context, slot TimeSlot, exec ...core.DBExecutor) (TimeSlot, error)
		UpdateTimeSlot(ctx context.Context, slot TimeSlot, exec ...core.DBExecutor) (TimeSlot, error)
		// DeleteTimeSlot also deletes the entries booked in the slot.
		DeleteTimeSlot(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetTimeSlot(ctx context.Context, id string, exec ...core.DBExecutor) (TimeSlot, error)
		// QueryTimeSlots returns slots ordered by day, order & start time.
		QueryTimeSlots(ctx context.Context, filter SlotFilter, exec ...core.DBExecutor) ([]TimeSlot, error)
		// TimeSlotExists reports whether another slot (id != excludeID) starts at start on day.
		TimeSlotExists(ctx context.Context, day Weekday, start core.ClockTime, excludeID string, exec ...core.DBExecutor) (bool, error)

		CreateTimetable(ctx context.Context, tt Timetable, exec ...core.DBExecutor) (Timetable, error)
		UpdateTimetable(ctx context.Context, tt Timetable, exec ...core.DBExecutor) (Timetable, error)
		// DeleteTimetable also deletes the timetable's entries.
		DeleteTimetable(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetTimetable(ctx context.Context, id string, exec ...core.DBExecutor) (Timetable, error)
		QueryTimetables(ctx context.Context, filter TimetableFilter, exec ...core.DBExecutor) ([]Timetable, error)
		// TimetableExists reports whether another timetable (id != tt.ID) has tt's class, section, year & term.
		TimetableExists(ctx context.Context, tt Timetable, exec ...core.DBExecutor) (bool, error)

		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		UpdateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		DeleteEntry(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetEntry(ctx context.Context, id string, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns the entries of a timetable ordered by day & slot order.
		QueryEntries(ctx context.Context, timetableID string, exec ...core.DBExecutor) ([]ScheduledEntry, error)
		// EntryExists reports whether another entry (id != excludeID) of the timetable uses the slot.
		EntryExists(ctx context.Context, timetableID, slotID, excludeID string, exec ...core.DBExecutor) (bool, error)
		// SlotHasLessons reports whether an entry of any timetable with a subject or an assignment uses the slot.
		SlotHasLessons(ctx context.Context, slotID string, exec ...core.DBExecutor) (bool, error)
		// QueryBookings returns the entries of active timetables booked in the slot.
		QueryBookings(ctx context.Context, slotID string, exec ...core.DBExecutor) ([]Booking, error)
		// QueryTeacherEntries returns the entries of active timetables taught by the teacher.
		QueryTeacherEntries(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]ScheduledEntry, error)
	}

	// AcademicReader gives access to the academic records timetables point to.
	AcademicReader interface {
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (academic.SchoolClass, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Section, error)
		GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error)
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Term, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Subject, error)
		GetTeacherAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (academic.TeacherAssignment, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		academic AcademicReader
	}
)

func NewService(tx core.Transactor, repo Repository, acad AcademicReader) *Service {
	return &Service{tx: tx, repo: repo, academic: acad}
}

// Time slots

func (svc *Service) CreateTimeSlot(ctx context.Context, ns NewTimeSlot) (TimeSlot, error) {
	now := nowFunc().UTC()
	slot := TimeSlot{CreatedAt: now, IsActive: true}
	ns.apply(&slot)
	slot.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkTimeSlot(ctx, slot, exec); err != nil {
			return err
		}
		var err error
		slot, err = svc.repo.CreateTimeSlot(ctx, slot, exec)
		return errors.Wrap(err, "creating time slot")
	})
	return slot, err
}

func (svc *Service) UpdateTimeSlot(ctx context.Context, id string, ns NewTimeSlot) (TimeSlot, error) {
	var slot TimeSlot
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if slot, err = svc.repo.GetTimeSlot(ctx, id, exec); err != nil {
			return err
		}
		wasBreak := slot.IsBreak
		ns.apply(&slot)
		slot.UpdatedAt = nowFunc().UTC()
		if err = svc.checkTimeSlot(ctx, slot, exec); err != nil {
			return err
		}
		if slot.IsBreak && !wasBreak {
			lessons, err := svc.repo.SlotHasLessons(ctx, slot.ID, exec)
			if err != nil {
				return errors.Wrap(err, "checking slot entries")
			}
			if lessons {
				return core.NewFieldError("is_break", slotHasLessonsMsg)
			}
		}
		slot, err = svc.repo.UpdateTimeSlot(ctx, slot, exec)
		return errors.Wrap(err, "updating time slot")
	})
	return slot, err
}

func (ns NewTimeSlot) apply(slot *TimeSlot) {
	slot.Name = ns.Name
	slot.Day = ns.Day
	if ns.StartTime != nil {
		slot.StartTime = *ns.StartTime
	}
	if ns.EndTime != nil {
		slot.EndTime = *ns.EndTime
	}
	slot.IsBreak = ns.IsBreak
	slot.Order = ns.Order
	if ns.IsActive != nil {
		slot.IsActive = *ns.IsActive
	}
}

func (svc *Service) checkTimeSlot(ctx context.Context, slot TimeSlot, exec core.DBExecutor) error {
	// range first, so an inverted slot is reported as such rather than as a clash
	if slot.StartTime >= slot.EndTime {
		return ValidateTimeSlot(slot, nil)
	}
	taken, err := svc.repo.TimeSlotExists(ctx, slot.Day, slot.StartTime, slot.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking time slot uniqueness")
	}
	if taken {
		return core.NewConflictError("time_slot", "", "start_time",
			fmt.Sprintf("a time slot already starts at %s on %s", slot.StartTime, slot.Day))
	}
	siblings, err := svc.repo.QueryTimeSlots(ctx, SlotFilter{Day: slot.Day, ActiveOnly: true}, exec)
	if err != nil {
		return errors.Wrap(err, "querying time slots")
	}
	return ValidateTimeSlot(slot, siblings)
}

func (svc *Service) DeleteTimeSlot(ctx context.Context, id string) error {
	return svc.repo.DeleteTimeSlot(ctx, id)
}

func (svc *Service) GetTimeSlot(ctx context.Context, id string) (TimeSlot, error) {
	return svc.repo.GetTimeSlot(ctx, id)
}

func (svc *Service) ListTimeSlots(ctx context.Context, filter SlotFilter) ([]TimeSlot, error) {
	return svc.repo.QueryTimeSlots(ctx, filter)
}

// TimeSlotsByDay returns the active slots of day.
func (svc *Service) TimeSlotsByDay(ctx context.Context, day Weekday) ([]TimeSlot, error) {
	if !day.IsValid() {
		return nil, core.NewFieldError("day", fmt.Sprintf("invalid day %q", day))
	}
	return svc.repo.QueryTimeSlots(ctx, SlotFilter{Day: day, ActiveOnly: true})
}

// WeeklySchedule groups the active slots by day, monday first. Days without slots are skipped.
func (svc *Service) WeeklySchedule(ctx context.Context) ([]DaySchedule, error) {
	slots, err := svc.repo.QueryTimeSlots(ctx, SlotFilter{ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying time slots")
	}
	byDay := make(map[Weekday][]TimeSlot)
	for _, s := range slots {
		byDay[s.Day] = append(byDay[s.Day], s)
	}
	schedule := make([]DaySchedule, 0, len(byDay))
	for _, day := range Weekdays {
		if daySlots, ok := byDay[day]; ok {
			schedule = append(schedule, DaySchedule{Day: day, Slots: daySlots})
		}
	}
	return schedule, nil
}

// Timetables

func (svc *Service) CreateTimetable(ctx context.Context, nt NewTimetable, createdBy *string) (Timetable, error) {
	now := nowFunc().UTC()
	tt := Timetable{IsActive: true, CreatedBy: createdBy, CreatedAt: now}
	nt.apply(&tt)
	tt.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkTimetable(ctx, tt, exec); err != nil {
			return err
		}
		var err error
		tt, err = svc.repo.CreateTimetable(ctx, tt, exec)
		return errors.Wrap(err, "creating timetable")
	})
	return tt, err
}

// UpdateTimetable replaces tt's fields. Moving a timetable to another class, section, year or term,
// or reactivating it, re-validates all of its entries.
func (svc *Service) UpdateTimetable(ctx context.Context, id string, nt NewTimetable) (Timetable, error) {
	var tt Timetable
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if tt, err = svc.repo.GetTimetable(ctx, id, exec); err != nil {
			return err
		}
		orig := tt
		nt.apply(&tt)
		tt.UpdatedAt = nowFunc().UTC()
		if err = svc.checkTimetable(ctx, tt, exec); err != nil {
			return err
		}
		if !sameTuple(orig, tt) || (tt.IsActive && !orig.IsActive) {
			if err = svc.checkEntries(ctx, tt, exec); err != nil {
				return err
			}
		}
		tt, err = svc.repo.UpdateTimetable(ctx, tt, exec)
		return errors.Wrap(err, "updating timetable")
	})
	return tt, err
}

func (nt NewTimetable) apply(tt *Timetable) {
	tt.Name = nt.Name
	tt.ClassID = nt.ClassID
	tt.SectionID = nt.SectionID
	tt.AcademicYearID = nt.AcademicYearID
	tt.TermID = nt.TermID
	if nt.IsActive != nil {
		tt.IsActive = *nt.IsActive
	}
}

func (svc *Service) checkTimetable(ctx context.Context, tt Timetable, exec core.DBExecutor) error {
	if _, err := svc.academic.GetClass(ctx, tt.ClassID, exec); err != nil {
		return refError(err, academic.ErrClassNotFound, "class_id")
	}
	if _, err := svc.academic.GetAcademicYear(ctx, tt.AcademicYearID, exec); err != nil {
		return refError(err, academic.ErrAcademicYearNotFound, "academic_year_id")
	}
	term, err := svc.academic.GetTerm(ctx, tt.TermID, exec)
	if err != nil {
		return refError(err, academic.ErrTermNotFound, "term_id")
	}
	var section *academic.Section
	if tt.SectionID != nil {
		s, err := svc.academic.GetSection(ctx, *tt.SectionID, exec)
		if err != nil {
			return refError(err, academic.ErrSectionNotFound, "section_id")
		}
		section = &s
	}
	if err = ValidateTimetable(tt, section, term); err != nil {
		return err
	}

	exists, err := svc.repo.TimetableExists(ctx, tt, exec)
	if err != nil {
		return errors.Wrap(err, "checking timetable uniqueness")
	}
	if exists {
		return core.NewConflictError("timetable", "", "", "a timetable already exists for this class, section, academic year and term")
	}
	return nil
}

func sameTuple(a, b Timetable) bool {
	return a.ClassID == b.ClassID && core.SameStringPtr(a.SectionID, b.SectionID) &&
		a.AcademicYearID == b.AcademicYearID && a.TermID == b.TermID
}

// checkEntries validates every entry of tt against tt's new state.
func (svc *Service) checkEntries(ctx context.Context, tt Timetable, exec core.DBExecutor) error {
	entries, err := svc.repo.QueryEntries(ctx, tt.ID, exec)
	if err != nil {
		return errors.Wrap(err, "querying entries")
	}
	for _, e := range entries {
		if err = svc.validateEntry(ctx, e.Entry, tt, exec); err != nil {
			return err
		}
	}
	return nil
}

func (svc *Service) DeleteTimetable(ctx context.Context, id string) error {
	return svc.repo.DeleteTimetable(ctx, id)
}

func (svc *Service) GetTimetable(ctx context.Context, id string) (Timetable, error) {
	return svc.repo.GetTimetable(ctx, id)
}

func (svc *Service) ListTimetables(ctx context.Context, filter TimetableFilter) ([]Timetable, error) {
	return svc.repo.QueryTimetables(ctx, filter)
}

// TimetablesByTeacher returns the timetables in which the teacher has at least one entry.
func (svc *Service) TimetablesByTeacher(ctx context.Context, teacherID string) ([]Timetable, error) {
	if teacherID == "" {
		return nil, core.NewFieldError("teacher_id", "teacher_id parameter is required")
	}
	return svc.repo.QueryTimetables(ctx, TimetableFilter{TeacherID: teacherID})
}

// Duplicate copies a timetable and its entries into another academic year / term.
// Copied entries are re-validated: a teacher assignment that no longer matches the
// new timetable, or that would double-book its teacher, is dropped from the copy.
func (svc *Service) Duplicate(ctx context.Context, id string, dt DuplicateTimetable, createdBy *string) (DuplicateResult, error) {
	var res DuplicateResult
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetTimetable(ctx, id, exec)
		if err != nil {
			return err
		}
		name := dt.Name
		if name == "" {
			name = orig.Name + " (Copy)"
		}
		now := nowFunc().UTC()
		tt := Timetable{
			Name:           name,
			ClassID:        orig.ClassID,
			SectionID:      orig.SectionID,
			AcademicYearID: dt.AcademicYearID,
			TermID:         dt.TermID,
			IsActive:       true,
			CreatedBy:      createdBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err = svc.checkTimetable(ctx, tt, exec); err != nil {
			return err
		}
		if tt, err = svc.repo.CreateTimetable(ctx, tt, exec); err != nil {
			return errors.Wrap(err, "creating timetable")
		}

		entries, err := svc.repo.QueryEntries(ctx, orig.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying entries")
		}
		res = DuplicateResult{Timetable: tt, Unassigned: []string{}}
		for _, e := range entries {
			entry := Entry{
				TimetableID:         tt.ID,
				TimeSlotID:          e.TimeSlotID,
				SubjectID:           e.SubjectID,
				TeacherAssignmentID: e.TeacherAssignmentID,
				Room:                e.Room,
				Notes:               e.Notes,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if entry.TeacherAssignmentID != nil {
				err = svc.validateEntry(ctx, entry, tt, exec)
				switch {
				case err == nil:
				case core.IsValidationError(err) || core.IsConflictError(err):
					entry.TeacherAssignmentID = nil
					res.Unassigned = append(res.Unassigned, e.ID)
				default:
					return err
				}
			}
			if _, err = svc.repo.CreateEntry(ctx, entry, exec); err != nil {
				return errors.Wrap(err, "copying entry")
			}
			res.Copied++
		}
		return nil
	})
	return res, err
}

// Entries

func (svc *Service) CreateEntry(ctx context.Context, ne NewEntry) (Entry, error) {
	var entry Entry
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		entry, err = svc.createEntry(ctx, ne, exec)
		return err
	})
	return entry, err
}

func (svc *Service) createEntry(ctx context.Context, ne NewEntry, exec core.DBExecutor) (Entry, error) {
	now := nowFunc().UTC()
	entry := Entry{CreatedAt: now}
	ne.apply(&entry)
	entry.UpdatedAt = now
	if err := svc.checkEntry(ctx, entry, exec); err != nil {
		return Entry{}, err
	}
	entry, err := svc.repo.CreateEntry(ctx, entry, exec)
	return entry, errors.Wrap(err, "creating timetable entry")
}

func (svc *Service) UpdateEntry(ctx context.Context, id string, ne NewEntry) (Entry, error) {
	var entry Entry
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if entry, err = svc.repo.GetEntry(ctx, id, exec); err != nil {
			return err
		}
		ne.apply(&entry)
		entry.UpdatedAt = nowFunc().UTC()
		if err = svc.checkEntry(ctx, entry, exec); err != nil {
			return err
		}
		entry, err = svc.repo.UpdateEntry(ctx, entry, exec)
		return errors.Wrap(err, "updating timetable entry")
	})
	return entry, err
}

func (ne NewEntry) apply(entry *Entry) {
	entry.TimetableID = ne.TimetableID
	entry.TimeSlotID = ne.TimeSlotID
	entry.SubjectID = ne.SubjectID
	entry.TeacherAssignmentID = ne.TeacherAssignmentID
	entry.Room = ne.Room
	entry.Notes = ne.Notes
}

func (svc *Service) checkEntry(ctx context.Context, entry Entry, exec core.DBExecutor) error {
	tt, err := svc.repo.GetTimetable(ctx, entry.TimetableID, exec)
	if err != nil {
		return refError(err, ErrTimetableNotFound, "timetable_id")
	}
	if entry.SubjectID != nil {
		if _, err = svc.academic.GetSubject(ctx, *entry.SubjectID, exec); err != nil {
			return refError(err, academic.ErrSubjectNotFound, "subject_id")
		}
	}
	taken, err := svc.repo.EntryExists(ctx, entry.TimetableID, entry.TimeSlotID, entry.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking entry uniqueness")
	}
	if taken {
		return core.NewConflictError("timetable_entry", "", "time_slot_id",
			fmt.Sprintf("%s already has an entry in this time slot", tt.Name))
	}
	return svc.validateEntry(ctx, entry, tt, exec)
}

// validateEntry loads what ValidateEntry needs for entry and runs it.
func (svc *Service) validateEntry(ctx context.Context, entry Entry, tt Timetable, exec core.DBExecutor) error {
	slot, err := svc.repo.GetTimeSlot(ctx, entry.TimeSlotID, exec)
	if err != nil {
		return refError(err, ErrTimeSlotNotFound, "time_slot_id")
	}
	var (
		asg      *academic.TeacherAssignment
		bookings []Booking
	)
	if entry.TeacherAssignmentID != nil && !slot.IsBreak {
		a, err := svc.academic.GetTeacherAssignment(ctx, *entry.TeacherAssignmentID, exec)
		if err != nil {
			return refError(err, academic.ErrTeacherAssignmentNotFound, "teacher_assignment_id")
		}
		asg = &a
		if bookings, err = svc.repo.QueryBookings(ctx, slot.ID, exec); err != nil {
			return errors.Wrap(err, "querying bookings")
		}
	}
	return ValidateEntry(entry, slot, tt, asg, bookings)
}

func (svc *Service) DeleteEntry(ctx context.Context, id string) error {
	return svc.repo.DeleteEntry(ctx, id)
}

func (svc *Service) GetEntry(ctx context.Context, id string) (Entry, error) {
	return svc.repo.GetEntry(ctx, id)
}

func (svc *Service) EntriesByTimetable(ctx context.Context, timetableID string) ([]ScheduledEntry, error) {
	if timetableID == "" {
		return nil, core.NewFieldError("timetable_id", "timetable_id parameter is required")
	}
	return svc.repo.QueryEntries(ctx, timetableID)
}

// TeacherSchedule groups the teacher's entries by day, monday first. Days without entries are skipped.
func (svc *Service) TeacherSchedule(ctx context.Context, teacherID string) ([]TeacherDaySchedule, error) {
	if teacherID == "" {
		return nil, core.NewFieldError("teacher_id", "teacher_id parameter is required")
	}
	entries, err := svc.repo.QueryTeacherEntries(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher entries")
	}
	byDay := make(map[Weekday][]ScheduledEntry)
	for _, e := range entries {
		byDay[e.TimeSlot.Day] = append(byDay[e.TimeSlot.Day], e)
	}
	schedule := make([]TeacherDaySchedule, 0, len(byDay))
	for _, day := range Weekdays {
		if dayEntries, ok := byDay[day]; ok {
			schedule = append(schedule, TeacherDaySchedule{Day: day, Entries: dayEntries})
		}
	}
	return schedule, nil
}

// BulkCreateEntries creates each entry in its own transaction; failures are collected, not fatal.
// validate runs the struct validation of each entry and must report failures as core.ValidationError
// (see core.TranslateValidationErrors).
func (svc *Service) BulkCreateEntries(ctx context.Context, entries []NewEntry, validate func(*NewEntry) error) (BulkResult, error) {
	if len(entries) == 0 {
		return BulkResult{}, core.NewFieldError("entries", "entries array is required")
	}

	res := BulkResult{Created: []Entry{}, Errors: []BulkEntryError{}}
	for i := range entries {
		ne := entries[i]
		var entry Entry
		err := validate(&ne)
		if err == nil {
			err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
				var err error
				entry, err = svc.createEntry(ctx, ne, exec)
				return err
			})
		}
		if err != nil {
			fields, ok := core.ClientErrorFields(err)
			if !ok {
				return BulkResult{}, err
			}
			res.Errors = append(res.Errors, BulkEntryError{Index: i, Data: ne, Errors: fields})
			continue
		}
		res.Created = append(res.Created, entry)
	}
	res.Summary = BulkSummary{Total: len(entries), Created: len(res.Created), Failed: len(res.Errors)}
	return res, nil
}

// refError turns the not-found error of a referenced record into a field error.
func refError(err, notFound error, field string) error {
	if errors.Cause(err) == notFound {
		return core.NewFieldError(field, notFound.Error())
	}
	return errors.Wrapf(err, "getting %s", field)
}
