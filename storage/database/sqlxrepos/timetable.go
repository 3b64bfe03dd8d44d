package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/timetable"
)

const (
	slotColumns      = `id, name, day_of_week, start_time, end_time, is_break, slot_order, is_active, created_at, updated_at`
	timetableColumns = `id, name, class_id, section_id, academic_year_id, term_id, is_active, created_by, created_at, updated_at`
	entryColumns     = `id, timetable_id, time_slot_id, subject_id, teacher_assignment_id, room, notes, created_at, updated_at`

	scheduledSelect = `
		SELECT e.id, e.timetable_id, e.time_slot_id, e.subject_id, e.teacher_assignment_id, e.room, e.notes,
			e.created_at, e.updated_at,
			s.id AS "slot.id", s.name AS "slot.name", s.day_of_week AS "slot.day_of_week",
			s.start_time AS "slot.start_time", s.end_time AS "slot.end_time", s.is_break AS "slot.is_break",
			s.slot_order AS "slot.slot_order", s.is_active AS "slot.is_active",
			s.created_at AS "slot.created_at", s.updated_at AS "slot.updated_at",
			ta.teacher_id
		FROM timetable_entry e
		JOIN time_slot s ON s.id = e.time_slot_id
		JOIN timetable t ON t.id = e.timetable_id
		LEFT JOIN teacher_assignment ta ON ta.id = e.teacher_assignment_id`
)

// weekdayList is the SQL array literal of the weekdays, monday first.
var weekdayList = func() string {
	days := make([]string, 0, len(timetable.Weekdays))
	for _, d := range timetable.Weekdays {
		days = append(days, "'"+string(d)+"'")
	}
	return "ARRAY[" + strings.Join(days, ", ") + "]::text[]"
}()

// orderSlots sorts the slots of alias by weekday, then by their order & start time.
func orderSlots(alias string) string {
	if alias != "" {
		alias += "."
	}
	return fmt.Sprintf(" ORDER BY array_position(%s, %sday_of_week::text), %sslot_order, %sstart_time",
		weekdayList, alias, alias, alias)
}

type scheduledRow struct {
	timetable.Entry
	Slot      timetable.TimeSlot `db:"slot"`
	TeacherID null.String        `db:"teacher_id"`
}

func (row scheduledRow) toScheduledEntry() timetable.ScheduledEntry {
	return timetable.ScheduledEntry{Entry: row.Entry, TimeSlot: row.Slot, TeacherID: row.TeacherID.String}
}

type bookingRow struct {
	timetable.Entry
	Timetable timetable.Timetable `db:"tt"`
	TeacherID null.String         `db:"teacher_id"`
}

type timetableRepository struct {
	baseRepository
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(exec core.DBExecutor) *timetableRepository {
	return &timetableRepository{baseRepository{exec: exec}}
}

// Time slots

func (repo timetableRepository) CreateTimeSlot(ctx context.Context, slot timetable.TimeSlot, exec ...core.DBExecutor) (timetable.TimeSlot, error) {
	slot.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO time_slot (`+slotColumns+`)
		VALUES (:id, :name, :day_of_week, :start_time, :end_time, :is_break, :slot_order, :is_active, :created_at, :updated_at)`, slot)
	if err = trapUniqueViolation(err, "time_slot", map[string]string{"time_slot_day_start_key": "start_time"}); err != nil {
		return timetable.TimeSlot{}, errors.Wrap(err, "inserting time slot")
	}
	return slot, nil
}

func (repo timetableRepository) UpdateTimeSlot(ctx context.Context, slot timetable.TimeSlot, exec ...core.DBExecutor) (timetable.TimeSlot, error) {
	err := namedUpdate(ctx, repo.getExec(exec), timetable.ErrTimeSlotNotFound, `
		UPDATE time_slot SET name = :name, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time,
			is_break = :is_break, slot_order = :slot_order, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, slot)
	if err = trapUniqueViolation(err, "time_slot", map[string]string{"time_slot_day_start_key": "start_time"}); err != nil {
		return timetable.TimeSlot{}, wrapGet(err, timetable.ErrTimeSlotNotFound, "updating time slot")
	}
	return slot, nil
}

// DeleteTimeSlot relies on the timetable_entry foreign key cascade.
func (repo timetableRepository) DeleteTimeSlot(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "time_slot", id, timetable.ErrTimeSlotNotFound)
}

func (repo timetableRepository) GetTimeSlot(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.TimeSlot, error) {
	var slot timetable.TimeSlot
	err := get(ctx, repo.getExec(exec), &slot, timetable.ErrTimeSlotNotFound, `SELECT `+slotColumns+` FROM time_slot WHERE id = ?`, id)
	if err != nil {
		return timetable.TimeSlot{}, wrapGet(err, timetable.ErrTimeSlotNotFound, "selecting time slot")
	}
	return slot, nil
}

func (repo timetableRepository) QueryTimeSlots(ctx context.Context, filter timetable.SlotFilter, exec ...core.DBExecutor) ([]timetable.TimeSlot, error) {
	w := &where{}
	if filter.Day != "" {
		w.add("day_of_week = ?", filter.Day)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	if filter.IsBreak != nil {
		w.add("is_break = ?", *filter.IsBreak)
	}
	slots := make([]timetable.TimeSlot, 0)
	err := selectAll(ctx, repo.getExec(exec), &slots, `SELECT `+slotColumns+` FROM time_slot`+w.String()+orderSlots(""), w.args...)
	return slots, errors.Wrap(err, "selecting time slots")
}

func (repo timetableRepository) TimeSlotExists(ctx context.Context, day timetable.Weekday, start core.ClockTime, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM time_slot WHERE day_of_week = ? AND start_time = ? AND id::text <> ?`, day, start, excludeID)
}

// Timetables

func (repo timetableRepository) CreateTimetable(ctx context.Context, tt timetable.Timetable, exec ...core.DBExecutor) (timetable.Timetable, error) {
	tt.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO timetable (`+timetableColumns+`)
		VALUES (:id, :name, :class_id, :section_id, :academic_year_id, :term_id, :is_active, :created_by, :created_at, :updated_at)`, tt)
	if err = trapUniqueViolation(err, "timetable", nil); err != nil {
		return timetable.Timetable{}, errors.Wrap(err, "inserting timetable")
	}
	return tt, nil
}

func (repo timetableRepository) UpdateTimetable(ctx context.Context, tt timetable.Timetable, exec ...core.DBExecutor) (timetable.Timetable, error) {
	err := namedUpdate(ctx, repo.getExec(exec), timetable.ErrTimetableNotFound, `
		UPDATE timetable SET name = :name, class_id = :class_id, section_id = :section_id,
			academic_year_id = :academic_year_id, term_id = :term_id, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, tt)
	if err = trapUniqueViolation(err, "timetable", nil); err != nil {
		return timetable.Timetable{}, wrapGet(err, timetable.ErrTimetableNotFound, "updating timetable")
	}
	return tt, nil
}

func (repo timetableRepository) DeleteTimetable(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "timetable", id, timetable.ErrTimetableNotFound)
}

func (repo timetableRepository) GetTimetable(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.Timetable, error) {
	var tt timetable.Timetable
	err := get(ctx, repo.getExec(exec), &tt, timetable.ErrTimetableNotFound, `SELECT `+timetableColumns+` FROM timetable WHERE id = ?`, id)
	if err != nil {
		return timetable.Timetable{}, wrapGet(err, timetable.ErrTimetableNotFound, "selecting timetable")
	}
	return tt, nil
}

func (repo timetableRepository) QueryTimetables(ctx context.Context, filter timetable.TimetableFilter, exec ...core.DBExecutor) ([]timetable.Timetable, error) {
	w := &where{}
	if filter.ClassID != "" {
		w.add("class_id::text = ?", filter.ClassID)
	}
	if filter.SectionID != "" {
		w.add("section_id::text = ?", filter.SectionID)
	}
	if filter.AcademicYearID != "" {
		w.add("academic_year_id::text = ?", filter.AcademicYearID)
	}
	if filter.TermID != "" {
		w.add("term_id::text = ?", filter.TermID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if filter.TeacherID != "" {
		w.add(`EXISTS (
			SELECT 1 FROM timetable_entry e
			JOIN teacher_assignment ta ON ta.id = e.teacher_assignment_id
			WHERE e.timetable_id = timetable.id AND ta.teacher_id::text = ?)`, filter.TeacherID)
	}
	tts := make([]timetable.Timetable, 0)
	err := selectAll(ctx, repo.getExec(exec), &tts,
		`SELECT `+timetableColumns+` FROM timetable`+w.String()+` ORDER BY created_at DESC`, w.args...)
	return tts, errors.Wrap(err, "selecting timetables")
}

func (repo timetableRepository) TimetableExists(ctx context.Context, tt timetable.Timetable, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `
		SELECT 1 FROM timetable
		WHERE id::text <> ? AND class_id = ? AND academic_year_id = ? AND term_id = ?
			AND section_id IS NOT DISTINCT FROM ?`,
		tt.ID, tt.ClassID, tt.AcademicYearID, tt.TermID, tt.SectionID)
}

// Entries

func (repo timetableRepository) CreateEntry(ctx context.Context, entry timetable.Entry, exec ...core.DBExecutor) (timetable.Entry, error) {
	entry.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO timetable_entry (`+entryColumns+`)
		VALUES (:id, :timetable_id, :time_slot_id, :subject_id, :teacher_assignment_id, :room, :notes, :created_at, :updated_at)`, entry)
	if err = trapUniqueViolation(err, "timetable_entry", map[string]string{"timetable_entry_slot_key": "time_slot_id"}); err != nil {
		return timetable.Entry{}, errors.Wrap(err, "inserting timetable entry")
	}
	return entry, nil
}

func (repo timetableRepository) UpdateEntry(ctx context.Context, entry timetable.Entry, exec ...core.DBExecutor) (timetable.Entry, error) {
	err := namedUpdate(ctx, repo.getExec(exec), timetable.ErrEntryNotFound, `
		UPDATE timetable_entry SET timetable_id = :timetable_id, time_slot_id = :time_slot_id, subject_id = :subject_id,
			teacher_assignment_id = :teacher_assignment_id, room = :room, notes = :notes, updated_at = :updated_at
		WHERE id = :id`, entry)
	if err = trapUniqueViolation(err, "timetable_entry", map[string]string{"timetable_entry_slot_key": "time_slot_id"}); err != nil {
		return timetable.Entry{}, wrapGet(err, timetable.ErrEntryNotFound, "updating timetable entry")
	}
	return entry, nil
}

func (repo timetableRepository) DeleteEntry(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "timetable_entry", id, timetable.ErrEntryNotFound)
}

func (repo timetableRepository) GetEntry(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.Entry, error) {
	var entry timetable.Entry
	err := get(ctx, repo.getExec(exec), &entry, timetable.ErrEntryNotFound, `SELECT `+entryColumns+` FROM timetable_entry WHERE id = ?`, id)
	if err != nil {
		return timetable.Entry{}, wrapGet(err, timetable.ErrEntryNotFound, "selecting timetable entry")
	}
	return entry, nil
}

func (repo timetableRepository) QueryEntries(ctx context.Context, timetableID string, exec ...core.DBExecutor) ([]timetable.ScheduledEntry, error) {
	return repo.queryScheduled(ctx, repo.getExec(exec), "e.timetable_id::text = ?", timetableID)
}

func (repo timetableRepository) EntryExists(ctx context.Context, timetableID, slotID, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM timetable_entry WHERE timetable_id::text = ? AND time_slot_id::text = ? AND id::text <> ?`,
		timetableID, slotID, excludeID)
}

func (repo timetableRepository) SlotHasLessons(ctx context.Context, slotID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `
		SELECT 1 FROM timetable_entry
		WHERE time_slot_id::text = ? AND (subject_id IS NOT NULL OR teacher_assignment_id IS NOT NULL)`, slotID)
}

func (repo timetableRepository) QueryBookings(ctx context.Context, slotID string, exec ...core.DBExecutor) ([]timetable.Booking, error) {
	var rows []bookingRow
	err := selectAll(ctx, repo.getExec(exec), &rows, `
		SELECT e.id, e.timetable_id, e.time_slot_id, e.subject_id, e.teacher_assignment_id, e.room, e.notes,
			e.created_at, e.updated_at,
			t.id AS "tt.id", t.name AS "tt.name", t.class_id AS "tt.class_id", t.section_id AS "tt.section_id",
			t.academic_year_id AS "tt.academic_year_id", t.term_id AS "tt.term_id", t.is_active AS "tt.is_active",
			t.created_by AS "tt.created_by", t.created_at AS "tt.created_at", t.updated_at AS "tt.updated_at",
			ta.teacher_id
		FROM timetable_entry e
		JOIN timetable t ON t.id = e.timetable_id
		LEFT JOIN teacher_assignment ta ON ta.id = e.teacher_assignment_id
		WHERE e.time_slot_id::text = ? AND t.is_active
		ORDER BY e.created_at`, slotID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting bookings")
	}
	bookings := make([]timetable.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, timetable.Booking{Entry: row.Entry, Timetable: row.Timetable, TeacherID: row.TeacherID.String})
	}
	return bookings, nil
}

func (repo timetableRepository) QueryTeacherEntries(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]timetable.ScheduledEntry, error) {
	return repo.queryScheduled(ctx, repo.getExec(exec), "t.is_active AND ta.teacher_id::text = ?", teacherID)
}

func (repo timetableRepository) queryScheduled(ctx context.Context, exec core.DBExecutor, cond string, args ...interface{}) ([]timetable.ScheduledEntry, error) {
	var rows []scheduledRow
	if err := selectAll(ctx, exec, &rows, scheduledSelect+" WHERE "+cond+orderSlots("s"), args...); err != nil {
		return nil, errors.Wrap(err, "selecting timetable entries")
	}
	entries := make([]timetable.ScheduledEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toScheduledEntry())
	}
	return entries, nil
}
