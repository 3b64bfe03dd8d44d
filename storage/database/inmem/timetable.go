package inmemdb

import (
	"context"
	"sort"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/timetable"
)

type timetableRepository struct {
	db       *timetableTables
	academic *academicTables
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *DB) *timetableRepository {
	return &timetableRepository{db: db.timetable, academic: db.academic}
}

func lessSlot(a, b timetable.TimeSlot) bool {
	if a.Day != b.Day {
		return a.Day.Index() < b.Day.Index()
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.StartTime < b.StartTime
}

// Time slots

func (repo *timetableRepository) CreateTimeSlot(ctx context.Context, slot timetable.TimeSlot, _ ...core.DBExecutor) (timetable.TimeSlot, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	slot.ID = newID()
	repo.db.slots[slot.ID] = slot
	return slot, nil
}

func (repo *timetableRepository) UpdateTimeSlot(ctx context.Context, slot timetable.TimeSlot, _ ...core.DBExecutor) (timetable.TimeSlot, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.slots[slot.ID]; !ok {
		return timetable.TimeSlot{}, timetable.ErrTimeSlotNotFound
	}
	repo.db.slots[slot.ID] = slot
	return slot, nil
}

func (repo *timetableRepository) DeleteTimeSlot(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.slots[id]; !ok {
		return timetable.ErrTimeSlotNotFound
	}
	for eid, entry := range repo.db.entries {
		if entry.TimeSlotID == id {
			delete(repo.db.entries, eid)
		}
	}
	delete(repo.db.slots, id)
	return nil
}

func (repo *timetableRepository) GetTimeSlot(ctx context.Context, id string, _ ...core.DBExecutor) (timetable.TimeSlot, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if slot, ok := repo.db.slots[id]; ok {
		return slot, nil
	}
	return timetable.TimeSlot{}, timetable.ErrTimeSlotNotFound
}

func (repo *timetableRepository) QueryTimeSlots(ctx context.Context, filter timetable.SlotFilter, _ ...core.DBExecutor) ([]timetable.TimeSlot, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	slots := make([]timetable.TimeSlot, 0)
	for _, slot := range repo.db.slots {
		switch {
		case filter.Day != "" && slot.Day != filter.Day,
			filter.ActiveOnly && !slot.IsActive,
			filter.IsBreak != nil && slot.IsBreak != *filter.IsBreak:
			continue
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return lessSlot(slots[i], slots[j]) })
	return slots, nil
}

func (repo *timetableRepository) TimeSlotExists(ctx context.Context, day timetable.Weekday, start core.ClockTime, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, slot := range repo.db.slots {
		if slot.ID != excludeID && slot.Day == day && slot.StartTime == start {
			return true, nil
		}
	}
	return false, nil
}

// Timetables

func (repo *timetableRepository) CreateTimetable(ctx context.Context, tt timetable.Timetable, _ ...core.DBExecutor) (timetable.Timetable, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tt.ID = newID()
	repo.db.timetables[tt.ID] = tt
	return tt, nil
}

func (repo *timetableRepository) UpdateTimetable(ctx context.Context, tt timetable.Timetable, _ ...core.DBExecutor) (timetable.Timetable, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.timetables[tt.ID]; !ok {
		return timetable.Timetable{}, timetable.ErrTimetableNotFound
	}
	repo.db.timetables[tt.ID] = tt
	return tt, nil
}

func (repo *timetableRepository) DeleteTimetable(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.timetables[id]; !ok {
		return timetable.ErrTimetableNotFound
	}
	for eid, entry := range repo.db.entries {
		if entry.TimetableID == id {
			delete(repo.db.entries, eid)
		}
	}
	delete(repo.db.timetables, id)
	return nil
}

func (repo *timetableRepository) GetTimetable(ctx context.Context, id string, _ ...core.DBExecutor) (timetable.Timetable, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tt, ok := repo.db.timetables[id]; ok {
		return tt, nil
	}
	return timetable.Timetable{}, timetable.ErrTimetableNotFound
}

func (repo *timetableRepository) QueryTimetables(ctx context.Context, filter timetable.TimetableFilter, _ ...core.DBExecutor) ([]timetable.Timetable, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var taught map[string]bool
	if filter.TeacherID != "" {
		taught = make(map[string]bool)
		for _, entry := range repo.db.entries {
			if repo.teacherOf(entry) == filter.TeacherID {
				taught[entry.TimetableID] = true
			}
		}
	}

	tts := make([]timetable.Timetable, 0)
	for _, tt := range repo.db.timetables {
		switch {
		case filter.ClassID != "" && tt.ClassID != filter.ClassID,
			filter.SectionID != "" && core.StringValue(tt.SectionID) != filter.SectionID,
			filter.AcademicYearID != "" && tt.AcademicYearID != filter.AcademicYearID,
			filter.TermID != "" && tt.TermID != filter.TermID,
			filter.IsActive != nil && tt.IsActive != *filter.IsActive,
			taught != nil && !taught[tt.ID]:
			continue
		}
		tts = append(tts, tt)
	}
	sort.Slice(tts, func(i, j int) bool { return tts[i].CreatedAt.After(tts[j].CreatedAt) })
	return tts, nil
}

func (repo *timetableRepository) TimetableExists(ctx context.Context, tt timetable.Timetable, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, other := range repo.db.timetables {
		if other.ID != tt.ID &&
			other.ClassID == tt.ClassID &&
			core.SameStringPtr(other.SectionID, tt.SectionID) &&
			other.AcademicYearID == tt.AcademicYearID &&
			other.TermID == tt.TermID {
			return true, nil
		}
	}
	return false, nil
}

// Entries

func (repo *timetableRepository) CreateEntry(ctx context.Context, entry timetable.Entry, _ ...core.DBExecutor) (timetable.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entry.ID = newID()
	repo.db.entries[entry.ID] = entry
	return entry, nil
}

func (repo *timetableRepository) UpdateEntry(ctx context.Context, entry timetable.Entry, _ ...core.DBExecutor) (timetable.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.entries[entry.ID]; !ok {
		return timetable.Entry{}, timetable.ErrEntryNotFound
	}
	repo.db.entries[entry.ID] = entry
	return entry, nil
}

func (repo *timetableRepository) DeleteEntry(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.entries[id]; !ok {
		return timetable.ErrEntryNotFound
	}
	delete(repo.db.entries, id)
	return nil
}

func (repo *timetableRepository) GetEntry(ctx context.Context, id string, _ ...core.DBExecutor) (timetable.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if entry, ok := repo.db.entries[id]; ok {
		return entry, nil
	}
	return timetable.Entry{}, timetable.ErrEntryNotFound
}

func (repo *timetableRepository) QueryEntries(ctx context.Context, timetableID string, _ ...core.DBExecutor) ([]timetable.ScheduledEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.scheduled(func(entry timetable.Entry) bool { return entry.TimetableID == timetableID }), nil
}

func (repo *timetableRepository) EntryExists(ctx context.Context, timetableID, slotID, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, entry := range repo.db.entries {
		if entry.ID != excludeID && entry.TimetableID == timetableID && entry.TimeSlotID == slotID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *timetableRepository) SlotHasLessons(ctx context.Context, slotID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, entry := range repo.db.entries {
		if entry.TimeSlotID == slotID && (entry.SubjectID != nil || entry.TeacherAssignmentID != nil) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *timetableRepository) QueryBookings(ctx context.Context, slotID string, _ ...core.DBExecutor) ([]timetable.Booking, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	bookings := make([]timetable.Booking, 0)
	for _, entry := range repo.db.entries {
		if entry.TimeSlotID != slotID {
			continue
		}
		tt, ok := repo.db.timetables[entry.TimetableID]
		if !ok || !tt.IsActive {
			continue
		}
		bookings = append(bookings, timetable.Booking{Entry: entry, Timetable: tt, TeacherID: repo.teacherOf(entry)})
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].Entry.CreatedAt.Before(bookings[j].Entry.CreatedAt) })
	return bookings, nil
}

func (repo *timetableRepository) QueryTeacherEntries(ctx context.Context, teacherID string, _ ...core.DBExecutor) ([]timetable.ScheduledEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.scheduled(func(entry timetable.Entry) bool {
		tt, ok := repo.db.timetables[entry.TimetableID]
		return ok && tt.IsActive && repo.teacherOf(entry) == teacherID
	}), nil
}

// scheduled joins the matching entries with their slot, ordered by day & slot order.
// The caller holds the timetable lock.
func (repo *timetableRepository) scheduled(match func(timetable.Entry) bool) []timetable.ScheduledEntry {
	res := make([]timetable.ScheduledEntry, 0)
	for _, entry := range repo.db.entries {
		if !match(entry) {
			continue
		}
		res = append(res, timetable.ScheduledEntry{
			Entry:     entry,
			TimeSlot:  repo.db.slots[entry.TimeSlotID],
			TeacherID: repo.teacherOf(entry),
		})
	}
	sort.Slice(res, func(i, j int) bool { return lessSlot(res[i].TimeSlot, res[j].TimeSlot) })
	return res
}

func (repo *timetableRepository) teacherOf(entry timetable.Entry) string {
	if entry.TeacherAssignmentID == nil {
		return ""
	}
	repo.academic.mutex.RLock()
	defer repo.academic.mutex.RUnlock()
	return repo.academic.assignments[*entry.TeacherAssignmentID].TeacherID
}
