package timetable

import (
	"fmt"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

const (
	breakWithSubjectMsg  = "Break periods cannot have subjects or teachers assigned."
	subjectRequiredMsg   = "Non-break periods must have a subject assigned."
	assignmentMismatch   = "Teacher assignment does not match the timetable's subject, class, section and academic year."
	sectionOfClassMsg    = "Selected section does not belong to this class."
	termOfYearMsg        = "Selected term does not belong to the selected academic year."
	endBeforeStartMsg    = "end time must be later than start time"
	teacherDoubleBooking = "Teacher is already assigned to %s at this time slot."
	slotHasLessonsMsg    = "Time slot has lessons booked and cannot become a break."
)

// ValidateTimeSlot checks slot against the other slots of the same day.
// Inactive slots are never considered in the overlap check, on either side.
func ValidateTimeSlot(slot TimeSlot, siblings []TimeSlot) error {
	if slot.StartTime >= slot.EndTime {
		return core.NewFieldError("end_time", endBeforeStartMsg)
	}
	if !slot.IsActive {
		return nil
	}
	for _, sib := range siblings {
		if !sib.IsActive || sib.Day != slot.Day || (slot.ID != "" && sib.ID == slot.ID) {
			continue
		}
		if slot.Overlaps(sib) {
			return core.NewConflictError("time_slot", sib.ID, "start_time", fmt.Sprintf(
				"Time slot overlaps with %s (%s - %s).", sib.Name, sib.StartTime, sib.EndTime,
			))
		}
	}
	return nil
}

// ValidateTimetable checks that the section belongs to the class and the term to the year.
// section may be nil when the timetable covers the whole class.
func ValidateTimetable(tt Timetable, section *academic.Section, term academic.Term) error {
	if section != nil && section.ClassID != tt.ClassID {
		return core.NewFieldError("section_id", sectionOfClassMsg)
	}
	if term.AcademicYearID != tt.AcademicYearID {
		return core.NewFieldError("term_id", termOfYearMsg)
	}
	return nil
}

// ValidateEntry checks entry against its slot and timetable, then scans bookings
// (entries of active timetables in the same slot) for a double-booked teacher.
// asg is nil when the entry carries no teacher assignment.
func ValidateEntry(entry Entry, slot TimeSlot, tt Timetable, asg *academic.TeacherAssignment, bookings []Booking) error {
	if slot.IsBreak {
		if entry.SubjectID != nil || entry.TeacherAssignmentID != nil {
			return core.NewFieldError("time_slot_id", breakWithSubjectMsg)
		}
		return nil
	}
	if entry.SubjectID == nil {
		return core.NewFieldError("subject_id", subjectRequiredMsg)
	}
	if asg == nil {
		return nil
	}
	if !asg.Matches(*entry.SubjectID, tt.ClassID, tt.SectionID, tt.AcademicYearID) {
		return core.NewFieldError("teacher_assignment_id", assignmentMismatch)
	}

	for _, b := range bookings {
		if b.Entry.TimeSlotID != entry.TimeSlotID || !b.Timetable.IsActive {
			continue
		}
		if entry.ID != "" && b.Entry.ID == entry.ID {
			continue
		}
		sameAsg := b.Entry.TeacherAssignmentID != nil && *b.Entry.TeacherAssignmentID == asg.ID
		if sameAsg || (b.TeacherID != "" && b.TeacherID == asg.TeacherID) {
			return core.NewConflictError("timetable_entry", b.Entry.ID, "teacher_assignment_id",
				fmt.Sprintf(teacherDoubleBooking, b.Timetable.Name))
		}
	}
	return nil
}
