// Package testutil builds fixtures for service and API tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/timetable"
	"github.com/shule/backend/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// School is a minimal academic setup: one active year with one term, a class with one section and a subject.
type School struct {
	Year    academic.AcademicYear
	Term    academic.Term
	Class   academic.SchoolClass
	Section academic.Section
	Subject academic.Subject
}

func SeedSchool(t *testing.T, repo academic.Repository) School {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	year, err := repo.CreateAcademicYear(ctx, academic.AcademicYear{
		Name:      "2024",
		StartDate: core.NewDate(2024, time.January, 8),
		EndDate:   core.NewDate(2024, time.November, 29),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("SeedSchool(): %v", err)
	}
	term, err := repo.CreateTerm(ctx, academic.Term{
		AcademicYearID: year.ID,
		Name:           "Term 1",
		StartDate:      core.NewDate(2024, time.January, 8),
		EndDate:        core.NewDate(2024, time.April, 5),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("SeedSchool(): %v", err)
	}
	class := CreateClass(t, repo, "Grade 1", "G1")
	section, err := repo.CreateSection(ctx, academic.Section{ClassID: class.ID, Name: "A", Capacity: 40, IsActive: true, CreatedAt: now})
	if err != nil {
		t.Fatalf("SeedSchool(): %v", err)
	}
	subject := CreateSubject(t, repo, "Mathematics", "MATH")
	return School{Year: year, Term: term, Class: class, Section: section, Subject: subject}
}

func CreateTerm(t *testing.T, repo academic.Repository, yearID, name string, start, end core.Date) academic.Term {
	t.Helper()
	now := time.Now().UTC()
	term, err := repo.CreateTerm(context.Background(), academic.Term{
		AcademicYearID: yearID, Name: name, StartDate: start, EndDate: end, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTerm(): %v", err)
	}
	return term
}

func CreateClass(t *testing.T, repo academic.Repository, name, code string) academic.SchoolClass {
	t.Helper()
	class, err := repo.CreateClass(context.Background(), academic.SchoolClass{
		Name: name, Code: code, Level: 1, IsActive: true, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateClass(): %v", err)
	}
	return class
}

func CreateSubject(t *testing.T, repo academic.Repository, name, code string) academic.Subject {
	t.Helper()
	subject, err := repo.CreateSubject(context.Background(), academic.Subject{
		Name: name, Code: code, IsActive: true, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSubject(): %v", err)
	}
	return subject
}

func CreateAssignment(
	t *testing.T,
	repo academic.Repository,
	teacherID, subjectID, classID string,
	sectionID *string,
	yearID string,
) academic.TeacherAssignment {
	t.Helper()
	asg, err := repo.CreateTeacherAssignment(context.Background(), academic.TeacherAssignment{
		TeacherID:      teacherID,
		SubjectID:      subjectID,
		ClassID:        classID,
		SectionID:      sectionID,
		AcademicYearID: yearID,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment(): %v", err)
	}
	return asg
}

// CreateTimeSlot stores an active slot; start & end are "HH:MM".
func CreateTimeSlot(t *testing.T, repo timetable.Repository, name string, day timetable.Weekday, start, end string, isBreak bool) timetable.TimeSlot {
	t.Helper()
	now := time.Now().UTC()
	slot, err := repo.CreateTimeSlot(context.Background(), timetable.TimeSlot{
		Name:      name,
		Day:       day,
		StartTime: Clock(t, start),
		EndTime:   Clock(t, end),
		IsBreak:   isBreak,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTimeSlot(): %v", err)
	}
	return slot
}

func Clock(t *testing.T, s string) core.ClockTime {
	t.Helper()
	c, err := core.ParseClockTime(s)
	if err != nil {
		t.Fatalf("Clock(%q): %v", s, err)
	}
	return c
}
