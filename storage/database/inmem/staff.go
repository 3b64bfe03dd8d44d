package inmemdb

import (
	"context"
	"sort"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/staff"
)

type staffRepository struct {
	db *staffTables
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) *staffRepository {
	return &staffRepository{db: db.staff}
}

// Profiles

func (repo *staffRepository) CreateProfile(ctx context.Context, p staff.Profile, _ ...core.DBExecutor) (staff.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.profiles {
		if other.EmployeeID == p.EmployeeID {
			return staff.Profile{}, core.NewConflictError("staff_profile", other.ID, "employee_id", "employee id already taken")
		}
	}
	p.ID = newID()
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *staffRepository) UpdateProfile(ctx context.Context, p staff.Profile, _ ...core.DBExecutor) (staff.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.profiles[p.ID]; !ok {
		return staff.Profile{}, staff.ErrProfileNotFound
	}
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *staffRepository) GetProfile(ctx context.Context, id string, _ ...core.DBExecutor) (staff.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return p, nil
	}
	return staff.Profile{}, staff.ErrProfileNotFound
}

func (repo *staffRepository) QueryProfiles(ctx context.Context, filter staff.ProfileFilter, _ ...core.DBExecutor) ([]staff.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]staff.Profile, 0)
	for _, p := range repo.db.profiles {
		switch {
		case filter.Department != "" && p.Department != filter.Department,
			filter.EmploymentType != "" && p.EmploymentType != filter.EmploymentType,
			filter.ActiveOnly && !p.IsActive:
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EmployeeID < res[j].EmployeeID })
	return res, nil
}

func (repo *staffRepository) EmployeeIDExists(ctx context.Context, employeeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.profiles {
		if p.EmployeeID == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *staffRepository) ProfileExists(ctx context.Context, userID, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.profiles {
		if p.ID != excludeID && p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Leaves

func (repo *staffRepository) CreateLeave(ctx context.Context, l staff.Leave, _ ...core.DBExecutor) (staff.Leave, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	l.ID = newID()
	repo.db.leaves[l.ID] = l
	return l, nil
}

func (repo *staffRepository) UpdateLeave(ctx context.Context, l staff.Leave, _ ...core.DBExecutor) (staff.Leave, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.leaves[l.ID]; !ok {
		return staff.Leave{}, staff.ErrLeaveNotFound
	}
	repo.db.leaves[l.ID] = l
	return l, nil
}

func (repo *staffRepository) GetLeave(ctx context.Context, id string, _ ...core.DBExecutor) (staff.Leave, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.leaves[id]; ok {
		return l, nil
	}
	return staff.Leave{}, staff.ErrLeaveNotFound
}

func (repo *staffRepository) QueryLeaves(ctx context.Context, filter staff.LeaveFilter, _ ...core.DBExecutor) ([]staff.Leave, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]staff.Leave, 0)
	for _, l := range repo.db.leaves {
		switch {
		case filter.StaffID != "" && l.StaffID != filter.StaffID,
			filter.LeaveType != "" && l.LeaveType != filter.LeaveType,
			filter.Status != "" && l.Status != filter.Status:
			continue
		}
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartDate.After(res[j].StartDate) })
	return res, nil
}

// Attendance

func (repo *staffRepository) CreateAttendance(ctx context.Context, a staff.Attendance, _ ...core.DBExecutor) (staff.Attendance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = newID()
	repo.db.attendance[a.ID] = a
	return a, nil
}

func (repo *staffRepository) UpdateAttendance(ctx context.Context, a staff.Attendance, _ ...core.DBExecutor) (staff.Attendance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.attendance[a.ID]; !ok {
		return staff.Attendance{}, staff.ErrAttendanceNotFound
	}
	repo.db.attendance[a.ID] = a
	return a, nil
}

func (repo *staffRepository) GetAttendance(ctx context.Context, id string, _ ...core.DBExecutor) (staff.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.attendance[id]; ok {
		return a, nil
	}
	return staff.Attendance{}, staff.ErrAttendanceNotFound
}

func (repo *staffRepository) QueryAttendance(ctx context.Context, filter staff.AttendanceFilter, _ ...core.DBExecutor) ([]staff.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]staff.Attendance, 0)
	for _, a := range repo.db.attendance {
		switch {
		case filter.StaffID != "" && a.StaffID != filter.StaffID,
			filter.Date != nil && !a.Date.Equal(*filter.Date),
			filter.From != nil && a.Date.Before(*filter.From),
			filter.To != nil && a.Date.After(*filter.To),
			filter.Status != "" && a.Status != filter.Status:
			continue
		}
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.After(res[j].Date) })
	return res, nil
}

func (repo *staffRepository) AttendanceExists(ctx context.Context, staffID string, date core.Date, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.attendance {
		if a.ID != excludeID && a.StaffID == staffID && a.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

// Payroll

func (repo *staffRepository) CreatePayroll(ctx context.Context, p staff.Payroll, _ ...core.DBExecutor) (staff.Payroll, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = newID()
	repo.db.payrolls[p.ID] = p
	return p, nil
}

func (repo *staffRepository) UpdatePayroll(ctx context.Context, p staff.Payroll, _ ...core.DBExecutor) (staff.Payroll, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.payrolls[p.ID]; !ok {
		return staff.Payroll{}, staff.ErrPayrollNotFound
	}
	repo.db.payrolls[p.ID] = p
	return p, nil
}

func (repo *staffRepository) GetPayroll(ctx context.Context, id string, _ ...core.DBExecutor) (staff.Payroll, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.payrolls[id]; ok {
		return p, nil
	}
	return staff.Payroll{}, staff.ErrPayrollNotFound
}

func (repo *staffRepository) QueryPayrolls(ctx context.Context, filter staff.PayrollFilter, _ ...core.DBExecutor) ([]staff.Payroll, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]staff.Payroll, 0)
	for _, p := range repo.db.payrolls {
		switch {
		case filter.StaffID != "" && p.StaffID != filter.StaffID,
			filter.Month != 0 && p.Month != filter.Month,
			filter.Year != 0 && p.Year != filter.Year,
			filter.Status != "" && p.Status != filter.Status:
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Year != res[j].Year {
			return res[i].Year > res[j].Year
		}
		return res[i].Month > res[j].Month
	})
	return res, nil
}

func (repo *staffRepository) PayrollExists(ctx context.Context, staffID string, month, year int, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.payrolls {
		if p.ID != excludeID && p.StaffID == staffID && p.Month == month && p.Year == year {
			return true, nil
		}
	}
	return false, nil
}
