package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shule/backend/core/staff"
	"github.com/shule/backend/core/user"
)

type staffApi struct {
	svc *staff.Service
	bnd binder
}

func registerStaffAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *staff.Service, bnd binder) {
	api := staffApi{svc: svc, bnd: bnd}
	hr := allowRoles(user.RoleHR)

	sg := g.Group("/staff", jwt, hr)
	sg.GET("", api.queryProfiles)
	sg.POST("", api.createProfile)
	sg.GET("/statistics", api.profileStatistics)
	sg.GET("/:id", api.retrieveProfile)
	sg.PUT("/:id", api.updateProfile)
	sg.GET("/:id/attendance", api.staffAttendance)

	lg := g.Group("/leaves", jwt, hr)
	lg.GET("", api.queryLeaves)
	lg.POST("", api.applyLeave)
	lg.GET("/pending", api.pendingLeaves)
	lg.GET("/statistics", api.leaveStatistics)
	lg.GET("/:id", api.retrieveLeave)
	lg.POST("/:id/approve", api.approveLeave)
	lg.POST("/:id/reject", api.rejectLeave)
	lg.POST("/:id/cancel", api.cancelLeave)

	ag := g.Group("/staff-attendance", jwt, hr)
	ag.GET("", api.queryAttendance)
	ag.POST("", api.markAttendance)
	ag.POST("/bulk", api.bulkMarkAttendance)
	ag.GET("/today", api.todayAttendance)
	ag.GET("/statistics", api.attendanceStatistics)
	ag.GET("/:id", api.retrieveAttendance)
	ag.PUT("/:id", api.updateAttendance)

	pg := g.Group("/payrolls", jwt, hr)
	pg.GET("", api.queryPayrolls)
	pg.POST("", api.createPayroll)
	pg.GET("/pending", api.pendingPayrolls)
	pg.GET("/statistics", api.payrollStatistics)
	pg.GET("/:id", api.retrievePayroll)
	pg.PUT("/:id", api.updatePayroll)
	pg.POST("/:id/process", api.processPayroll)
	pg.POST("/:id/mark-paid", api.markPayrollPaid)
	pg.POST("/:id/cancel", api.cancelPayroll)
}

// Profiles

func (api *staffApi) queryProfiles(ctx echo.Context) error {
	activeOnly, err := isActiveOnly(ctx)
	if err != nil {
		return err
	}
	filter := staff.ProfileFilter{
		Department:     ctx.QueryParam("department"),
		EmploymentType: staff.EmploymentType(ctx.QueryParam("employment_type")),
		ActiveOnly:     activeOnly,
	}
	profiles, err := api.svc.ListProfiles(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *staffApi) createProfile(ctx echo.Context) error {
	var data staff.NewProfile
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CreateProfile(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *staffApi) profileStatistics(ctx echo.Context) error {
	stats, err := api.svc.ProfileStatistics(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *staffApi) retrieveProfile(ctx echo.Context) error {
	p, err := api.svc.GetProfile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) updateProfile(ctx echo.Context) error {
	var data staff.NewProfile
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.UpdateProfile(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) staffAttendance(ctx echo.Context) error {
	from, err := queryDate(ctx, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		return err
	}
	records, err := api.svc.StaffAttendance(ctx.Request().Context(), ctx.Param("id"), from, to)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

// Leaves

func (api *staffApi) queryLeaves(ctx echo.Context) error {
	filter := staff.LeaveFilter{
		StaffID:   ctx.QueryParam("staff_id"),
		LeaveType: staff.LeaveType(ctx.QueryParam("leave_type")),
		Status:    staff.LeaveStatus(ctx.QueryParam("status")),
	}
	leaves, err := api.svc.ListLeaves(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, leaves)
}

func (api *staffApi) applyLeave(ctx echo.Context) error {
	var data staff.NewLeave
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	l, err := api.svc.ApplyLeave(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *staffApi) pendingLeaves(ctx echo.Context) error {
	leaves, err := api.svc.PendingLeaves(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, leaves)
}

func (api *staffApi) leaveStatistics(ctx echo.Context) error {
	stats, err := api.svc.LeaveStatistics(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *staffApi) retrieveLeave(ctx echo.Context) error {
	l, err := api.svc.GetLeave(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *staffApi) approveLeave(ctx echo.Context) error {
	l, err := api.svc.ApproveLeave(ctx.Request().Context(), ctx.Param("id"), callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *staffApi) rejectLeave(ctx echo.Context) error {
	var data staff.RejectLeave
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	l, err := api.svc.RejectLeave(ctx.Request().Context(), ctx.Param("id"), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *staffApi) cancelLeave(ctx echo.Context) error {
	l, err := api.svc.CancelLeave(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

// Attendance

func (api *staffApi) queryAttendance(ctx echo.Context) error {
	filter := staff.AttendanceFilter{
		StaffID: ctx.QueryParam("staff_id"),
		Status:  staff.AttendanceStatus(ctx.QueryParam("status")),
	}
	var err error
	if filter.Date, err = queryDate(ctx, "date"); err != nil {
		return err
	}
	if filter.From, err = queryDate(ctx, "from"); err != nil {
		return err
	}
	if filter.To, err = queryDate(ctx, "to"); err != nil {
		return err
	}
	records, err := api.svc.ListAttendance(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *staffApi) markAttendance(ctx echo.Context) error {
	var data staff.NewAttendance
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	a, err := api.svc.MarkAttendance(ctx.Request().Context(), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

type bulkAttendanceRequest struct {
	Records []staff.NewAttendance `json:"attendance_records"`
}

func (api *staffApi) bulkMarkAttendance(ctx echo.Context) error {
	var data bulkAttendanceRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	validate := func(na *staff.NewAttendance) error { return api.bnd.check(na) }
	res, err := api.svc.BulkMarkAttendance(ctx.Request().Context(), data.Records, validate, callerID(ctx))
	if err != nil {
		return err
	}
	code := http.StatusCreated
	if len(res.Created) == 0 {
		code = http.StatusBadRequest
	}
	return ctx.JSON(code, res)
}

func (api *staffApi) todayAttendance(ctx echo.Context) error {
	records, err := api.svc.TodayAttendance(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *staffApi) attendanceStatistics(ctx echo.Context) error {
	stats, err := api.svc.AttendanceStatistics(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *staffApi) retrieveAttendance(ctx echo.Context) error {
	a, err := api.svc.GetAttendance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *staffApi) updateAttendance(ctx echo.Context) error {
	var data staff.NewAttendance
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	a, err := api.svc.UpdateAttendance(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

// Payrolls

func (api *staffApi) queryPayrolls(ctx echo.Context) error {
	month, err := queryInt(ctx, "month")
	if err != nil {
		return err
	}
	year, err := queryInt(ctx, "year")
	if err != nil {
		return err
	}
	filter := staff.PayrollFilter{
		StaffID: ctx.QueryParam("staff_id"),
		Month:   month,
		Year:    year,
		Status:  staff.PayrollStatus(ctx.QueryParam("status")),
	}
	payrolls, err := api.svc.ListPayrolls(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, payrolls)
}

func (api *staffApi) createPayroll(ctx echo.Context) error {
	var data staff.NewPayroll
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CreatePayroll(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *staffApi) pendingPayrolls(ctx echo.Context) error {
	payrolls, err := api.svc.PendingPayrolls(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, payrolls)
}

func (api *staffApi) payrollStatistics(ctx echo.Context) error {
	stats, err := api.svc.PayrollStatistics(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *staffApi) retrievePayroll(ctx echo.Context) error {
	p, err := api.svc.GetPayroll(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) updatePayroll(ctx echo.Context) error {
	var data staff.NewPayroll
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.UpdatePayroll(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) processPayroll(ctx echo.Context) error {
	p, err := api.svc.ProcessPayroll(ctx.Request().Context(), ctx.Param("id"), callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) markPayrollPaid(ctx echo.Context) error {
	var data staff.MarkPayrollPaid
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	p, err := api.svc.MarkPayrollPaid(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *staffApi) cancelPayroll(ctx echo.Context) error {
	p, err := api.svc.CancelPayroll(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}
