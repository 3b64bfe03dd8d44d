package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shule/backend/core/student"
	"github.com/shule/backend/core/user"
)

type studentApi struct {
	svc *student.Service
	bnd binder
}

// registerStudentAPI lets teachers read student records and keep the register; admins manage the records.
func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *student.Service, bnd binder) {
	api := studentApi{svc: svc, bnd: bnd}
	teachers := allowRoles(user.RoleTeacher)
	writes := readOnlyOr(adminMiddleware())

	sg := g.Group("/students", jwt, teachers, writes)
	sg.GET("", api.queryProfiles)
	sg.POST("", api.createProfile)
	sg.GET("/:id", api.retrieveProfile)
	sg.PUT("/:id", api.updateProfile)
	sg.GET("/:id/enrollments", api.studentEnrollments)
	sg.GET("/:id/attendance", api.studentAttendance)

	eg := g.Group("/enrollments", jwt, teachers, writes)
	eg.GET("", api.queryEnrollments)
	eg.POST("", api.enroll)
	eg.GET("/:id", api.retrieveEnrollment)
	eg.PUT("/:id", api.updateEnrollment)

	ag := g.Group("/attendance", jwt, teachers)
	ag.GET("", api.queryAttendance)
	ag.POST("", api.markAttendance)
	ag.POST("/bulk", api.bulkMarkAttendance)
	ag.GET("/class", api.classAttendance)
	ag.GET("/summary", api.attendanceSummary)
	ag.GET("/:id", api.retrieveAttendance)
	ag.PUT("/:id", api.updateAttendance)
}

// Profiles

func (api *studentApi) queryProfiles(ctx echo.Context) error {
	profiles, err := api.svc.ListProfiles(ctx.Request().Context(), student.ProfileFilter{Search: ctx.QueryParam("search")})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *studentApi) createProfile(ctx echo.Context) error {
	var data student.NewProfile
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CreateProfile(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *studentApi) retrieveProfile(ctx echo.Context) error {
	p, err := api.svc.GetProfile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *studentApi) updateProfile(ctx echo.Context) error {
	var data student.NewProfile
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.UpdateProfile(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *studentApi) studentEnrollments(ctx echo.Context) error {
	enrollments, err := api.svc.StudentEnrollments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *studentApi) studentAttendance(ctx echo.Context) error {
	from, err := queryDate(ctx, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		return err
	}
	records, err := api.svc.StudentAttendance(ctx.Request().Context(), ctx.Param("id"), from, to)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

// Enrollments

func (api *studentApi) queryEnrollments(ctx echo.Context) error {
	activeOnly, err := isActiveOnly(ctx)
	if err != nil {
		return err
	}
	filter := student.EnrollmentFilter{
		StudentID:      ctx.QueryParam("student_id"),
		AcademicYearID: ctx.QueryParam("academic_year_id"),
		ClassID:        ctx.QueryParam("class_id"),
		SectionID:      ctx.QueryParam("section_id"),
		ActiveOnly:     activeOnly,
	}
	enrollments, err := api.svc.ListEnrollments(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *studentApi) enroll(ctx echo.Context) error {
	var data student.NewEnrollment
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *studentApi) retrieveEnrollment(ctx echo.Context) error {
	e, err := api.svc.GetEnrollment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *studentApi) updateEnrollment(ctx echo.Context) error {
	var data student.NewEnrollment
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.UpdateEnrollment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

// Attendance

func attendanceFilter(ctx echo.Context) (student.AttendanceFilter, error) {
	filter := student.AttendanceFilter{
		StudentID:      ctx.QueryParam("student_id"),
		EnrollmentID:   ctx.QueryParam("enrollment_id"),
		AcademicYearID: ctx.QueryParam("academic_year_id"),
		TermID:         ctx.QueryParam("term_id"),
		ClassID:        ctx.QueryParam("class_id"),
		SectionID:      ctx.QueryParam("section_id"),
		Status:         student.AttendanceStatus(ctx.QueryParam("status")),
	}
	var err error
	if filter.Date, err = queryDate(ctx, "date"); err != nil {
		return filter, err
	}
	if filter.From, err = queryDate(ctx, "from"); err != nil {
		return filter, err
	}
	filter.To, err = queryDate(ctx, "to")
	return filter, err
}

func (api *studentApi) queryAttendance(ctx echo.Context) error {
	filter, err := attendanceFilter(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.ListAttendance(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *studentApi) markAttendance(ctx echo.Context) error {
	var data student.NewAttendance
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	a, err := api.svc.MarkAttendance(ctx.Request().Context(), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

type bulkRegisterRequest struct {
	Records []student.NewAttendance `json:"attendances"`
}

func (api *studentApi) bulkMarkAttendance(ctx echo.Context) error {
	var data bulkRegisterRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	validate := func(na *student.NewAttendance) error { return api.bnd.check(na) }
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

func (api *studentApi) classAttendance(ctx echo.Context) error {
	date, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	records, err := api.svc.ClassAttendance(ctx.Request().Context(), ctx.QueryParam("class_id"), date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *studentApi) attendanceSummary(ctx echo.Context) error {
	filter, err := attendanceFilter(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.AttendanceSummary(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *studentApi) retrieveAttendance(ctx echo.Context) error {
	a, err := api.svc.GetAttendance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *studentApi) updateAttendance(ctx echo.Context) error {
	var data student.NewAttendance
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	a, err := api.svc.UpdateAttendance(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}
