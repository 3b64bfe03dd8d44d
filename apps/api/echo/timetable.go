package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shule/backend/core/timetable"
)

type timetableApi struct {
	svc *timetable.Service
	bnd binder
}

func registerTimetableAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *timetable.Service, bnd binder) {
	api := timetableApi{svc: svc, bnd: bnd}
	writes := readOnlyOr(adminMiddleware())

	sg := g.Group("/timeslots", jwt, writes)
	sg.GET("", api.querySlots)
	sg.POST("", api.createSlot)
	sg.GET("/weekly", api.weeklySchedule)
	sg.GET("/by-day/:day", api.slotsByDay)
	sg.GET("/:id", api.retrieveSlot)
	sg.PUT("/:id", api.updateSlot)
	sg.DELETE("/:id", api.destroySlot)

	tg := g.Group("/timetables", jwt, writes)
	tg.GET("", api.queryTimetables)
	tg.POST("", api.createTimetable)
	tg.GET("/by-teacher/:teacher_id", api.timetablesByTeacher)
	tg.GET("/:id", api.retrieveTimetable)
	tg.PUT("/:id", api.updateTimetable)
	tg.DELETE("/:id", api.destroyTimetable)
	tg.GET("/:id/entries", api.timetableEntries)
	tg.POST("/:id/duplicate", api.duplicateTimetable)

	eg := g.Group("/timetable-entries", jwt, writes)
	eg.POST("", api.createEntry)
	eg.POST("/bulk", api.bulkCreateEntries)
	eg.GET("/teacher-schedule/:teacher_id", api.teacherSchedule)
	eg.GET("/:id", api.retrieveEntry)
	eg.PUT("/:id", api.updateEntry)
	eg.DELETE("/:id", api.destroyEntry)
}

// Time slots

func (api *timetableApi) querySlots(ctx echo.Context) error {
	activeOnly, err := isActiveOnly(ctx)
	if err != nil {
		return err
	}
	isBreak, err := queryBool(ctx, "is_break")
	if err != nil {
		return err
	}
	filter := timetable.SlotFilter{
		Day:        timetable.Weekday(ctx.QueryParam("day_of_week")),
		ActiveOnly: activeOnly,
		IsBreak:    isBreak,
	}
	slots, err := api.svc.ListTimeSlots(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, slots)
}

func (api *timetableApi) createSlot(ctx echo.Context) error {
	var data timetable.NewTimeSlot
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	slot, err := api.svc.CreateTimeSlot(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, slot)
}

func (api *timetableApi) weeklySchedule(ctx echo.Context) error {
	schedule, err := api.svc.WeeklySchedule(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, schedule)
}

func (api *timetableApi) slotsByDay(ctx echo.Context) error {
	slots, err := api.svc.TimeSlotsByDay(ctx.Request().Context(), timetable.Weekday(ctx.Param("day")))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, slots)
}

func (api *timetableApi) retrieveSlot(ctx echo.Context) error {
	slot, err := api.svc.GetTimeSlot(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, slot)
}

func (api *timetableApi) updateSlot(ctx echo.Context) error {
	var data timetable.NewTimeSlot
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	slot, err := api.svc.UpdateTimeSlot(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, slot)
}

func (api *timetableApi) destroySlot(ctx echo.Context) error {
	if err := api.svc.DeleteTimeSlot(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Timetables

func (api *timetableApi) queryTimetables(ctx echo.Context) error {
	isActive, err := queryBool(ctx, "is_active")
	if err != nil {
		return err
	}
	filter := timetable.TimetableFilter{
		ClassID:        ctx.QueryParam("class_id"),
		SectionID:      ctx.QueryParam("section_id"),
		AcademicYearID: ctx.QueryParam("academic_year_id"),
		TermID:         ctx.QueryParam("term_id"),
		IsActive:       isActive,
		TeacherID:      ctx.QueryParam("teacher_id"),
	}
	tts, err := api.svc.ListTimetables(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tts)
}

func (api *timetableApi) createTimetable(ctx echo.Context) error {
	var data timetable.NewTimetable
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	tt, err := api.svc.CreateTimetable(ctx.Request().Context(), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tt)
}

func (api *timetableApi) timetablesByTeacher(ctx echo.Context) error {
	tts, err := api.svc.TimetablesByTeacher(ctx.Request().Context(), ctx.Param("teacher_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tts)
}

func (api *timetableApi) retrieveTimetable(ctx echo.Context) error {
	tt, err := api.svc.GetTimetable(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tt)
}

func (api *timetableApi) updateTimetable(ctx echo.Context) error {
	var data timetable.NewTimetable
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	tt, err := api.svc.UpdateTimetable(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tt)
}

func (api *timetableApi) destroyTimetable(ctx echo.Context) error {
	if err := api.svc.DeleteTimetable(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) timetableEntries(ctx echo.Context) error {
	entries, err := api.svc.EntriesByTimetable(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *timetableApi) duplicateTimetable(ctx echo.Context) error {
	var data timetable.DuplicateTimetable
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	res, err := api.svc.Duplicate(ctx.Request().Context(), ctx.Param("id"), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

// Entries

func (api *timetableApi) createEntry(ctx echo.Context) error {
	var data timetable.NewEntry
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	entry, err := api.svc.CreateEntry(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, entry)
}

type bulkEntriesRequest struct {
	Entries []timetable.NewEntry `json:"entries"`
}

func (api *timetableApi) bulkCreateEntries(ctx echo.Context) error {
	var data bulkEntriesRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	res, err := api.svc.BulkCreateEntries(ctx.Request().Context(), data.Entries, func(ne *timetable.NewEntry) error {
		return api.bnd.check(ne)
	})
	if err != nil {
		return err
	}
	code := http.StatusCreated
	if len(res.Created) == 0 {
		code = http.StatusBadRequest
	}
	return ctx.JSON(code, res)
}

func (api *timetableApi) teacherSchedule(ctx echo.Context) error {
	schedule, err := api.svc.TeacherSchedule(ctx.Request().Context(), ctx.Param("teacher_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, schedule)
}

func (api *timetableApi) retrieveEntry(ctx echo.Context) error {
	entry, err := api.svc.GetEntry(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *timetableApi) updateEntry(ctx echo.Context) error {
	var data timetable.NewEntry
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	entry, err := api.svc.UpdateEntry(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *timetableApi) destroyEntry(ctx echo.Context) error {
	if err := api.svc.DeleteEntry(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
