package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shule/backend/core/academic"
)

type academicApi struct {
	svc *academic.Service
	bnd binder
}

func registerAcademicAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *academic.Service, bnd binder) {
	api := academicApi{svc: svc, bnd: bnd}
	writes := readOnlyOr(adminMiddleware())

	yg := g.Group("/academic-years", jwt, writes)
	yg.GET("", api.queryYears)
	yg.POST("", api.createYear)
	yg.GET("/:id", api.retrieveYear)
	yg.POST("/:id/activate", api.activateYear)

	tg := g.Group("/terms", jwt, writes)
	tg.GET("", api.queryTerms)
	tg.POST("", api.createTerm)
	tg.GET("/:id", api.retrieveTerm)

	cg := g.Group("/classes", jwt, writes)
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass)
	cg.GET("/:id", api.retrieveClass)

	sg := g.Group("/sections", jwt, writes)
	sg.GET("", api.querySections)
	sg.POST("", api.createSection)
	sg.GET("/:id", api.retrieveSection)

	subg := g.Group("/subjects", jwt, writes)
	subg.GET("", api.querySubjects)
	subg.POST("", api.createSubject)
	subg.GET("/:id", api.retrieveSubject)

	ag := g.Group("/teacher-assignments", jwt, writes)
	ag.GET("", api.queryAssignments)
	ag.POST("", api.createAssignment)
	ag.GET("/:id", api.retrieveAssignment)
}

// Academic years

func (api *academicApi) queryYears(ctx echo.Context) error {
	years, err := api.svc.ListAcademicYears(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *academicApi) createYear(ctx echo.Context) error {
	var data academic.NewAcademicYear
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	year, err := api.svc.CreateAcademicYear(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (api *academicApi) retrieveYear(ctx echo.Context) error {
	year, err := api.svc.GetAcademicYear(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *academicApi) activateYear(ctx echo.Context) error {
	year, err := api.svc.ActivateAcademicYear(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, year)
}

// Terms

func (api *academicApi) queryTerms(ctx echo.Context) error {
	terms, err := api.svc.ListTerms(ctx.Request().Context(), ctx.QueryParam("academic_year_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, terms)
}

func (api *academicApi) createTerm(ctx echo.Context) error {
	var data academic.NewTerm
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	term, err := api.svc.CreateTerm(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, term)
}

func (api *academicApi) retrieveTerm(ctx echo.Context) error {
	term, err := api.svc.GetTerm(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, term)
}

// Classes & sections

func (api *academicApi) queryClasses(ctx echo.Context) error {
	classes, err := api.svc.ListClasses(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *academicApi) createClass(ctx echo.Context) error {
	var data academic.NewSchoolClass
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	class, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *academicApi) retrieveClass(ctx echo.Context) error {
	class, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *academicApi) querySections(ctx echo.Context) error {
	sections, err := api.svc.ListSections(ctx.Request().Context(), ctx.QueryParam("class_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *academicApi) createSection(ctx echo.Context) error {
	var data academic.NewSection
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	section, err := api.svc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, section)
}

func (api *academicApi) retrieveSection(ctx echo.Context) error {
	section, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, section)
}

// Subjects

func (api *academicApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.ListSubjects(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	subject, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, subject)
}

func (api *academicApi) retrieveSubject(ctx echo.Context) error {
	subject, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subject)
}

// Teacher assignments

func (api *academicApi) queryAssignments(ctx echo.Context) error {
	activeOnly, err := isActiveOnly(ctx)
	if err != nil {
		return err
	}
	filter := academic.AssignmentFilter{
		TeacherID:      ctx.QueryParam("teacher_id"),
		SubjectID:      ctx.QueryParam("subject_id"),
		ClassID:        ctx.QueryParam("class_id"),
		AcademicYearID: ctx.QueryParam("academic_year_id"),
		ActiveOnly:     activeOnly,
	}
	asgs, err := api.svc.ListTeacherAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *academicApi) createAssignment(ctx echo.Context) error {
	var data academic.NewTeacherAssignment
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	asg, err := api.svc.CreateTeacherAssignment(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *academicApi) retrieveAssignment(ctx echo.Context) error {
	asg, err := api.svc.GetTeacherAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}
