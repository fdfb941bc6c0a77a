package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
	"github.com/mwalimu/darasa/core/progress"
)

// adminApi is the staff portal: cohort management, content authoring, release
// control and grading. Authoring is admin-only; the grading group also admits
// mentors.
type adminApi struct {
	cohortSvc   cohort.Service
	catalogSvc  catalog.Service
	progressSvc progress.Service
	validate    *validator.Validate
}

func registerAdminAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	cohortSvc cohort.Service,
	catalogSvc catalog.Service,
	progressSvc progress.Service,
	validate *validator.Validate,
) {
	api := adminApi{
		cohortSvc:   cohortSvc,
		catalogSvc:  catalogSvc,
		progressSvc: progressSvc,
		validate:    validate,
	}

	ag := g.Group("/admin", jwt)

	cg := ag.Group("/cohorts", adminMiddleware())
	cg.POST("", api.createCohort)
	cg.GET("", api.queryCohorts)
	cg.POST("/repair", api.repairEnrollments)
	cg.GET("/:id", api.retrieveCohort)
	cg.PUT("/:id", api.updateCohort)
	cg.GET("/:id/content", api.cohortContent)
	cg.GET("/:id/members", api.queryMembers)
	cg.POST("/:id/members", api.enrollMember)
	cg.PUT("/:id/members/:userId", api.updateMemberStatus)

	mg := ag.Group("/modules", adminMiddleware())
	mg.POST("", api.createModule)
	mg.GET("/:id", api.retrieveModule)
	mg.PUT("/:id", api.updateModule)
	mg.PUT("/:id/release", api.releaseModule)
	mg.PUT("/:id/unrelease", api.unreleaseModule)
	mg.PUT("/:id/schedule", api.scheduleModule)

	tg := ag.Group("/topics", adminMiddleware())
	tg.POST("", api.createTopic)
	tg.GET("/:id", api.retrieveTopic)
	tg.PUT("/:id", api.updateTopic)
	tg.PUT("/:id/release", api.releaseTopic)
	tg.PUT("/:id/unrelease", api.unreleaseTopic)
	tg.PUT("/:id/schedule", api.scheduleTopic)

	sg := ag.Group("/sections", adminMiddleware())
	sg.POST("", api.createSection)

	qg := ag.Group("/mini-questions", adminMiddleware())
	qg.POST("", api.createMiniQuestion)
	qg.PUT("/:id/release", api.releaseMiniQuestion)
	qg.PUT("/:id/unrelease", api.unreleaseMiniQuestion)
	qg.PUT("/:id/schedule", api.scheduleMiniQuestion)

	// grading
	gg := ag.Group("", staffMiddleware())
	gg.GET("/topics/:id/answers", api.queryTopicAnswers)
	gg.GET("/learners/:id/progress", api.learnerProgress)
	gg.PUT("/answers/:id/grade", api.gradeAnswer)
	gg.PUT("/answers/:id/request-resubmission", api.requestResubmission)
	gg.PUT("/answers/:id/approve-resubmission", api.approveResubmission)
	gg.PUT("/mini-answers/:id/request-resubmission", api.requestMiniResubmission)
}

// Cohort handlers

func (api *adminApi) createCohort(ctx echo.Context) error {
	var data cohort.NewCohort
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCohort")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.cohortSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating cohort")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) queryCohorts(ctx echo.Context) error {
	filter := new(cohort.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []cohort.Cohort{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	cohorts, err := api.cohortSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying cohorts")
	}
	if cohorts == nil {
		cohorts = []cohort.Cohort{}
	}
	return ctx.JSON(http.StatusOK, cohorts)
}

func (api *adminApi) retrieveCohort(ctx echo.Context) error {
	c, err := api.cohortSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding cohort by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) updateCohort(ctx echo.Context) error {
	c, err := api.cohortSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding cohort by ID")
	}

	var data cohort.UpdateCohort
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCohort")
	}
	if err := data.Validate(c, api.validate); err != nil {
		return err
	}

	c, err = api.cohortSvc.Update(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating cohort")
	}
	return ctx.JSON(http.StatusOK, c)
}

// cohortContent is the authoring view: the whole tree with raw release flags.
func (api *adminApi) cohortContent(ctx echo.Context) error {
	if _, err := api.cohortSvc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding cohort by ID")
	}

	content, err := api.catalogSvc.LoadCohortContent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "loading cohort content")
	}
	return ctx.JSON(http.StatusOK, content)
}

func (api *adminApi) queryMembers(ctx echo.Context) error {
	if _, err := api.cohortSvc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding cohort by ID")
	}

	members, err := api.cohortSvc.QueryMemberships(ctx.Request().Context(), &cohort.MembershipFilter{
		CohortID: ctx.Param("id"),
		Status:   cohort.MembershipStatus(ctx.QueryParam("status")),
	})
	if err != nil {
		return errors.Wrap(err, "querying memberships")
	}
	if members == nil {
		members = []cohort.Membership{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *adminApi) enrollMember(ctx echo.Context) error {
	var data cohort.NewMembership
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMembership")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.cohortSvc.Enroll(ctx.Request().Context(), data.UserID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling user")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *adminApi) updateMemberStatus(ctx echo.Context) error {
	var data cohort.UpdateMembership
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMembership")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.cohortSvc.UpdateMemberStatus(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userId"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating member status")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) repairEnrollments(ctx echo.Context) error {
	repairs, err := api.cohortSvc.RepairEnrollments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "repairing enrollments")
	}
	if repairs == nil {
		repairs = []cohort.EnrollmentRepair{}
	}
	return ctx.JSON(http.StatusOK, repairs)
}

// Module handlers

func (api *adminApi) createModule(ctx echo.Context) error {
	var data catalog.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.catalogSvc.CreateModule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *adminApi) retrieveModule(ctx echo.Context) error {
	m, err := api.catalogSvc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding module by ID")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) updateModule(ctx echo.Context) error {
	m, err := api.catalogSvc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding module by ID")
	}

	var data catalog.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(m, api.validate); err != nil {
		return err
	}

	m, err = api.catalogSvc.UpdateModule(ctx.Request().Context(), m.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) releaseModule(ctx echo.Context) error {
	m, err := api.catalogSvc.ReleaseModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "releasing module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) unreleaseModule(ctx echo.Context) error {
	m, err := api.catalogSvc.UnreleaseModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unreleasing module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) scheduleModule(ctx echo.Context) error {
	var data catalog.ScheduleRelease
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleRelease")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.catalogSvc.ScheduleModule(ctx.Request().Context(), ctx.Param("id"), data.At)
	if err != nil {
		return errors.Wrap(err, "scheduling module")
	}
	return ctx.JSON(http.StatusOK, m)
}

// Topic handlers

func (api *adminApi) createTopic(ctx echo.Context) error {
	var data catalog.NewTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.catalogSvc.CreateTopic(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *adminApi) retrieveTopic(ctx echo.Context) error {
	t, err := api.catalogSvc.GetTopic(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding topic by ID")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *adminApi) updateTopic(ctx echo.Context) error {
	t, err := api.catalogSvc.GetTopic(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding topic by ID")
	}

	var data catalog.UpdateTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopic")
	}
	if err := data.Validate(t, api.validate); err != nil {
		return err
	}

	t, err = api.catalogSvc.UpdateTopic(ctx.Request().Context(), t.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating topic")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *adminApi) releaseTopic(ctx echo.Context) error {
	t, err := api.catalogSvc.ReleaseTopic(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "releasing topic")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *adminApi) unreleaseTopic(ctx echo.Context) error {
	t, err := api.catalogSvc.UnreleaseTopic(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unreleasing topic")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *adminApi) scheduleTopic(ctx echo.Context) error {
	var data catalog.ScheduleRelease
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleRelease")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.catalogSvc.ScheduleTopic(ctx.Request().Context(), ctx.Param("id"), data.At)
	if err != nil {
		return errors.Wrap(err, "scheduling topic")
	}
	return ctx.JSON(http.StatusOK, t)
}

// Section & mini question handlers

func (api *adminApi) createSection(ctx echo.Context) error {
	var data catalog.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.catalogSvc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *adminApi) createMiniQuestion(ctx echo.Context) error {
	var data catalog.NewMiniQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMiniQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mq, err := api.catalogSvc.CreateMiniQuestion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating mini question")
	}
	return ctx.JSON(http.StatusCreated, mq)
}

func (api *adminApi) releaseMiniQuestion(ctx echo.Context) error {
	mq, err := api.catalogSvc.ReleaseMiniQuestion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "releasing mini question")
	}
	return ctx.JSON(http.StatusOK, mq)
}

func (api *adminApi) unreleaseMiniQuestion(ctx echo.Context) error {
	mq, err := api.catalogSvc.UnreleaseMiniQuestion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unreleasing mini question")
	}
	return ctx.JSON(http.StatusOK, mq)
}

func (api *adminApi) scheduleMiniQuestion(ctx echo.Context) error {
	var data catalog.ScheduleRelease
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleRelease")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mq, err := api.catalogSvc.ScheduleMiniQuestion(ctx.Request().Context(), ctx.Param("id"), data.At)
	if err != nil {
		return errors.Wrap(err, "scheduling mini question")
	}
	return ctx.JSON(http.StatusOK, mq)
}

// Grading handlers

func (api *adminApi) queryTopicAnswers(ctx echo.Context) error {
	if _, err := api.catalogSvc.GetTopic(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding topic by ID")
	}

	answers, err := api.progressSvc.QueryAnswers(ctx.Request().Context(), &progress.AnswerFilter{
		TopicID: ctx.Param("id"),
		Status:  progress.AnswerStatus(ctx.QueryParam("status")),
	})
	if err != nil {
		return errors.Wrap(err, "querying answers")
	}
	if answers == nil {
		answers = []progress.Answer{}
	}
	return ctx.JSON(http.StatusOK, answers)
}

// learnerProgress runs the same derivation the learner's board uses, for the
// cohort given in the `cohort_id` query param.
func (api *adminApi) learnerProgress(ctx echo.Context) error {
	rows, err := api.progressSvc.ComputeProgress(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("cohort_id"))
	if err != nil {
		return errors.Wrap(err, "computing progress")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *adminApi) gradeAnswer(ctx echo.Context) error {
	var data progress.GradeAnswer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeAnswer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.progressSvc.GradeAnswer(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading answer")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *adminApi) requestResubmission(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, err := api.progressSvc.RequestResubmission(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "requesting resubmission")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *adminApi) approveResubmission(ctx echo.Context) error {
	a, err := api.progressSvc.ApproveResubmission(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving resubmission")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *adminApi) requestMiniResubmission(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ma, err := api.progressSvc.RequestMiniResubmission(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "requesting mini answer resubmission")
	}
	return ctx.JSON(http.StatusOK, ma)
}
