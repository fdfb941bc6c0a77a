package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core/progress"
)

// learnApi is the learner portal. Every operation is scoped by the caller's
// enrolled membership; content outside it does not exist as far as the caller
// can tell.
type learnApi struct {
	svc      progress.Service
	validate *validator.Validate
}

func registerLearnAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc progress.Service, validate *validator.Validate) {
	api := learnApi{
		svc:      svc,
		validate: validate,
	}

	lg := g.Group("/learn", jwt)
	lg.GET("/board", api.board)
	lg.GET("/topics/:id", api.topicDetail)
	lg.POST("/topics/:id/answer", api.submitAnswer)
	lg.POST("/mini-questions/:id/answer", api.submitMiniAnswer)
}

// Handlers

func (api *learnApi) board(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rows, err := api.svc.Board(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing board")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *learnApi) topicDetail(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	detail, err := api.svc.TopicDetail(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "loading topic detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *learnApi) submitAnswer(ctx echo.Context) error {
	var data progress.NewAnswer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnswer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	answer, err := api.svc.SubmitAnswer(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting answer")
	}
	return ctx.JSON(http.StatusOK, answer)
}

func (api *learnApi) submitMiniAnswer(ctx echo.Context) error {
	var data progress.NewMiniAnswer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMiniAnswer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	answer, err := api.svc.SubmitMiniAnswer(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting mini answer")
	}
	return ctx.JSON(http.StatusOK, answer)
}
