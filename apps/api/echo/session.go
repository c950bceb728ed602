package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mtihani/core/catalog"
	"github.com/trezcool/mtihani/core/session"
	"github.com/trezcool/mtihani/core/user"
)

type sessionApi struct {
	svc      session.ServiceInterface
	usrSvc   user.ServiceInterface
	catSvc   catalog.ServiceInterface
	validate *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc session.ServiceInterface,
	usrSvc user.ServiceInterface,
	catSvc catalog.ServiceInterface,
	validate *validator.Validate,
) {
	api := sessionApi{
		svc:      svc,
		usrSvc:   usrSvc,
		catSvc:   catSvc,
		validate: validate,
	}

	lg := g.Group("/links", jwt)
	lg.POST("", api.issueLink, staffMiddleware())
	lg.GET("", api.queryLinks, staffMiddleware())

	ag := g.Group("/attempts", jwt)
	ag.POST("", api.start)
	ag.GET("/:id", api.retrieveAttempt)
	ag.PATCH("/:id/answers", api.answer)
	ag.POST("/:id/submit", api.submit)
}

// Handlers

func (api *sessionApi) issueLink(ctx echo.Context) error {
	var data session.NewLink
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLink")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	link, err := api.svc.IssueLink(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, link)
}

func (api *sessionApi) queryLinks(ctx echo.Context) error {
	var filter session.LinkFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to LinkFilter")
	}

	links, err := api.svc.QueryLinks(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying links")
	}
	if links == nil {
		links = []session.Link{}
	}
	return ctx.JSON(http.StatusOK, links)
}

func (api *sessionApi) start(ctx echo.Context) error {
	var data StartRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	att, test, err := api.svc.Start(ctx.Request().Context(), data.LinkID, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, StartResponse{
		Attempt: att,
		Test:    newTakerTest(test),
	})
}

func (api *sessionApi) retrieveAttempt(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	att, err := api.svc.GetAttempt(ctx.Request().Context(), ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *sessionApi) answer(ctx echo.Context) error {
	var data AnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Answer(ctx.Request().Context(), ctx.Param("id"), ctxUsr, data.QuestionID, *data.SelectedOption); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) submit(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	StartRequest struct {
		LinkID string `json:"link_id" validate:"required"`
	}

	StartResponse struct {
		Attempt session.Attempt `json:"attempt"`
		Test    TakerTest       `json:"test"`
	}

	AnswerRequest struct {
		QuestionID string `json:"question_id" validate:"required"`
		// pointer so that option 0 passes "required"
		SelectedOption *int `json:"selected_option" validate:"required"`
	}

	// TakerTest is the test as shown to a test taker: correct options
	// never leave the server.
	TakerTest struct {
		ID              string          `json:"id"`
		Title           string          `json:"title"`
		Description     string          `json:"description"`
		DurationSeconds int             `json:"duration_seconds"`
		Sections        []TakerSection  `json:"sections,omitempty"`
		Questions       []TakerQuestion `json:"questions,omitempty"`
	}

	TakerSection struct {
		ID        string          `json:"id"`
		Title     string          `json:"title"`
		Questions []TakerQuestion `json:"questions"`
	}

	TakerQuestion struct {
		ID      string   `json:"id"`
		Prompt  string   `json:"prompt"`
		Options []string `json:"options"`
		Points  int      `json:"points"`
	}
)

func newTakerTest(test catalog.Test) TakerTest {
	tt := TakerTest{
		ID:              test.ID,
		Title:           test.Title,
		Description:     test.Description,
		DurationSeconds: test.DurationSeconds,
	}
	for _, sec := range test.Sections {
		tt.Sections = append(tt.Sections, TakerSection{
			ID:        sec.ID,
			Title:     sec.Title,
			Questions: newTakerQuestions(sec.Questions),
		})
	}
	tt.Questions = newTakerQuestions(test.Questions)
	return tt
}

func newTakerQuestions(qs []catalog.Question) []TakerQuestion {
	if qs == nil {
		return nil
	}
	tqs := make([]TakerQuestion, 0, len(qs))
	for _, q := range qs {
		tqs = append(tqs, TakerQuestion{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: q.Options,
			Points:  q.Points,
		})
	}
	return tqs
}
