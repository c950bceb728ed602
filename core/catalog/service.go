package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mtihani/core"
)

var ErrNotFound = errors.New("test not found")

type (
	Repository interface {
		CreateTest(ctx context.Context, test Test) (Test, error)
		GetTest(ctx context.Context, id string) (Test, error)
		QueryAllTests(ctx context.Context, ordering ...core.DBOrdering) ([]Test, error)
		DeleteTestsByID(ctx context.Context, ids ...string) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nt NewTest) (Test, error)
		GetByID(ctx context.Context, id string) (Test, error)
		QueryAll(ctx context.Context, ordering ...core.DBOrdering) ([]Test, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nt NewTest) (Test, error) {
	now := time.Now().UTC()
	test := Test{
		ID:              uuid.New().String(),
		Title:           nt.Title,
		Description:     nt.Description,
		DurationSeconds: nt.DurationSeconds,
		PassingScore:    nt.PassingScore,
		NegativeMarking: nt.NegativeMarking,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, sec := range nt.Sections {
		test.Sections = append(test.Sections, Section{
			ID:        uuid.New().String(),
			Title:     sec.Title,
			Questions: buildQuestions(sec.Questions),
		})
	}
	test.Questions = buildQuestions(nt.Questions)

	test, err := svc.repo.CreateTest(ctx, test)
	if err != nil {
		return Test{}, errors.Wrap(err, "creating test")
	}
	return test, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTest(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context, ordering ...core.DBOrdering) ([]Test, error) {
	return svc.repo.QueryAllTests(ctx, ordering...)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteTestsByID(ctx, ids...)
	return err
}

func buildQuestions(nqs []NewQuestion) []Question {
	if nqs == nil {
		return nil
	}
	qs := make([]Question, 0, len(nqs))
	for _, nq := range nqs {
		points := nq.Points
		if points == 0 {
			points = defaultPoints
		}
		qs = append(qs, Question{
			ID:            uuid.New().String(),
			Prompt:        nq.Prompt,
			Options:       nq.Options,
			CorrectOption: nq.CorrectOption,
			Points:        points,
		})
	}
	return qs
}
