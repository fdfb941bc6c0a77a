package catalog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/cohort"
)

var (
	// errors
	ErrNotFound     = errors.New("content not found")
	ErrModuleExists = errors.New("a module with this number already exists in the cohort")
	ErrTopicExists  = errors.New("a topic with this number already exists in the cohort")
)

type (
	Repository interface {
		CreateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)
		GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (Module, error)
		QueryModules(ctx context.Context, cohortID string, exec ...core.DBExecutor) ([]Module, error)
		UpdateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)

		CreateTopic(ctx context.Context, t Topic, exec ...core.DBExecutor) (Topic, error)
		GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (Topic, error)
		QueryTopics(ctx context.Context, cohortID string, exec ...core.DBExecutor) ([]Topic, error)
		UpdateTopic(ctx context.Context, t Topic, exec ...core.DBExecutor) (Topic, error)

		CreateSection(ctx context.Context, s Section, exec ...core.DBExecutor) (Section, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (Section, error)
		QuerySections(ctx context.Context, topicIDs []string, exec ...core.DBExecutor) ([]Section, error)

		CreateMiniQuestion(ctx context.Context, mq MiniQuestion, exec ...core.DBExecutor) (MiniQuestion, error)
		GetMiniQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (MiniQuestion, error)
		QueryMiniQuestions(ctx context.Context, sectionIDs []string, exec ...core.DBExecutor) ([]MiniQuestion, error)
		UpdateMiniQuestion(ctx context.Context, mq MiniQuestion, exec ...core.DBExecutor) (MiniQuestion, error)
	}

	Service interface {
		CreateModule(ctx context.Context, nm NewModule) (Module, error)
		UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		QueryModules(ctx context.Context, cohortID string) ([]Module, error)

		CreateTopic(ctx context.Context, nt NewTopic) (Topic, error)
		UpdateTopic(ctx context.Context, id string, ut UpdateTopic) (Topic, error)
		GetTopic(ctx context.Context, id string) (Topic, error)
		QueryTopics(ctx context.Context, cohortID string) ([]Topic, error)

		CreateSection(ctx context.Context, ns NewSection) (Section, error)
		GetSection(ctx context.Context, id string) (Section, error)

		CreateMiniQuestion(ctx context.Context, nq NewMiniQuestion) (MiniQuestion, error)
		GetMiniQuestion(ctx context.Context, id string) (MiniQuestion, error)

		ReleaseModule(ctx context.Context, id string) (Module, error)
		UnreleaseModule(ctx context.Context, id string) (Module, error)
		ScheduleModule(ctx context.Context, id string, at time.Time) (Module, error)
		ReleaseTopic(ctx context.Context, id string) (Topic, error)
		UnreleaseTopic(ctx context.Context, id string) (Topic, error)
		ScheduleTopic(ctx context.Context, id string, at time.Time) (Topic, error)
		ReleaseMiniQuestion(ctx context.Context, id string) (MiniQuestion, error)
		UnreleaseMiniQuestion(ctx context.Context, id string) (MiniQuestion, error)
		ScheduleMiniQuestion(ctx context.Context, id string, at time.Time) (MiniQuestion, error)

		// LoadCohortContent loads a cohort's whole content tree in four reads.
		LoadCohortContent(ctx context.Context, cohortID string) (Content, error)
	}

	service struct {
		repo      Repository
		cohortSvc cohort.Service
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, cohortSvc cohort.Service) Service {
	return &service{
		repo:      repo,
		cohortSvc: cohortSvc,
	}
}

func (svc *service) CreateModule(ctx context.Context, nm NewModule) (Module, error) {
	if _, err := svc.cohortSvc.GetByID(ctx, nm.CohortID); err != nil {
		return Module{}, err
	}
	siblings, err := svc.repo.QueryModules(ctx, nm.CohortID)
	if err != nil {
		return Module{}, errors.Wrap(err, "querying modules")
	}
	for _, sib := range siblings {
		if sib.Number == nm.Number {
			return Module{}, core.NewValidationError(ErrModuleExists, core.FieldError{Field: "number", Error: ErrModuleExists.Error()})
		}
	}

	now := core.Now()
	m := Module{
		CohortID:  nm.CohortID,
		Number:    nm.Number,
		Name:      nm.Name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateModule(ctx, m)
}

func (svc *service) UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error) {
	m, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}

	m.Name = um.Name
	if um.IsActive != nil {
		m.IsActive = *um.IsActive
	}
	m.UpdatedAt = core.Now()

	return svc.repo.UpdateModule(ctx, m)
}

func (svc *service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *service) QueryModules(ctx context.Context, cohortID string) ([]Module, error) {
	return svc.repo.QueryModules(ctx, cohortID)
}

func (svc *service) CreateTopic(ctx context.Context, nt NewTopic) (Topic, error) {
	if _, err := svc.cohortSvc.GetByID(ctx, nt.CohortID); err != nil {
		return Topic{}, err
	}
	// a topic under a module must live in the module's cohort
	if nt.ModuleID != "" {
		mod, err := svc.repo.GetModule(ctx, nt.ModuleID)
		if err != nil {
			return Topic{}, err
		}
		if mod.CohortID != nt.CohortID {
			return Topic{}, core.NewValidationError(cohort.ErrCrossCohort,
				core.FieldError{Field: "module_id", Error: cohort.ErrCrossCohort.Error()})
		}
	}
	siblings, err := svc.repo.QueryTopics(ctx, nt.CohortID)
	if err != nil {
		return Topic{}, errors.Wrap(err, "querying topics")
	}
	for _, sib := range siblings {
		if sib.Number == nt.Number {
			return Topic{}, core.NewValidationError(ErrTopicExists, core.FieldError{Field: "number", Error: ErrTopicExists.Error()})
		}
	}

	now := core.Now()
	t := Topic{
		CohortID:    nt.CohortID,
		ModuleID:    nt.ModuleID,
		Number:      nt.Number,
		Title:       nt.Title,
		Body:        nt.Body,
		IsActive:    true,
		Deadline:    core.TimePtr(nt.Deadline),
		Points:      nt.Points,
		BonusPoints: nt.BonusPoints,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateTopic(ctx, t)
}

func (svc *service) UpdateTopic(ctx context.Context, id string, ut UpdateTopic) (Topic, error) {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}

	t.Title = ut.Title
	if ut.Body != nil {
		t.Body = *ut.Body
	}
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	if !ut.Deadline.IsZero() {
		t.Deadline = core.TimePtr(ut.Deadline)
	}
	if ut.Points != nil {
		t.Points = *ut.Points
	}
	if ut.BonusPoints != nil {
		t.BonusPoints = *ut.BonusPoints
	}
	t.UpdatedAt = core.Now()

	return svc.repo.UpdateTopic(ctx, t)
}

func (svc *service) GetTopic(ctx context.Context, id string) (Topic, error) {
	return svc.repo.GetTopic(ctx, id)
}

func (svc *service) QueryTopics(ctx context.Context, cohortID string) ([]Topic, error) {
	return svc.repo.QueryTopics(ctx, cohortID)
}

func (svc *service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	if _, err := svc.repo.GetTopic(ctx, ns.TopicID); err != nil {
		return Section{}, err
	}

	now := core.Now()
	s := Section{
		TopicID:   ns.TopicID,
		Index:     ns.Index,
		Title:     ns.Title,
		Body:      ns.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSection(ctx, s)
}

func (svc *service) GetSection(ctx context.Context, id string) (Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *service) CreateMiniQuestion(ctx context.Context, nq NewMiniQuestion) (MiniQuestion, error) {
	if _, err := svc.repo.GetSection(ctx, nq.SectionID); err != nil {
		return MiniQuestion{}, err
	}

	now := core.Now()
	mq := MiniQuestion{
		SectionID: nq.SectionID,
		Index:     nq.Index,
		Prompt:    nq.Prompt,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateMiniQuestion(ctx, mq)
}

func (svc *service) GetMiniQuestion(ctx context.Context, id string) (MiniQuestion, error) {
	return svc.repo.GetMiniQuestion(ctx, id)
}

// Release operations. Releasing a child under an unreleased parent is allowed:
// the raw flag records intent and the cascade keeps the child invisible until
// the parent follows.

func (svc *service) ReleaseModule(ctx context.Context, id string) (Module, error) {
	m, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	m.Release(core.Now())
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateModule(ctx, m)
}

func (svc *service) UnreleaseModule(ctx context.Context, id string) (Module, error) {
	m, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	m.Unrelease()
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateModule(ctx, m)
}

func (svc *service) ScheduleModule(ctx context.Context, id string, at time.Time) (Module, error) {
	m, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	m.Schedule(at.UTC())
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateModule(ctx, m)
}

func (svc *service) ReleaseTopic(ctx context.Context, id string) (Topic, error) {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	t.Release(core.Now())
	t.UpdatedAt = core.Now()
	return svc.repo.UpdateTopic(ctx, t)
}

func (svc *service) UnreleaseTopic(ctx context.Context, id string) (Topic, error) {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	t.Unrelease()
	t.UpdatedAt = core.Now()
	return svc.repo.UpdateTopic(ctx, t)
}

func (svc *service) ScheduleTopic(ctx context.Context, id string, at time.Time) (Topic, error) {
	t, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	t.Schedule(at.UTC())
	t.UpdatedAt = core.Now()
	return svc.repo.UpdateTopic(ctx, t)
}

func (svc *service) ReleaseMiniQuestion(ctx context.Context, id string) (MiniQuestion, error) {
	mq, err := svc.repo.GetMiniQuestion(ctx, id)
	if err != nil {
		return MiniQuestion{}, err
	}
	mq.Release(core.Now())
	mq.UpdatedAt = core.Now()
	return svc.repo.UpdateMiniQuestion(ctx, mq)
}

func (svc *service) UnreleaseMiniQuestion(ctx context.Context, id string) (MiniQuestion, error) {
	mq, err := svc.repo.GetMiniQuestion(ctx, id)
	if err != nil {
		return MiniQuestion{}, err
	}
	mq.Unrelease()
	mq.UpdatedAt = core.Now()
	return svc.repo.UpdateMiniQuestion(ctx, mq)
}

func (svc *service) ScheduleMiniQuestion(ctx context.Context, id string, at time.Time) (MiniQuestion, error) {
	mq, err := svc.repo.GetMiniQuestion(ctx, id)
	if err != nil {
		return MiniQuestion{}, err
	}
	mq.Schedule(at.UTC())
	mq.UpdatedAt = core.Now()
	return svc.repo.UpdateMiniQuestion(ctx, mq)
}

func (svc *service) LoadCohortContent(ctx context.Context, cohortID string) (Content, error) {
	modules, err := svc.repo.QueryModules(ctx, cohortID)
	if err != nil {
		return Content{}, errors.Wrap(err, "querying modules")
	}
	topics, err := svc.repo.QueryTopics(ctx, cohortID)
	if err != nil {
		return Content{}, errors.Wrap(err, "querying topics")
	}

	topicIDs := make([]string, 0, len(topics))
	for _, t := range topics {
		topicIDs = append(topicIDs, t.ID)
	}
	sections, err := svc.repo.QuerySections(ctx, topicIDs)
	if err != nil {
		return Content{}, errors.Wrap(err, "querying sections")
	}

	sectionIDs := make([]string, 0, len(sections))
	for _, s := range sections {
		sectionIDs = append(sectionIDs, s.ID)
	}
	miniQuestions, err := svc.repo.QueryMiniQuestions(ctx, sectionIDs)
	if err != nil {
		return Content{}, errors.Wrap(err, "querying mini questions")
	}

	return Content{
		Modules:       modules,
		Topics:        topics,
		Sections:      sections,
		MiniQuestions: miniQuestions,
	}, nil
}
