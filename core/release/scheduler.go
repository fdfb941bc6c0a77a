// Package release runs the clock that turns scheduled release times into
// released content. It owns no visibility logic of its own: the catalog's
// cascade predicates stay the authority on what a learner can see, the
// scheduler only advances the raw flags.
package release

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
	"github.com/mwalimu/darasa/core/user"
)

type (
	// Repository scans for rows whose schedule crossed now and flips them.
	// Parent gates live inside the scan filters: a due topic needs its module
	// released (or no module), a due mini question needs its topic released.
	// Flips are single-row writes keyed on the flag they flip, which makes
	// every pass idempotent and safe to re-run.
	Repository interface {
		ReleasableModules(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Module, error)
		ReleaseModule(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error
		RetractableModules(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Module, error)
		RetractModule(ctx context.Context, id string, exec ...core.DBExecutor) error

		ReleasableTopics(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Topic, error)
		ReleaseTopic(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error
		RetractableTopics(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.Topic, error)
		RetractTopic(ctx context.Context, id string, exec ...core.DBExecutor) error

		ReleasableMiniQuestions(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error)
		ReleaseMiniQuestion(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error
		RetractableMiniQuestions(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]catalog.MiniQuestion, error)
		RetractMiniQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Deps struct {
		Repo       Repository
		CatalogSvc catalog.Service
		CohortSvc  cohort.Service
		UserSvc    user.Service
		MailSvc    core.EmailService
		Logger     core.Logger
	}

	Scheduler struct {
		deps Deps
		cron *cron.Cron

		nowFunc func() time.Time

		mu      sync.Mutex
		running bool
	}
)

func NewScheduler(deps Deps, conf *core.Config) (*Scheduler, error) {
	s := &Scheduler{
		deps:    deps,
		cron:    cron.New(),
		nowFunc: core.Now,
	}
	spec := "@every " + conf.Scheduler.TickInterval.String()
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins ticking on the configured interval. The first tick fires one
// interval after Start, not immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further ticks. The returned context is done once any
// in-flight tick has completed.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Tick runs one release pass and one correction pass over the whole catalog.
// Ticks never overlap: a tick that finds the previous one still running skips.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.begin() {
		s.deps.Logger.Info("release: previous tick still running, skipping")
		return
	}
	defer s.end()

	now := s.nowFunc()
	s.releasePass(ctx, now)
	s.retractPass(ctx, now)
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// releasePass flips everything due, parents first, so a chain scheduled for
// the same instant opens up within a single tick. Per-item failures are
// logged and skipped; the row stays eligible for the next tick.
func (s *Scheduler) releasePass(ctx context.Context, now time.Time) {
	if modules, err := s.deps.Repo.ReleasableModules(ctx, now); err != nil {
		s.logErr("release: scanning modules", err)
	} else {
		for _, m := range modules {
			if err = s.deps.Repo.ReleaseModule(ctx, m.ID, now); err != nil {
				s.logErr(fmt.Sprintf("release: module %s", m.ID), err)
			}
		}
	}

	if topics, err := s.deps.Repo.ReleasableTopics(ctx, now); err != nil {
		s.logErr("release: scanning topics", err)
	} else {
		for _, t := range topics {
			if err = s.deps.Repo.ReleaseTopic(ctx, t.ID, now); err != nil {
				s.logErr(fmt.Sprintf("release: topic %s", t.ID), err)
			}
		}
	}

	minis, err := s.deps.Repo.ReleasableMiniQuestions(ctx, now)
	if err != nil {
		s.logErr("release: scanning mini questions", err)
		return
	}
	for _, mq := range minis {
		if err = s.deps.Repo.ReleaseMiniQuestion(ctx, mq.ID, now); err != nil {
			s.logErr(fmt.Sprintf("release: mini question %s", mq.ID), err)
			continue
		}
		// only mini question releases notify learners
		s.notifyRelease(ctx, mq)
	}
}

// retractPass silently hides rows whose schedule was pushed back into the
// future after they had already released.
func (s *Scheduler) retractPass(ctx context.Context, now time.Time) {
	if minis, err := s.deps.Repo.RetractableMiniQuestions(ctx, now); err != nil {
		s.logErr("release: scanning retractable mini questions", err)
	} else {
		for _, mq := range minis {
			if err = s.deps.Repo.RetractMiniQuestion(ctx, mq.ID); err != nil {
				s.logErr(fmt.Sprintf("release: retracting mini question %s", mq.ID), err)
			}
		}
	}

	if topics, err := s.deps.Repo.RetractableTopics(ctx, now); err != nil {
		s.logErr("release: scanning retractable topics", err)
	} else {
		for _, t := range topics {
			if err = s.deps.Repo.RetractTopic(ctx, t.ID); err != nil {
				s.logErr(fmt.Sprintf("release: retracting topic %s", t.ID), err)
			}
		}
	}

	if modules, err := s.deps.Repo.RetractableModules(ctx, now); err != nil {
		s.logErr("release: scanning retractable modules", err)
	} else {
		for _, m := range modules {
			if err = s.deps.Repo.RetractModule(ctx, m.ID); err != nil {
				s.logErr(fmt.Sprintf("release: retracting module %s", m.ID), err)
			}
		}
	}
}

// notifyRelease mails every enrolled learner of the owning cohort. Delivery
// failures are the mail service's to log; they never unwind the flip.
func (s *Scheduler) notifyRelease(ctx context.Context, mq catalog.MiniQuestion) {
	section, err := s.deps.CatalogSvc.GetSection(ctx, mq.SectionID)
	if err != nil {
		s.logErr(fmt.Sprintf("release: loading section %s", mq.SectionID), err)
		return
	}
	topic, err := s.deps.CatalogSvc.GetTopic(ctx, section.TopicID)
	if err != nil {
		s.logErr(fmt.Sprintf("release: loading topic %s", section.TopicID), err)
		return
	}
	members, err := s.deps.CohortSvc.QueryMemberships(ctx, &cohort.MembershipFilter{
		CohortID: topic.CohortID,
		Status:   cohort.StatusEnrolled,
	})
	if err != nil {
		s.logErr(fmt.Sprintf("release: loading memberships of cohort %s", topic.CohortID), err)
		return
	}
	if len(members) == 0 {
		return
	}

	ids := make([]string, 0, len(members))
	for _, mbr := range members {
		ids = append(ids, mbr.UserID)
	}
	learners, err := s.deps.UserSvc.Query(ctx, &user.QueryFilter{IDs: ids}, nil)
	if err != nil {
		s.logErr("release: loading learners", err)
		return
	}

	msgs := make([]*core.EmailMessage, 0, len(learners))
	for _, usr := range learners {
		if usr.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "New content available",
			TemplateName: "content_released",
			TemplateData: struct {
				Name         string
				Prompt       string
				SectionTitle string
				TopicTitle   string
			}{
				Name:         usr.Name,
				Prompt:       mq.Prompt,
				SectionTitle: section.Title,
				TopicTitle:   topic.Title,
			},
		})
	}
	if len(msgs) > 0 {
		s.deps.MailSvc.SendMessages(msgs...)
	}
}

func (s *Scheduler) logErr(msg string, err error) {
	s.deps.Logger.Error(fmt.Sprintf("%s: %v", msg, err), err)
}
