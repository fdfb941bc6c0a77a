package release_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
	"github.com/mwalimu/darasa/core/release"
	"github.com/mwalimu/darasa/core/user"
	emailsvc "github.com/mwalimu/darasa/services/email"
	dummydb "github.com/mwalimu/darasa/storage/database/dummy"
	testutil "github.com/mwalimu/darasa/tests"
)

type schedEnv struct {
	usrRepo     user.Repository
	cohortRepo  cohort.Repository
	catalogRepo catalog.Repository
	catalogSvc  catalog.Service
	sched       *release.Scheduler
}

func newSchedEnv(t *testing.T) schedEnv {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	logger := core.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	core.ParseEmailTemplates(logger)

	db := testutil.OpenDB()
	usrRepo := dummydb.NewUserRepository(db)
	cohortRepo := dummydb.NewCohortRepository(db)
	catalogRepo := dummydb.NewCatalogRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	cohortSvc := cohort.NewService(cohortRepo)
	catalogSvc := catalog.NewService(catalogRepo, cohortSvc)

	sched, err := release.NewScheduler(release.Deps{
		Repo:       dummydb.NewReleaseRepository(db),
		CatalogSvc: catalogSvc,
		CohortSvc:  cohortSvc,
		UserSvc:    user.NewServiceMock(usrRepo, mailSvc, conf),
		MailSvc:    mailSvc,
		Logger:     logger,
	}, conf)
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}
	return schedEnv{
		usrRepo:     usrRepo,
		cohortRepo:  cohortRepo,
		catalogRepo: catalogRepo,
		catalogSvc:  catalogSvc,
		sched:       sched,
	}
}

func armModule(t *testing.T, repo catalog.Repository, m catalog.Module, at time.Time) catalog.Module {
	t.Helper()
	m.Schedule(at)
	m, err := repo.UpdateModule(context.Background(), m)
	if err != nil {
		t.Fatalf("UpdateModule() failed: %v", err)
	}
	return m
}

func armTopic(t *testing.T, repo catalog.Repository, topic catalog.Topic, at time.Time) catalog.Topic {
	t.Helper()
	topic.Schedule(at)
	topic, err := repo.UpdateTopic(context.Background(), topic)
	if err != nil {
		t.Fatalf("UpdateTopic() failed: %v", err)
	}
	return topic
}

func armMini(t *testing.T, repo catalog.Repository, mq catalog.MiniQuestion, at time.Time) catalog.MiniQuestion {
	t.Helper()
	mq.Schedule(at)
	mq, err := repo.UpdateMiniQuestion(context.Background(), mq)
	if err != nil {
		t.Fatalf("UpdateMiniQuestion() failed: %v", err)
	}
	return mq
}

func TestSchedulerTickReleasesDueChain(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t)
	emailsvc.SentMessages = nil

	coh := testutil.CreateCohort(t, env.cohortRepo, 1, "Cohort 1", true)
	other := testutil.CreateCohort(t, env.cohortRepo, 2, "Cohort 2", true)
	hero := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleLearner}, true)
	solo := testutil.CreateUser(t, env.usrRepo, "Solo", "solo", "solo@test.cd", "", []string{user.RoleLearner}, true)
	testutil.Enroll(t, env.cohortRepo, hero.ID, coh.ID)
	testutil.Enroll(t, env.cohortRepo, solo.ID, other.ID)

	due := core.Now().Add(-time.Hour)

	mod := testutil.CreateModule(t, env.catalogRepo, coh.ID, 1, "Module 1", false)
	mod = armModule(t, env.catalogRepo, mod, due)
	topic1 := testutil.CreateTopic(t, env.catalogRepo, coh.ID, mod.ID, 1, "Topic 1", false)
	topic1 = armTopic(t, env.catalogRepo, topic1, due)
	topic2 := testutil.CreateTopic(t, env.catalogRepo, coh.ID, "", 2, "Topic 2", false)
	topic2 = armTopic(t, env.catalogRepo, topic2, due)
	sec := testutil.CreateSection(t, env.catalogRepo, topic1.ID, 0, "Resources")
	mq := testutil.CreateMiniQuestion(t, env.catalogRepo, sec.ID, 0, "Mini 1", false)
	mq = armMini(t, env.catalogRepo, mq, due)
	notYet := testutil.CreateMiniQuestion(t, env.catalogRepo, sec.ID, 1, "Mini 2", false)
	notYet = armMini(t, env.catalogRepo, notYet, core.Now().Add(time.Hour))

	env.sched.Tick(ctx)

	t.Run("whole due chain opens in one pass", func(t *testing.T) {
		gotMod, err := env.catalogSvc.GetModule(ctx, mod.ID)
		if err != nil {
			t.Fatalf("GetModule() failed: %v", err)
		}
		if !gotMod.Released || gotMod.ActualReleaseTime == nil {
			t.Errorf("module not released: %+v", gotMod.ReleaseState)
		}
		for _, id := range []string{topic1.ID, topic2.ID} {
			gotTopic, err := env.catalogSvc.GetTopic(ctx, id)
			if err != nil {
				t.Fatalf("GetTopic() failed: %v", err)
			}
			if !gotTopic.Released || gotTopic.ActualReleaseTime == nil {
				t.Errorf("topic %s not released: %+v", id, gotTopic.ReleaseState)
			}
		}
		gotMq, err := env.catalogSvc.GetMiniQuestion(ctx, mq.ID)
		if err != nil {
			t.Fatalf("GetMiniQuestion() failed: %v", err)
		}
		if !gotMq.Released {
			t.Errorf("mini question not released: %+v", gotMq.ReleaseState)
		}
	})

	t.Run("future schedules stay put", func(t *testing.T) {
		got, err := env.catalogSvc.GetMiniQuestion(ctx, notYet.ID)
		if err != nil {
			t.Fatalf("GetMiniQuestion() failed: %v", err)
		}
		if got.Released || got.ScheduledReleaseTime == nil {
			t.Errorf("unexpected state: %+v", got.ReleaseState)
		}
	})

	t.Run("enrolled learners are notified", func(t *testing.T) {
		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("len(SentMessages) = %d, expected 1", len(emailsvc.SentMessages))
		}
		msg := emailsvc.SentMessages[0]
		if msg.Subject != "New content available" {
			t.Errorf("Subject = %q", msg.Subject)
		}
		if len(msg.To) != 1 || msg.To[0].Address != hero.Email {
			t.Errorf("To = %v, expected only %v", msg.To, hero.Email)
		}
	})

	t.Run("second tick is a no-op", func(t *testing.T) {
		emailsvc.SentMessages = nil
		env.sched.Tick(ctx)
		if len(emailsvc.SentMessages) != 0 {
			t.Errorf("len(SentMessages) = %d, expected 0", len(emailsvc.SentMessages))
		}
	})
}

func TestSchedulerTickHoldsGatedRows(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t)
	emailsvc.SentMessages = nil

	coh := testutil.CreateCohort(t, env.cohortRepo, 1, "Cohort 1", true)
	due := core.Now().Add(-time.Minute)

	// module never scheduled; its children are due
	mod := testutil.CreateModule(t, env.catalogRepo, coh.ID, 1, "Module 1", false)
	topic := testutil.CreateTopic(t, env.catalogRepo, coh.ID, mod.ID, 1, "Topic 1", false)
	topic = armTopic(t, env.catalogRepo, topic, due)
	sec := testutil.CreateSection(t, env.catalogRepo, topic.ID, 0, "Resources")
	mq := testutil.CreateMiniQuestion(t, env.catalogRepo, sec.ID, 0, "Mini 1", false)
	mq = armMini(t, env.catalogRepo, mq, due)

	env.sched.Tick(ctx)

	t.Run("unreleased module holds its chain back", func(t *testing.T) {
		gotTopic, err := env.catalogSvc.GetTopic(ctx, topic.ID)
		if err != nil {
			t.Fatalf("GetTopic() failed: %v", err)
		}
		if gotTopic.Released {
			t.Errorf("topic released through a closed module: %+v", gotTopic.ReleaseState)
		}
		gotMq, err := env.catalogSvc.GetMiniQuestion(ctx, mq.ID)
		if err != nil {
			t.Fatalf("GetMiniQuestion() failed: %v", err)
		}
		if gotMq.Released {
			t.Errorf("mini question released through a closed topic: %+v", gotMq.ReleaseState)
		}
	})

	t.Run("chain catches up once the module opens", func(t *testing.T) {
		if _, err := env.catalogSvc.ReleaseModule(ctx, mod.ID); err != nil {
			t.Fatalf("ReleaseModule() failed: %v", err)
		}
		env.sched.Tick(ctx)

		gotTopic, err := env.catalogSvc.GetTopic(ctx, topic.ID)
		if err != nil {
			t.Fatalf("GetTopic() failed: %v", err)
		}
		if !gotTopic.Released {
			t.Errorf("topic still held: %+v", gotTopic.ReleaseState)
		}
		gotMq, err := env.catalogSvc.GetMiniQuestion(ctx, mq.ID)
		if err != nil {
			t.Fatalf("GetMiniQuestion() failed: %v", err)
		}
		if !gotMq.Released {
			t.Errorf("mini question still held: %+v", gotMq.ReleaseState)
		}
	})
}

func TestSchedulerTickRetractsRescheduledRows(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t)
	emailsvc.SentMessages = nil

	coh := testutil.CreateCohort(t, env.cohortRepo, 1, "Cohort 1", true)
	future := core.Now().Add(time.Hour)

	mod := testutil.CreateModule(t, env.catalogRepo, coh.ID, 1, "Module 1", true)
	mod = armModule(t, env.catalogRepo, mod, future)
	topic := testutil.CreateTopic(t, env.catalogRepo, coh.ID, "", 1, "Topic 1", true)
	topic = armTopic(t, env.catalogRepo, topic, future)
	stays := testutil.CreateTopic(t, env.catalogRepo, coh.ID, "", 2, "Topic 2", true)
	sec := testutil.CreateSection(t, env.catalogRepo, topic.ID, 0, "Resources")
	mq := testutil.CreateMiniQuestion(t, env.catalogRepo, sec.ID, 0, "Mini 1", true)
	mq = armMini(t, env.catalogRepo, mq, future)

	env.sched.Tick(ctx)

	t.Run("released rows with future schedules go dark", func(t *testing.T) {
		gotMod, err := env.catalogSvc.GetModule(ctx, mod.ID)
		if err != nil {
			t.Fatalf("GetModule() failed: %v", err)
		}
		gotTopic, err := env.catalogSvc.GetTopic(ctx, topic.ID)
		if err != nil {
			t.Fatalf("GetTopic() failed: %v", err)
		}
		gotMq, err := env.catalogSvc.GetMiniQuestion(ctx, mq.ID)
		if err != nil {
			t.Fatalf("GetMiniQuestion() failed: %v", err)
		}
		if gotMod.Released || gotTopic.Released || gotMq.Released {
			t.Errorf("expected retraction, got %v %v %v",
				gotMod.Released, gotTopic.Released, gotMq.Released)
		}
		if gotTopic.ActualReleaseTime != nil {
			t.Error("expected ActualReleaseTime cleared on retraction")
		}
		// the schedule stays armed for the new release time
		if gotTopic.ScheduledReleaseTime == nil || !gotTopic.ScheduledReleaseTime.Equal(future) {
			t.Errorf("ScheduledReleaseTime = %v, expected %v", gotTopic.ScheduledReleaseTime, future)
		}
	})

	t.Run("unscheduled rows stay released", func(t *testing.T) {
		got, err := env.catalogSvc.GetTopic(ctx, stays.ID)
		if err != nil {
			t.Fatalf("GetTopic() failed: %v", err)
		}
		if !got.Released {
			t.Errorf("unexpected retraction: %+v", got.ReleaseState)
		}
	})

	t.Run("a second tick changes nothing", func(t *testing.T) {
		env.sched.Tick(ctx)
		got, err := env.catalogSvc.GetTopic(ctx, topic.ID)
		if err != nil {
			t.Fatalf("GetTopic() failed: %v", err)
		}
		if got.Released || got.ScheduledReleaseTime == nil {
			t.Errorf("unexpected state: %+v", got.ReleaseState)
		}
	})
}
