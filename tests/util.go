package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
	"github.com/mwalimu/darasa/core/user"
	dummydb "github.com/mwalimu/darasa/storage/database/dummy"
)

// OpenDB opens a fresh in-memory database.
func OpenDB() *dummydb.DB {
	db, _ := dummydb.Open()
	return db
}

// ResetDB empties every table between test functions.
func ResetDB(t *testing.T, db *dummydb.DB) {
	t.Helper()
	db.Reset()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCohort(t *testing.T, repo cohort.Repository, number int, name string, isActive bool) cohort.Cohort {
	t.Helper()

	now := core.Now()
	c, err := repo.CreateCohort(context.Background(), cohort.Cohort{
		Number:    number,
		Name:      name,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCohort() failed: %v", err)
	}
	return c
}

// Enroll creates an enrolled membership straight at the repository, skipping
// the service's single-enrollment guard so tests can seed broken states.
func Enroll(t *testing.T, repo cohort.Repository, userID, cohortID string, joinedAt ...time.Time) cohort.Membership {
	t.Helper()

	tstamp := core.Now()
	if len(joinedAt) > 0 {
		tstamp = joinedAt[0].UTC()
	}
	m, err := repo.CreateMembership(context.Background(), cohort.Membership{
		UserID:    userID,
		CohortID:  cohortID,
		Status:    cohort.StatusEnrolled,
		JoinedAt:  tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return m
}

func CreateModule(t *testing.T, repo catalog.Repository, cohortID string, number int, name string, released bool) catalog.Module {
	t.Helper()

	now := core.Now()
	m := catalog.Module{
		CohortID:  cohortID,
		Number:    number,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if released {
		m.Release(now)
	}
	m, err := repo.CreateModule(context.Background(), m)
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return m
}

func CreateTopic(t *testing.T, repo catalog.Repository, cohortID, moduleID string, number int, title string, released bool) catalog.Topic {
	t.Helper()

	now := core.Now()
	topic := catalog.Topic{
		CohortID:  cohortID,
		ModuleID:  moduleID,
		Number:    number,
		Title:     title,
		IsActive:  true,
		Points:    10,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if released {
		topic.Release(now)
	}
	topic, err := repo.CreateTopic(context.Background(), topic)
	if err != nil {
		t.Fatalf("CreateTopic() failed: %v", err)
	}
	return topic
}

func CreateSection(t *testing.T, repo catalog.Repository, topicID string, index int, title string) catalog.Section {
	t.Helper()

	now := core.Now()
	s, err := repo.CreateSection(context.Background(), catalog.Section{
		TopicID:   topicID,
		Index:     index,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	return s
}

func CreateMiniQuestion(t *testing.T, repo catalog.Repository, sectionID string, index int, prompt string, released bool) catalog.MiniQuestion {
	t.Helper()

	now := core.Now()
	mq := catalog.MiniQuestion{
		SectionID: sectionID,
		Index:     index,
		Prompt:    prompt,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if released {
		mq.Release(now)
	}
	mq, err := repo.CreateMiniQuestion(context.Background(), mq)
	if err != nil {
		t.Fatalf("CreateMiniQuestion() failed: %v", err)
	}
	return mq
}
