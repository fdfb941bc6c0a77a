package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/catalog"
	"github.com/mwalimu/darasa/core/cohort"
	"github.com/mwalimu/darasa/core/progress"
	"github.com/mwalimu/darasa/core/user"
	testutil "github.com/mwalimu/darasa/tests"
)

// *Err types mirror the admin payloads' json field names for asserting
// validation error maps.
type (
	cohortErr struct {
		Number  string `json:"number,omitempty"`
		Name    string `json:"name,omitempty"`
		EndDate string `json:"end_date,omitempty"`
	}
	membershipErr struct {
		UserID string `json:"user_id,omitempty"`
		Status string `json:"status,omitempty"`
	}
	moduleErr struct {
		CohortID string `json:"cohort_id,omitempty"`
		Number   string `json:"number,omitempty"`
		Name     string `json:"name,omitempty"`
	}
	topicErr struct {
		CohortID string `json:"cohort_id,omitempty"`
		ModuleID string `json:"module_id,omitempty"`
		Number   string `json:"number,omitempty"`
		Title    string `json:"title,omitempty"`
		Deadline string `json:"deadline,omitempty"`
	}
	sectionErr struct {
		TopicID string `json:"topic_id,omitempty"`
		Title   string `json:"title,omitempty"`
	}
	miniQuestionErr struct {
		SectionID string `json:"section_id,omitempty"`
		Prompt    string `json:"prompt,omitempty"`
	}
	scheduleErr struct {
		At string `json:"at,omitempty"`
	}
	gradeErr struct {
		Status string `json:"status,omitempty"`
		Grade  string `json:"grade,omitempty"`
	}
)

func Test_adminApi_cohortManagement(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	mentor := testutil.CreateUser(t, usrRepo, "Mentor", "mentor", "mentor@test.cd", "", []string{user.RoleMentor}, true)
	learner := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleLearner}, true)
	adminToken := getToken(t, admin)
	bPtr := func(b bool) *bool { return &b }

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	guards := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Learner forbidden", token: getToken(t, learner), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "Mentor forbidden", token: getToken(t, mentor), wantCode: http.StatusForbidden, wantData: forbidden},
	}
	for _, tt := range guards {
		tt.method = http.MethodGet
		tt.path = "/v1/admin/cohorts"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	check := func(t *testing.T, method, path string, data []byte, wantCode int, wantData []byte) {
		t.Helper()
		req, rec := newAuthRequest(method, path, adminToken, data)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: wantCode, wantData: wantData}, rec)
	}
	create := func(t *testing.T, data []byte, out *cohort.Cohort) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/cohorts", adminToken, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
	}

	reqMsg := "this field is required"
	var created, second cohort.Cohort

	t.Run("Create: required fields", func(t *testing.T) {
		check(t, http.MethodPost, "/v1/admin/cohorts", nil,
			http.StatusBadRequest, marchallObj(t, cohortErr{Number: reqMsg, Name: reqMsg}))
	})

	t.Run("Create: end date must follow start date", func(t *testing.T) {
		start := core.Now()
		data := marchallObj(t, cohort.NewCohort{Number: 1, Name: "Cohort 1", StartDate: start, EndDate: start.Add(-time.Hour)})
		check(t, http.MethodPost, "/v1/admin/cohorts", data,
			http.StatusBadRequest, marchallObj(t, cohortErr{EndDate: "end_date must be greater than StartDate"}))
	})

	t.Run("Create", func(t *testing.T) {
		create(t, marchallObj(t, cohort.NewCohort{Number: 1, Name: "Cohort 1"}), &created)
		if created.ID == "" || created.Number != 1 || created.Name != "Cohort 1" || !created.IsActive {
			t.Errorf("failed! unexpected cohort: %+v", created)
		}
	})

	t.Run("Create: duplicate number", func(t *testing.T) {
		data := marchallObj(t, cohort.NewCohort{Number: 1, Name: "Copy cat"})
		check(t, http.MethodPost, "/v1/admin/cohorts", data,
			http.StatusBadRequest, marchallObj(t, cohortErr{Number: "a cohort with this number already exists"}))
	})

	t.Run("Retrieve: unknown cohort", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts/lol", nil,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "cohort not found"}))
	})

	t.Run("Retrieve", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts/"+created.ID, nil, http.StatusOK, marchallObj(t, created))
	})

	t.Run("Create second", func(t *testing.T) {
		start := core.Now().Add(24 * time.Hour)
		data := marchallObj(t, cohort.NewCohort{Number: 2, Name: "Wazito FC", StartDate: start, EndDate: start.Add(90 * 24 * time.Hour)})
		create(t, data, &second)
		if second.StartDate == nil || second.EndDate == nil {
			t.Errorf("failed! dates not kept: %+v", second)
		}
	})

	t.Run("Query all", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts", nil, http.StatusOK, marchallList(t, created, second))
	})

	t.Run("Query: search", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts?search=wazito", nil, http.StatusOK, marchallList(t, second))
	})

	t.Run("Query: search miss", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts?search=lol", nil, http.StatusOK, marchallObj(t, []cohort.Cohort{}))
	})

	t.Run("Update", func(t *testing.T) {
		data := marchallObj(t, cohort.UpdateCohort{IsActive: bPtr(false)})
		req, rec := newAuthRequest(http.MethodPut, "/v1/admin/cohorts/"+second.ID, adminToken, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if second.IsActive || second.Name != "Wazito FC" {
			t.Errorf("failed! unexpected cohort: %+v", second)
		}
	})

	t.Run("Query: inactive only", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts?is_active=false", nil, http.StatusOK, marchallList(t, second))
	})

	t.Run("Update: unknown cohort", func(t *testing.T) {
		check(t, http.MethodPut, "/v1/admin/cohorts/lol", nil,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "cohort not found"}))
	})

	t.Run("Content: unknown cohort", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts/lol/content", nil,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "cohort not found"}))
	})

	t.Run("Content: empty tree", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts/"+created.ID+"/content", nil, http.StatusOK,
			marchallObj(t, catalog.Content{
				Modules:       []catalog.Module{},
				Topics:        []catalog.Topic{},
				Sections:      []catalog.Section{},
				MiniQuestions: []catalog.MiniQuestion{},
			}))
	})
}

func Test_adminApi_membership(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	learner1 := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleLearner}, true)
	learner2 := testutil.CreateUser(t, usrRepo, "King", "king", "king@test.cd", "", []string{user.RoleLearner}, true)
	coh1 := testutil.CreateCohort(t, cohortRepo, 1, "Cohort 1", true)
	coh2 := testutil.CreateCohort(t, cohortRepo, 2, "Cohort 2", true)
	adminToken := getToken(t, admin)

	membersPath := func(cohortID string) string { return "/v1/admin/cohorts/" + cohortID + "/members" }
	memberPath := func(cohortID, userID string) string { return membersPath(cohortID) + "/" + userID }

	check := func(t *testing.T, method, path string, data []byte, wantCode int, wantData []byte) {
		t.Helper()
		req, rec := newAuthRequest(method, path, adminToken, data)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: wantCode, wantData: wantData}, rec)
	}
	enroll := func(t *testing.T, cohortID, userID string, out *cohort.Membership) {
		t.Helper()
		data := marchallObj(t, cohort.NewMembership{UserID: userID})
		req, rec := newAuthRequest(http.MethodPost, membersPath(cohortID), adminToken, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
	}

	reqMsg := "this field is required"
	alreadyEnrolled := marchallObj(t, httpErr{Error: "user is already enrolled in a cohort"})
	var m1, m2 cohort.Membership

	t.Run("Enroll: required fields", func(t *testing.T) {
		check(t, http.MethodPost, membersPath(coh1.ID), nil,
			http.StatusBadRequest, marchallObj(t, membershipErr{UserID: reqMsg}))
	})

	t.Run("Enroll: invalid user id", func(t *testing.T) {
		data := marchallObj(t, cohort.NewMembership{UserID: "lol"})
		check(t, http.MethodPost, membersPath(coh1.ID), data,
			http.StatusBadRequest, marchallObj(t, membershipErr{UserID: "user_id must be a valid version 4 UUID"}))
	})

	t.Run("Enroll: unknown cohort", func(t *testing.T) {
		data := marchallObj(t, cohort.NewMembership{UserID: learner1.ID})
		check(t, http.MethodPost, membersPath("lol"), data,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "cohort not found"}))
	})

	t.Run("Enroll", func(t *testing.T) {
		enroll(t, coh1.ID, learner1.ID, &m1)
		if m1.Status != cohort.StatusEnrolled || m1.UserID != learner1.ID || m1.CohortID != coh1.ID {
			t.Errorf("failed! unexpected membership: %+v", m1)
		}
	})

	t.Run("Enroll: already enrolled", func(t *testing.T) {
		data := marchallObj(t, cohort.NewMembership{UserID: learner1.ID})
		check(t, http.MethodPost, membersPath(coh1.ID), data, http.StatusBadRequest, alreadyEnrolled)
	})

	t.Run("Enroll: one cohort at a time", func(t *testing.T) {
		data := marchallObj(t, cohort.NewMembership{UserID: learner1.ID})
		check(t, http.MethodPost, membersPath(coh2.ID), data, http.StatusBadRequest, alreadyEnrolled)
	})

	t.Run("Enroll second learner", func(t *testing.T) {
		enroll(t, coh2.ID, learner2.ID, &m2)
	})

	t.Run("Members", func(t *testing.T) {
		check(t, http.MethodGet, membersPath(coh1.ID), nil, http.StatusOK, marchallList(t, m1))
	})

	t.Run("Members: status filter miss", func(t *testing.T) {
		check(t, http.MethodGet, membersPath(coh1.ID)+"?status=removed", nil,
			http.StatusOK, marchallObj(t, []cohort.Membership{}))
	})

	t.Run("Member status: required fields", func(t *testing.T) {
		check(t, http.MethodPut, memberPath(coh1.ID, learner1.ID), nil,
			http.StatusBadRequest, marchallObj(t, membershipErr{Status: reqMsg}))
	})

	t.Run("Member status: invalid status", func(t *testing.T) {
		data := marchallObj(t, cohort.UpdateMembership{Status: "lol"})
		check(t, http.MethodPut, memberPath(coh1.ID, learner1.ID), data,
			http.StatusBadRequest, marchallObj(t, membershipErr{Status: "status must be one of [enrolled graduated removed suspended]"}))
	})

	t.Run("Member status: unknown membership", func(t *testing.T) {
		data := marchallObj(t, cohort.UpdateMembership{Status: cohort.StatusGraduated})
		check(t, http.MethodPut, memberPath(coh2.ID, learner1.ID), data,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "membership not found"}))
	})

	t.Run("Member status", func(t *testing.T) {
		data := marchallObj(t, cohort.UpdateMembership{Status: cohort.StatusGraduated})
		req, rec := newAuthRequest(http.MethodPut, memberPath(coh1.ID, learner1.ID), adminToken, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &m1); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if m1.Status != cohort.StatusGraduated {
			t.Errorf("failed! Status = %v; want %v", m1.Status, cohort.StatusGraduated)
		}
	})

	// seed a duplicate enrollment straight at the repository; the kept one must
	// be the most recently joined
	extra := testutil.Enroll(t, cohortRepo, learner2.ID, coh1.ID, core.Now().Add(-time.Hour))

	t.Run("Repair enrollments", func(t *testing.T) {
		check(t, http.MethodPost, "/v1/admin/cohorts/repair", nil, http.StatusOK,
			marchallList(t, cohort.EnrollmentRepair{UserID: learner2.ID, KeptID: m2.ID, DemotedIDs: []string{extra.ID}}))
	})

	t.Run("Repair is idempotent", func(t *testing.T) {
		check(t, http.MethodPost, "/v1/admin/cohorts/repair", nil, http.StatusOK,
			marchallObj(t, []cohort.EnrollmentRepair{}))
	})

	t.Run("Demoted membership is no longer enrolled", func(t *testing.T) {
		check(t, http.MethodGet, membersPath(coh1.ID)+"?status=enrolled", nil,
			http.StatusOK, marchallObj(t, []cohort.Membership{}))
	})

	t.Run("Kept membership survives", func(t *testing.T) {
		check(t, http.MethodGet, membersPath(coh2.ID)+"?status=enrolled", nil,
			http.StatusOK, marchallList(t, m2))
	})
}

func Test_adminApi_contentAuthoring(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)
	coh := testutil.CreateCohort(t, cohortRepo, 1, "Cohort 1", true)
	coh2 := testutil.CreateCohort(t, cohortRepo, 2, "Cohort 2", true)
	iPtr := func(i int) *int { return &i }

	check := func(t *testing.T, method, path string, data []byte, wantCode int, wantData []byte) {
		t.Helper()
		req, rec := newAuthRequest(method, path, adminToken, data)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: wantCode, wantData: wantData}, rec)
	}
	create := func(t *testing.T, path string, data []byte, out interface{}) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, path, adminToken, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
	}
	update := func(t *testing.T, path string, data []byte, out interface{}) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPut, path, adminToken, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
	}

	reqMsg := "this field is required"
	notFound := marchallObj(t, httpErr{Error: "content not found"})
	var mod, mod2 catalog.Module
	var topic, topic2 catalog.Topic
	var sec catalog.Section
	var mq catalog.MiniQuestion

	// modules

	t.Run("Module: required fields", func(t *testing.T) {
		check(t, http.MethodPost, "/v1/admin/modules", nil,
			http.StatusBadRequest, marchallObj(t, moduleErr{CohortID: reqMsg, Number: reqMsg, Name: reqMsg}))
	})

	t.Run("Module: cohort id must be a uuid", func(t *testing.T) {
		data := marchallObj(t, catalog.NewModule{CohortID: "lol", Number: 1, Name: "Module 1"})
		check(t, http.MethodPost, "/v1/admin/modules", data,
			http.StatusBadRequest, marchallObj(t, moduleErr{CohortID: "cohort_id must be a valid version 4 UUID"}))
	})

	t.Run("Module: unknown cohort", func(t *testing.T) {
		data := marchallObj(t, catalog.NewModule{CohortID: uuid.New().String(), Number: 1, Name: "Module 1"})
		check(t, http.MethodPost, "/v1/admin/modules", data,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "cohort not found"}))
	})

	t.Run("Module: create", func(t *testing.T) {
		create(t, "/v1/admin/modules", marchallObj(t, catalog.NewModule{CohortID: coh.ID, Number: 1, Name: "Module 1"}), &mod)
		if !mod.IsActive || mod.Released {
			t.Errorf("failed! unexpected module: %+v", mod)
		}
	})

	t.Run("Module: duplicate number", func(t *testing.T) {
		data := marchallObj(t, catalog.NewModule{CohortID: coh.ID, Number: 1, Name: "Copy cat"})
		check(t, http.MethodPost, "/v1/admin/modules", data,
			http.StatusBadRequest, marchallObj(t, moduleErr{Number: "a module with this number already exists in the cohort"}))
	})

	t.Run("Module: numbers are scoped per cohort", func(t *testing.T) {
		create(t, "/v1/admin/modules", marchallObj(t, catalog.NewModule{CohortID: coh2.ID, Number: 1, Name: "Module 1"}), &mod2)
	})

	t.Run("Module: retrieve unknown", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/modules/lol", nil, http.StatusNotFound, notFound)
	})

	t.Run("Module: update", func(t *testing.T) {
		update(t, "/v1/admin/modules/"+mod.ID, marchallObj(t, catalog.UpdateModule{Name: "Foundations"}), &mod)
		if mod.Name != "Foundations" {
			t.Errorf("failed! Name = %v; want Foundations", mod.Name)
		}
	})

	t.Run("Module: retrieve", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/modules/"+mod.ID, nil, http.StatusOK, marchallObj(t, mod))
	})

	// topics

	t.Run("Topic: required fields", func(t *testing.T) {
		check(t, http.MethodPost, "/v1/admin/topics", nil,
			http.StatusBadRequest, marchallObj(t, topicErr{CohortID: reqMsg, Number: reqMsg, Title: reqMsg}))
	})

	t.Run("Topic: deadline must be in the future", func(t *testing.T) {
		data := marchallObj(t, catalog.NewTopic{CohortID: coh.ID, Number: 1, Title: "Topic 1", Deadline: core.Now().Add(-time.Hour)})
		check(t, http.MethodPost, "/v1/admin/topics", data,
			http.StatusBadRequest, marchallObj(t, topicErr{Deadline: "this time must be in the future"}))
	})

	t.Run("Topic: module in another cohort", func(t *testing.T) {
		data := marchallObj(t, catalog.NewTopic{CohortID: coh2.ID, ModuleID: mod.ID, Number: 1, Title: "Topic 1"})
		check(t, http.MethodPost, "/v1/admin/topics", data,
			http.StatusBadRequest, marchallObj(t, topicErr{ModuleID: "target belongs to a different cohort"}))
	})

	t.Run("Topic: create", func(t *testing.T) {
		data := marchallObj(t, catalog.NewTopic{
			CohortID:    coh.ID,
			ModuleID:    mod.ID,
			Number:      1,
			Title:       "Topic 1",
			Body:        "Do the thing.",
			Deadline:    core.Now().Add(72 * time.Hour),
			Points:      10,
			BonusPoints: 5,
		})
		create(t, "/v1/admin/topics", data, &topic)
		if topic.Deadline == nil || topic.Points != 10 || topic.BonusPoints != 5 || !topic.IsActive {
			t.Errorf("failed! unexpected topic: %+v", topic)
		}
	})

	t.Run("Topic: duplicate number", func(t *testing.T) {
		data := marchallObj(t, catalog.NewTopic{CohortID: coh.ID, Number: 1, Title: "Copy cat"})
		check(t, http.MethodPost, "/v1/admin/topics", data,
			http.StatusBadRequest, marchallObj(t, topicErr{Number: "a topic with this number already exists in the cohort"}))
	})

	t.Run("Topic: moduleless create", func(t *testing.T) {
		create(t, "/v1/admin/topics", marchallObj(t, catalog.NewTopic{CohortID: coh.ID, Number: 2, Title: "Topic 2"}), &topic2)
		if topic2.ModuleID != "" {
			t.Errorf("failed! ModuleID = %v; want none", topic2.ModuleID)
		}
	})

	t.Run("Topic: update", func(t *testing.T) {
		update(t, "/v1/admin/topics/"+topic.ID, marchallObj(t, catalog.UpdateTopic{Points: iPtr(20)}), &topic)
		if topic.Points != 20 || topic.Title != "Topic 1" {
			t.Errorf("failed! unexpected topic: %+v", topic)
		}
	})

	t.Run("Topic: retrieve", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/topics/"+topic.ID, nil, http.StatusOK, marchallObj(t, topic))
	})

	// sections & mini questions

	t.Run("Section: required fields", func(t *testing.T) {
		check(t, http.MethodPost, "/v1/admin/sections", nil,
			http.StatusBadRequest, marchallObj(t, sectionErr{TopicID: reqMsg, Title: reqMsg}))
	})

	t.Run("Section: unknown topic", func(t *testing.T) {
		data := marchallObj(t, catalog.NewSection{TopicID: uuid.New().String(), Title: "Resources"})
		check(t, http.MethodPost, "/v1/admin/sections", data, http.StatusNotFound, notFound)
	})

	t.Run("Section: create", func(t *testing.T) {
		create(t, "/v1/admin/sections", marchallObj(t, catalog.NewSection{TopicID: topic.ID, Index: 0, Title: "Resources"}), &sec)
	})

	t.Run("Mini question: required fields", func(t *testing.T) {
		check(t, http.MethodPost, "/v1/admin/mini-questions", nil,
			http.StatusBadRequest, marchallObj(t, miniQuestionErr{SectionID: reqMsg, Prompt: reqMsg}))
	})

	t.Run("Mini question: unknown section", func(t *testing.T) {
		data := marchallObj(t, catalog.NewMiniQuestion{SectionID: uuid.New().String(), Prompt: "What is a pointer?"})
		check(t, http.MethodPost, "/v1/admin/mini-questions", data, http.StatusNotFound, notFound)
	})

	t.Run("Mini question: create", func(t *testing.T) {
		create(t, "/v1/admin/mini-questions", marchallObj(t, catalog.NewMiniQuestion{SectionID: sec.ID, Index: 0, Prompt: "What is a pointer?"}), &mq)
	})

	t.Run("Cohort content tree", func(t *testing.T) {
		check(t, http.MethodGet, "/v1/admin/cohorts/"+coh.ID+"/content", nil, http.StatusOK,
			marchallObj(t, catalog.Content{
				Modules:       []catalog.Module{mod},
				Topics:        []catalog.Topic{topic, topic2},
				Sections:      []catalog.Section{sec},
				MiniQuestions: []catalog.MiniQuestion{mq},
			}))
	})

	// release control

	t.Run("Release topic", func(t *testing.T) {
		update(t, "/v1/admin/topics/"+topic.ID+"/release", nil, &topic)
		if !topic.Released || topic.ActualReleaseTime == nil || topic.ScheduledReleaseTime != nil {
			t.Errorf("failed! unexpected release state: %+v", topic.ReleaseState)
		}
	})

	t.Run("Schedule: required fields", func(t *testing.T) {
		check(t, http.MethodPut, "/v1/admin/topics/"+topic.ID+"/schedule", nil,
			http.StatusBadRequest, marchallObj(t, scheduleErr{At: reqMsg}))
	})

	t.Run("Schedule: time must be in the future", func(t *testing.T) {
		data := marchallObj(t, catalog.ScheduleRelease{At: core.Now().Add(-time.Hour)})
		check(t, http.MethodPut, "/v1/admin/topics/"+topic.ID+"/schedule", data,
			http.StatusBadRequest, marchallObj(t, scheduleErr{At: "this time must be in the future"}))
	})

	t.Run("Schedule a released topic for retraction", func(t *testing.T) {
		data := marchallObj(t, catalog.ScheduleRelease{At: core.Now().Add(24 * time.Hour)})
		update(t, "/v1/admin/topics/"+topic.ID+"/schedule", data, &topic)
		if !topic.Released || topic.ScheduledReleaseTime == nil {
			t.Errorf("failed! unexpected release state: %+v", topic.ReleaseState)
		}
	})

	t.Run("Unrelease topic", func(t *testing.T) {
		update(t, "/v1/admin/topics/"+topic.ID+"/unrelease", nil, &topic)
		if topic.Released || topic.ActualReleaseTime != nil || topic.ScheduledReleaseTime != nil {
			t.Errorf("failed! unexpected release state: %+v", topic.ReleaseState)
		}
	})

	t.Run("Schedule an unreleased topic", func(t *testing.T) {
		data := marchallObj(t, catalog.ScheduleRelease{At: core.Now().Add(24 * time.Hour)})
		update(t, "/v1/admin/topics/"+topic.ID+"/schedule", data, &topic)
		if topic.Released || topic.ScheduledReleaseTime == nil {
			t.Errorf("failed! unexpected release state: %+v", topic.ReleaseState)
		}
	})

	t.Run("Release module", func(t *testing.T) {
		update(t, "/v1/admin/modules/"+mod.ID+"/release", nil, &mod)
		if !mod.Released {
			t.Errorf("failed! module not released: %+v", mod.ReleaseState)
		}
	})

	t.Run("Release mini question", func(t *testing.T) {
		update(t, "/v1/admin/mini-questions/"+mq.ID+"/release", nil, &mq)
		if !mq.Released {
			t.Errorf("failed! mini question not released: %+v", mq.ReleaseState)
		}
	})

	t.Run("Release: unknown topic", func(t *testing.T) {
		check(t, http.MethodPut, "/v1/admin/topics/lol/release", nil, http.StatusNotFound, notFound)
	})
}

func Test_adminApi_grading(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	mentor := testutil.CreateUser(t, usrRepo, "Mentor", "mentor", "mentor@test.cd", "", []string{user.RoleMentor}, true)
	learner := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleLearner}, true)
	learner2 := testutil.CreateUser(t, usrRepo, "King", "king", "king@test.cd", "", []string{user.RoleLearner}, true)
	coh := testutil.CreateCohort(t, cohortRepo, 1, "Cohort 1", true)
	coh2 := testutil.CreateCohort(t, cohortRepo, 2, "Cohort 2", true)
	testutil.Enroll(t, cohortRepo, learner.ID, coh.ID)
	testutil.Enroll(t, cohortRepo, learner2.ID, coh.ID)

	mod := testutil.CreateModule(t, catalogRepo, coh.ID, 1, "Module 1", true)
	topic := testutil.CreateTopic(t, catalogRepo, coh.ID, mod.ID, 1, "Topic 1", true)
	sec := testutil.CreateSection(t, catalogRepo, topic.ID, 0, "Resources")
	mq := testutil.CreateMiniQuestion(t, catalogRepo, sec.ID, 0, "Mini 1", true)

	ctx := context.Background()
	now := core.Now()
	miniAns, err := progressRepo.CreateMiniAnswer(ctx, progress.MiniAnswer{
		MiniQuestionID: mq.ID, UserID: learner.ID, CohortID: coh.ID, Notes: "done", SubmittedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateMiniAnswer() failed: %v", err)
	}
	ans, err := progressRepo.CreateAnswer(ctx, progress.Answer{
		TopicID: topic.ID, UserID: learner.ID, CohortID: coh.ID, Content: "v1",
		Status: progress.AnswerPending, SubmittedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAnswer() failed: %v", err)
	}
	ans2, err := progressRepo.CreateAnswer(ctx, progress.Answer{
		TopicID: topic.ID, UserID: learner2.ID, CohortID: coh.ID, Content: "mine",
		Status: progress.AnswerPending, SubmittedAt: now.Add(time.Second), UpdatedAt: now.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("CreateAnswer() failed: %v", err)
	}

	adminToken := getToken(t, admin)
	mentorToken := getToken(t, mentor)
	answersPath := "/v1/admin/topics/" + topic.ID + "/answers"
	progressPath := func(userID, cohortID string) string {
		return "/v1/admin/learners/" + userID + "/progress?cohort_id=" + cohortID
	}

	tests := []httpTest{
		{name: "Auth required", path: answersPath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Learner forbidden", path: answersPath, token: getToken(t, learner),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Mentor cannot author", path: "/v1/admin/topics/" + topic.ID, token: mentorToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Topic answers", path: answersPath, token: mentorToken, wantCode: http.StatusOK, wantData: marchallList(t, ans2, ans)},
		{
			name: "Topic answers: status filter", path: answersPath + "?status=approved", token: mentorToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, []progress.Answer{}),
		},
		{
			name: "Topic answers: unknown topic", path: "/v1/admin/topics/lol/answers", token: mentorToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "content not found"}),
		},
		{
			name: "Learner progress", path: progressPath(learner.ID, coh.ID), token: mentorToken, wantCode: http.StatusOK,
			wantData: marchallList(t, progress.TopicProgress{Topic: topic, Status: progress.TopicSubmitted, PrereqsDone: 1, PrereqsTotal: 1, Answer: &ans}),
		},
		{
			name: "Learner progress: enrollment elsewhere grants nothing", path: progressPath(learner.ID, coh2.ID), token: mentorToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, []progress.TopicProgress{}),
		},
		{
			name: "Learner progress: not enrolled", path: progressPath(mentor.ID, coh.ID), token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, []progress.TopicProgress{}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	check := func(t *testing.T, path, token string, data []byte, wantCode int, wantData []byte) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPut, path, token, data)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: wantCode, wantData: wantData}, rec)
	}
	put := func(t *testing.T, path, token string, data []byte, out interface{}) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPut, path, token, data)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
	}

	reqMsg := "this field is required"
	iPtr := func(i int) *int { return &i }
	gradePath := func(id string) string { return "/v1/admin/answers/" + id + "/grade" }

	t.Run("Grade: required fields", func(t *testing.T) {
		check(t, gradePath(ans.ID), mentorToken, nil,
			http.StatusBadRequest, marchallObj(t, gradeErr{Status: reqMsg}))
	})

	t.Run("Grade: invalid status", func(t *testing.T) {
		data := marchallObj(t, progress.GradeAnswer{Status: "lol"})
		check(t, gradePath(ans.ID), mentorToken, data,
			http.StatusBadRequest, marchallObj(t, gradeErr{Status: "status must be one of [approved needs_resubmission]"}))
	})

	t.Run("Grade: negative grade", func(t *testing.T) {
		data := marchallObj(t, progress.GradeAnswer{Status: progress.AnswerApproved, Grade: iPtr(-1)})
		check(t, gradePath(ans.ID), mentorToken, data,
			http.StatusBadRequest, marchallObj(t, gradeErr{Grade: "grade must be 0 or greater"}))
	})

	t.Run("Grade: unknown answer", func(t *testing.T) {
		data := marchallObj(t, progress.GradeAnswer{Status: progress.AnswerApproved})
		check(t, gradePath("lol"), mentorToken, data,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "answer not found"}))
	})

	t.Run("Send back for resubmission", func(t *testing.T) {
		data := marchallObj(t, progress.GradeAnswer{Status: progress.AnswerNeedsResubmission, Grade: iPtr(40), Feedback: "cite your sources"})
		put(t, gradePath(ans.ID), mentorToken, data, &ans)
		if ans.Status != progress.AnswerNeedsResubmission || ans.Grade == nil || *ans.Grade != 40 || ans.Feedback != "cite your sources" {
			t.Errorf("failed! unexpected answer: %+v", ans)
		}
	})

	t.Run("Grade: only pending answers", func(t *testing.T) {
		data := marchallObj(t, progress.GradeAnswer{Status: progress.AnswerApproved})
		check(t, gradePath(ans.ID), mentorToken, data,
			http.StatusBadRequest, marchallObj(t, httpErr{Error: "answer is not awaiting grading"}))
	})

	t.Run("Request resubmission", func(t *testing.T) {
		put(t, "/v1/admin/answers/"+ans.ID+"/request-resubmission", mentorToken, nil, &ans)
		if !ans.ResubmissionRequested || ans.ResubmissionRequestedBy != mentor.ID || ans.ResubmissionRequestedAt == nil {
			t.Errorf("failed! unexpected answer: %+v", ans)
		}
	})

	t.Run("Approve resubmission", func(t *testing.T) {
		put(t, "/v1/admin/answers/"+ans.ID+"/approve-resubmission", adminToken, nil, &ans)
		if !ans.ResubmissionApproved {
			t.Errorf("failed! resubmission not approved: %+v", ans)
		}
	})

	t.Run("Request resubmission: answer not sent back", func(t *testing.T) {
		check(t, "/v1/admin/answers/"+ans2.ID+"/request-resubmission", mentorToken, nil,
			http.StatusBadRequest, marchallObj(t, httpErr{Error: "answer was not sent back for resubmission"}))
	})

	t.Run("Approve resubmission: unknown answer", func(t *testing.T) {
		check(t, "/v1/admin/answers/lol/approve-resubmission", mentorToken, nil,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "answer not found"}))
	})

	t.Run("Approve", func(t *testing.T) {
		data := marchallObj(t, progress.GradeAnswer{Status: progress.AnswerApproved, Grade: iPtr(90)})
		put(t, gradePath(ans2.ID), adminToken, data, &ans2)
		if ans2.Status != progress.AnswerApproved || ans2.Grade == nil || *ans2.Grade != 90 {
			t.Errorf("failed! unexpected answer: %+v", ans2)
		}
	})

	t.Run("Mini answer resubmission", func(t *testing.T) {
		put(t, "/v1/admin/mini-answers/"+miniAns.ID+"/request-resubmission", mentorToken, nil, &miniAns)
		if !miniAns.ResubmissionRequested || miniAns.ResubmissionRequestedBy != mentor.ID {
			t.Errorf("failed! unexpected mini answer: %+v", miniAns)
		}
	})

	t.Run("Mini answer resubmission: unknown", func(t *testing.T) {
		check(t, "/v1/admin/mini-answers/lol/request-resubmission", mentorToken, nil,
			http.StatusNotFound, marchallObj(t, httpErr{Error: "mini answer not found"}))
	})
}
