package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/darasa/core"
)

// ReleaseState is the release shape shared by Module, Topic and MiniQuestion.
// Released is the raw flag; effective visibility also walks the ancestor chain
// (see cascade.go). ScheduledReleaseTime arms the release clock; a scheduled
// time in the future of a released row arms the clock's correction pass.
type ReleaseState struct {
	Released             bool       `json:"released"`
	ScheduledReleaseTime *time.Time `json:"scheduled_release_time,omitempty"`
	ActualReleaseTime    *time.Time `json:"actual_release_time,omitempty"`
}

// Release marks the entity released now. Manual intent: drops any pending
// schedule so the correction pass cannot fight it.
func (rs *ReleaseState) Release(now time.Time) {
	rs.Released = true
	rs.ActualReleaseTime = &now
	rs.ScheduledReleaseTime = nil
}

// Unrelease retracts the entity and clears both timestamps.
func (rs *ReleaseState) Unrelease() {
	rs.Released = false
	rs.ActualReleaseTime = nil
	rs.ScheduledReleaseTime = nil
}

// Schedule arms timed release (or retraction, if currently released) at t.
func (rs *ReleaseState) Schedule(t time.Time) {
	rs.ScheduledReleaseTime = &t
}

// DueAt reports whether the release clock should release the row at now.
// Mirrors the repository eligibility scan; the parent gate is separate.
func (rs ReleaseState) DueAt(now time.Time) bool {
	return !rs.Released && rs.ScheduledReleaseTime != nil && !rs.ScheduledReleaseTime.After(now)
}

// RetractableAt reports whether the correction pass should retract the row at now.
func (rs ReleaseState) RetractableAt(now time.Time) bool {
	return rs.Released && rs.ScheduledReleaseTime != nil && rs.ScheduledReleaseTime.After(now)
}

type Module struct {
	ID       string `json:"id"`
	CohortID string `json:"cohort_id"`
	Number   int    `json:"number"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	ReleaseState
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Topic is a cohort's main unit of work ("question"). ModuleID may be empty:
// such a topic hangs directly off the cohort.
type Topic struct {
	ID       string `json:"id"`
	CohortID string `json:"cohort_id"`
	ModuleID string `json:"module_id,omitempty"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	IsActive bool   `json:"is_active"`
	ReleaseState
	Deadline    *time.Time `json:"deadline,omitempty"`
	Points      int        `json:"points"`
	BonusPoints int        `json:"bonus_points"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// Section is a block of self-learning content under a Topic. Sections carry no
// release flag of their own; they are visible whenever their Topic is.
type Section struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topic_id"`
	Index     int       `json:"index"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// MiniQuestion is a prerequisite exercise under a Section; answering all of a
// Topic's visible mini questions unlocks its main answer.
type MiniQuestion struct {
	ID        string `json:"id"`
	SectionID string `json:"section_id"`
	Index     int    `json:"index"`
	Prompt    string `json:"prompt"`
	IsActive  bool   `json:"is_active"`
	ReleaseState
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Content is a cohort's fully loaded content tree.
type Content struct {
	Modules       []Module       `json:"modules"`
	Topics        []Topic        `json:"topics"`
	Sections      []Section      `json:"sections"`
	MiniQuestions []MiniQuestion `json:"mini_questions"`
}

// ModuleByID returns the module with the given ID, or nil.
func (c Content) ModuleByID(id string) *Module {
	for i := range c.Modules {
		if c.Modules[i].ID == id {
			return &c.Modules[i]
		}
	}
	return nil
}

// NewModule contains information needed to create a new Module.
type NewModule struct {
	CohortID string `json:"cohort_id" validate:"required,uuid4"`
	Number   int    `json:"number" validate:"required,min=1"`
	Name     string `json:"name" validate:"required"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	return validate.Struct(nm)
}

// UpdateModule defines what information may be provided to modify an existing Module.
type UpdateModule struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}

func (um *UpdateModule) Validate(orig Module, validate *validator.Validate) error {
	name := core.CleanString(um.Name)
	if name != "" {
		um.Name = name
	} else {
		um.Name = orig.Name
	}
	return validate.Struct(um)
}

// NewTopic contains information needed to create a new Topic.
type NewTopic struct {
	CohortID    string    `json:"cohort_id" validate:"required,uuid4"`
	ModuleID    string    `json:"module_id" validate:"omitempty,uuid4"`
	Number      int       `json:"number" validate:"required,min=1"`
	Title       string    `json:"title" validate:"required"`
	Body        string    `json:"body"`
	Deadline    time.Time `json:"deadline" validate:"futuretime"`
	Points      int       `json:"points" validate:"min=0"`
	BonusPoints int       `json:"bonus_points" validate:"min=0"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

// UpdateTopic defines what information may be provided to modify an existing Topic.
type UpdateTopic struct {
	Title       string    `json:"title"`
	Body        *string   `json:"body"`
	IsActive    *bool     `json:"is_active"`
	Deadline    time.Time `json:"deadline" validate:"futuretime"`
	Points      *int      `json:"points" validate:"omitempty,min=0"`
	BonusPoints *int      `json:"bonus_points" validate:"omitempty,min=0"`
}

func (ut *UpdateTopic) Validate(orig Topic, validate *validator.Validate) error {
	title := core.CleanString(ut.Title)
	if title != "" {
		ut.Title = title
	} else {
		ut.Title = orig.Title
	}
	return validate.Struct(ut)
}

// NewSection contains information needed to create a new Section.
type NewSection struct {
	TopicID string `json:"topic_id" validate:"required,uuid4"`
	Index   int    `json:"index" validate:"min=0"`
	Title   string `json:"title" validate:"required"`
	Body    string `json:"body"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	return validate.Struct(ns)
}

// NewMiniQuestion contains information needed to create a new MiniQuestion.
type NewMiniQuestion struct {
	SectionID string `json:"section_id" validate:"required,uuid4"`
	Index     int    `json:"index" validate:"min=0"`
	Prompt    string `json:"prompt" validate:"required"`
}

func (nq *NewMiniQuestion) Validate(validate *validator.Validate) error {
	nq.Prompt = core.CleanString(nq.Prompt)
	return validate.Struct(nq)
}

// ScheduleRelease arms timed release of an entity.
type ScheduleRelease struct {
	At time.Time `json:"at" validate:"required,futuretime"`
}

func (sr ScheduleRelease) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}
