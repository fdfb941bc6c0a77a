package cohort

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/darasa/core"
)

// Membership statuses
const (
	StatusEnrolled  MembershipStatus = "enrolled"
	StatusGraduated MembershipStatus = "graduated"
	StatusRemoved   MembershipStatus = "removed"
	StatusSuspended MembershipStatus = "suspended"
)

type MembershipStatus string

type Cohort struct {
	ID        string     `json:"id"`
	Number    int        `json:"number"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"is_active"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

// Membership ties a user to a cohort. A user has at most one enrolled
// membership at a time; it is the source of truth for the user's cohort.
type Membership struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	CohortID  string           `json:"cohort_id"`
	Status    MembershipStatus `json:"status"`
	JoinedAt  time.Time        `json:"joined_at"`  // UTC
	UpdatedAt time.Time        `json:"updated_at"` // UTC
}

// GuardCohort rejects a target entity that lives outside the member's cohort.
func (m Membership) GuardCohort(cohortID string) error {
	if m.CohortID != cohortID {
		return ErrCrossCohort
	}
	return nil
}

// NewCohort contains information needed to create a new Cohort.
type NewCohort struct {
	Number    int       `json:"number" validate:"required,min=1"`
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date" validate:"omitempty,gtfield=StartDate"`
}

func (nc *NewCohort) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// UpdateCohort defines what information may be provided to modify an existing Cohort.
type UpdateCohort struct {
	Name      string    `json:"name"`
	IsActive  *bool     `json:"is_active"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date" validate:"omitempty,gtfield=StartDate"`
}

func (uc *UpdateCohort) Validate(orig Cohort, validate *validator.Validate) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	return validate.Struct(uc)
}

// NewMembership contains information needed to enroll a user into a cohort.
type NewMembership struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

func (nm *NewMembership) Validate(validate *validator.Validate) error {
	nm.UserID = core.CleanString(nm.UserID)
	return validate.Struct(nm)
}

// UpdateMembership changes a member's status within a cohort.
type UpdateMembership struct {
	Status MembershipStatus `json:"status" validate:"required,oneof=enrolled graduated removed suspended"`
}

func (um UpdateMembership) Validate(validate *validator.Validate) error {
	return validate.Struct(um)
}

// GetFilter looks a Cohort up by one of its unique fields.
type GetFilter struct {
	ID     string
	Number int
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// MembershipFilter narrows membership queries; zero fields are ignored.
type MembershipFilter struct {
	UserID   string
	CohortID string
	Status   MembershipStatus
}

// EnrollmentRepair describes one user's duplicate-enrollment fix: the most
// recently joined membership is kept enrolled, the rest are demoted.
type EnrollmentRepair struct {
	UserID     string   `json:"user_id"`
	KeptID     string   `json:"kept_id"`
	DemotedIDs []string `json:"demoted_ids"`
}
