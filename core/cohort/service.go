package cohort

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/mwalimu/darasa/core"
)

var (
	// errors
	ErrNotFound            = errors.New("cohort not found")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrCohortExists        = errors.New("a cohort with this number already exists")
	ErrNotEnrolled         = errors.New("user is not enrolled in any cohort")
	ErrAlreadyEnrolled     = errors.New("user is already enrolled in a cohort")
	ErrMultipleEnrollments = errors.New("user has more than one enrolled membership")
	ErrCrossCohort         = errors.New("target belongs to a different cohort")
)

type (
	Repository interface {
		CreateCohort(ctx context.Context, c Cohort, exec ...core.DBExecutor) (Cohort, error)
		GetCohort(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Cohort, error)
		QueryCohorts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Cohort, error)
		UpdateCohort(ctx context.Context, c Cohort, exec ...core.DBExecutor) (Cohort, error)

		CreateMembership(ctx context.Context, m Membership, exec ...core.DBExecutor) (Membership, error)
		QueryMemberships(ctx context.Context, filter *MembershipFilter, exec ...core.DBExecutor) ([]Membership, error)
		UpdateMembership(ctx context.Context, m Membership, exec ...core.DBExecutor) (Membership, error)
		// UpdateMembershipStatuses sets status on all ids in a single statement.
		UpdateMembershipStatuses(ctx context.Context, ids []string, status MembershipStatus, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewCohort) (Cohort, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Cohort, error)
		GetByID(ctx context.Context, id string) (Cohort, error)
		Update(ctx context.Context, id string, uc UpdateCohort) (Cohort, error)

		Enroll(ctx context.Context, userID, cohortID string) (Membership, error)
		QueryMemberships(ctx context.Context, filter *MembershipFilter) ([]Membership, error)
		UpdateMemberStatus(ctx context.Context, cohortID, userID string, status MembershipStatus) (Membership, error)

		// ResolveMembership returns the caller's single enrolled membership,
		// the cohort context every learner-facing operation is scoped by.
		ResolveMembership(ctx context.Context, userID string) (Membership, error)

		RepairEnrollments(ctx context.Context) ([]EnrollmentRepair, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nc NewCohort) (Cohort, error) {
	if _, err := svc.repo.GetCohort(ctx, GetFilter{Number: nc.Number}); err == nil {
		return Cohort{}, core.NewValidationError(ErrCohortExists, core.FieldError{Field: "number", Error: ErrCohortExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Cohort{}, err
	}

	now := core.Now()
	c := Cohort{
		Number:    nc.Number,
		Name:      nc.Name,
		IsActive:  true,
		StartDate: core.TimePtr(nc.StartDate),
		EndDate:   core.TimePtr(nc.EndDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateCohort(ctx, c)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Cohort, error) {
	return svc.repo.QueryCohorts(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Cohort, error) {
	return svc.repo.GetCohort(ctx, GetFilter{ID: id})
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCohort) (Cohort, error) {
	c, err := svc.repo.GetCohort(ctx, GetFilter{ID: id})
	if err != nil {
		return Cohort{}, err
	}

	if name := core.CleanString(uc.Name); name != "" {
		c.Name = name
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
	if !uc.StartDate.IsZero() {
		c.StartDate = core.TimePtr(uc.StartDate)
	}
	if !uc.EndDate.IsZero() {
		c.EndDate = core.TimePtr(uc.EndDate)
	}
	c.UpdatedAt = core.Now()

	return svc.repo.UpdateCohort(ctx, c)
}

func (svc *service) Enroll(ctx context.Context, userID, cohortID string) (Membership, error) {
	if _, err := svc.repo.GetCohort(ctx, GetFilter{ID: cohortID}); err != nil {
		return Membership{}, err
	}

	enrolled, err := svc.repo.QueryMemberships(ctx, &MembershipFilter{UserID: userID, Status: StatusEnrolled})
	if err != nil {
		return Membership{}, errors.Wrap(err, "querying enrolled memberships")
	}
	if len(enrolled) > 0 {
		return Membership{}, ErrAlreadyEnrolled
	}

	now := core.Now()
	m := Membership{
		UserID:    userID,
		CohortID:  cohortID,
		Status:    StatusEnrolled,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	return svc.repo.CreateMembership(ctx, m)
}

func (svc *service) QueryMemberships(ctx context.Context, filter *MembershipFilter) ([]Membership, error) {
	return svc.repo.QueryMemberships(ctx, filter)
}

func (svc *service) UpdateMemberStatus(ctx context.Context, cohortID, userID string, status MembershipStatus) (Membership, error) {
	members, err := svc.repo.QueryMemberships(ctx, &MembershipFilter{UserID: userID, CohortID: cohortID})
	if err != nil {
		return Membership{}, errors.Wrap(err, "querying memberships")
	}
	if len(members) == 0 {
		return Membership{}, ErrMembershipNotFound
	}

	m := members[0]
	m.Status = status
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateMembership(ctx, m)
}

func (svc *service) ResolveMembership(ctx context.Context, userID string) (Membership, error) {
	enrolled, err := svc.repo.QueryMemberships(ctx, &MembershipFilter{UserID: userID, Status: StatusEnrolled})
	if err != nil {
		return Membership{}, errors.Wrap(err, "querying enrolled memberships")
	}
	switch len(enrolled) {
	case 0:
		return Membership{}, ErrNotEnrolled
	case 1:
		return enrolled[0], nil
	default:
		return Membership{}, ErrMultipleEnrollments
	}
}

// RepairEnrollments finds users holding more than one enrolled membership and,
// per user, keeps the most recently joined one and demotes the rest to removed.
// Each user's demotion is a single atomic statement.
func (svc *service) RepairEnrollments(ctx context.Context) ([]EnrollmentRepair, error) {
	enrolled, err := svc.repo.QueryMemberships(ctx, &MembershipFilter{Status: StatusEnrolled})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled memberships")
	}

	byUser := make(map[string][]Membership)
	for _, m := range enrolled {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}

	// deterministic run order
	userIDs := make([]string, 0, len(byUser))
	for userID, members := range byUser {
		if len(members) > 1 {
			userIDs = append(userIDs, userID)
		}
	}
	sort.Strings(userIDs)

	var repairs []EnrollmentRepair
	for _, userID := range userIDs {
		members := byUser[userID]
		// most recently joined first; ID breaks JoinedAt ties
		sort.Slice(members, func(i, j int) bool {
			if members[i].JoinedAt.Equal(members[j].JoinedAt) {
				return members[i].ID > members[j].ID
			}
			return members[i].JoinedAt.After(members[j].JoinedAt)
		})

		demoted := make([]string, 0, len(members)-1)
		for _, m := range members[1:] {
			demoted = append(demoted, m.ID)
		}
		if _, err = svc.repo.UpdateMembershipStatuses(ctx, demoted, StatusRemoved); err != nil {
			return repairs, errors.Wrapf(err, "demoting memberships of user %s", userID)
		}
		repairs = append(repairs, EnrollmentRepair{
			UserID:     userID,
			KeptID:     members[0].ID,
			DemotedIDs: demoted,
		})
	}
	return repairs, nil
}
