package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/cohort"
)

type cohortRepository struct {
	cohorts     *cohortTable
	memberships *membershipTable
}

var _ cohort.Repository = (*cohortRepository)(nil) // interface compliance check

func NewCohortRepository(db *DB) *cohortRepository {
	return &cohortRepository{cohorts: db.cohort, memberships: db.membership}
}

func (repo *cohortRepository) queryCohorts() []cohort.Cohort {
	cohorts := make([]cohort.Cohort, 0, len(repo.cohorts.table))
	for _, c := range repo.cohorts.table {
		cohorts = append(cohorts, *c)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].Number < cohorts[j].Number })
	return cohorts
}

// queryMemberships copies rows out, most recently joined first.
func (repo *cohortRepository) queryMemberships() []cohort.Membership {
	members := make([]cohort.Membership, 0, len(repo.memberships.table))
	for _, m := range repo.memberships.table {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ID > members[j].ID
		}
		return members[i].JoinedAt.After(members[j].JoinedAt)
	})
	return members
}

func (repo *cohortRepository) CreateCohort(ctx context.Context, c cohort.Cohort, exec ...core.DBExecutor) (cohort.Cohort, error) {
	repo.cohorts.Lock()
	defer repo.cohorts.Unlock()

	for _, existing := range repo.cohorts.table {
		if existing.Number == c.Number {
			return cohort.Cohort{}, cohort.ErrCohortExists
		}
	}

	c.ID = uuid.New().String()
	repo.cohorts.table[c.ID] = &c
	return c, nil
}

func (repo *cohortRepository) GetCohort(ctx context.Context, filter cohort.GetFilter, exec ...core.DBExecutor) (cohort.Cohort, error) {
	repo.cohorts.RLock()
	defer repo.cohorts.RUnlock()

	switch {
	case filter.ID != "":
		if c, ok := repo.cohorts.table[filter.ID]; ok {
			return *c, nil
		}
	case filter.Number != 0:
		for _, c := range repo.cohorts.table {
			if c.Number == filter.Number {
				return *c, nil
			}
		}
	}
	return cohort.Cohort{}, cohort.ErrNotFound
}

func (repo *cohortRepository) QueryCohorts(ctx context.Context, filter *cohort.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]cohort.Cohort, error) {
	repo.cohorts.RLock()
	defer repo.cohorts.RUnlock()

	cohorts := repo.queryCohorts()
	if filter == nil {
		return cohorts, nil
	}

	if filter.Search != "" {
		keyword := strings.ToLower(filter.Search)
		var filtered []cohort.Cohort
		for _, c := range cohorts {
			if strings.Contains(strings.ToLower(c.Name), keyword) {
				filtered = append(filtered, c)
			}
		}
		cohorts = filtered
	}
	if filter.IsActive != nil {
		var filtered []cohort.Cohort
		for _, c := range cohorts {
			if c.IsActive == *filter.IsActive {
				filtered = append(filtered, c)
			}
		}
		cohorts = filtered
	}

	return cohorts, nil
}

func (repo *cohortRepository) UpdateCohort(ctx context.Context, c cohort.Cohort, exec ...core.DBExecutor) (cohort.Cohort, error) {
	repo.cohorts.Lock()
	defer repo.cohorts.Unlock()

	if _, ok := repo.cohorts.table[c.ID]; !ok {
		return cohort.Cohort{}, cohort.ErrNotFound
	}
	repo.cohorts.table[c.ID] = &c
	return c, nil
}

func (repo *cohortRepository) CreateMembership(ctx context.Context, m cohort.Membership, exec ...core.DBExecutor) (cohort.Membership, error) {
	repo.memberships.Lock()
	defer repo.memberships.Unlock()

	for _, existing := range repo.memberships.table {
		if existing.UserID == m.UserID && existing.CohortID == m.CohortID {
			return cohort.Membership{}, cohort.ErrAlreadyEnrolled
		}
	}

	m.ID = uuid.New().String()
	repo.memberships.table[m.ID] = &m
	return m, nil
}

func (repo *cohortRepository) QueryMemberships(ctx context.Context, filter *cohort.MembershipFilter, exec ...core.DBExecutor) ([]cohort.Membership, error) {
	repo.memberships.RLock()
	defer repo.memberships.RUnlock()

	members := repo.queryMemberships()
	if filter == nil {
		return members, nil
	}

	if filter.UserID != "" {
		var filtered []cohort.Membership
		for _, m := range members {
			if m.UserID == filter.UserID {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}
	if filter.CohortID != "" {
		var filtered []cohort.Membership
		for _, m := range members {
			if m.CohortID == filter.CohortID {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}
	if filter.Status != "" {
		var filtered []cohort.Membership
		for _, m := range members {
			if m.Status == filter.Status {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}

	return members, nil
}

func (repo *cohortRepository) UpdateMembership(ctx context.Context, m cohort.Membership, exec ...core.DBExecutor) (cohort.Membership, error) {
	repo.memberships.Lock()
	defer repo.memberships.Unlock()

	if _, ok := repo.memberships.table[m.ID]; !ok {
		return cohort.Membership{}, cohort.ErrMembershipNotFound
	}
	repo.memberships.table[m.ID] = &m
	return m, nil
}

// UpdateMembershipStatuses demotes all ids under one lock, mirroring the
// single-statement semantics of the sql implementation.
func (repo *cohortRepository) UpdateMembershipStatuses(ctx context.Context, ids []string, status cohort.MembershipStatus, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	repo.memberships.Lock()
	defer repo.memberships.Unlock()

	now := core.Now()
	var n int
	for _, id := range ids {
		if m, ok := repo.memberships.table[id]; ok {
			m.Status = status
			m.UpdatedAt = now
			n++
		}
	}
	return n, nil
}
