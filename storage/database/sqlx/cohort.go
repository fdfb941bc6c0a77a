package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/cohort"
)

type cohortRow struct {
	ID        string    `db:"id"`
	Number    int       `db:"number"`
	Name      string    `db:"name"`
	IsActive  bool      `db:"is_active"`
	StartDate null.Time `db:"start_date"`
	EndDate   null.Time `db:"end_date"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// columns clients may order cohort queries by
var cohortOrderFields = map[string]bool{
	"number":     true,
	"name":       true,
	"is_active":  true,
	"start_date": true,
	"end_date":   true,
	"created_at": true,
}

func (r cohortRow) unpack() cohort.Cohort {
	return cohort.Cohort{
		ID:        r.ID,
		Number:    r.Number,
		Name:      r.Name,
		IsActive:  r.IsActive,
		StartDate: r.StartDate.Ptr(),
		EndDate:   r.EndDate.Ptr(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func packCohort(c cohort.Cohort) cohortRow {
	return cohortRow{
		ID:        c.ID,
		Number:    c.Number,
		Name:      c.Name,
		IsActive:  c.IsActive,
		StartDate: null.TimeFromPtr(c.StartDate),
		EndDate:   null.TimeFromPtr(c.EndDate),
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

type membershipRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CohortID  string    `db:"cohort_id"`
	Status    string    `db:"status"`
	JoinedAt  time.Time `db:"joined_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r membershipRow) unpack() cohort.Membership {
	return cohort.Membership{
		ID:        r.ID,
		UserID:    r.UserID,
		CohortID:  r.CohortID,
		Status:    cohort.MembershipStatus(r.Status),
		JoinedAt:  r.JoinedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func packMembership(m cohort.Membership) membershipRow {
	return membershipRow{
		ID:        m.ID,
		UserID:    m.UserID,
		CohortID:  m.CohortID,
		Status:    string(m.Status),
		JoinedAt:  m.JoinedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type cohortRepository struct {
	exec core.DBExecutor
}

var _ cohort.Repository = (*cohortRepository)(nil) // interface compliance check

func NewCohortRepository(exec core.DBExecutor) *cohortRepository {
	return &cohortRepository{exec: exec}
}

func (repo cohortRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo cohortRepository) CreateCohort(ctx context.Context, c cohort.Cohort, exec ...core.DBExecutor) (cohort.Cohort, error) {
	c.ID = uuid.New().String()
	row := packCohort(c)

	query := `INSERT INTO cohort (id, number, name, is_active, start_date, end_date, created_at, updated_at)
VALUES (:id, :number, :name, :is_active, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		if isUniqueViolation(err) {
			return cohort.Cohort{}, cohort.ErrCohortExists
		}
		return cohort.Cohort{}, errors.Wrap(err, "inserting cohort")
	}
	return row.unpack(), nil
}

func (repo cohortRepository) GetCohort(ctx context.Context, filter cohort.GetFilter, exec ...core.DBExecutor) (cohort.Cohort, error) {
	exe := repo.getExec(exec)

	var row cohortRow
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return cohort.Cohort{}, cohort.ErrNotFound
		}
		err = exe.GetContext(ctx, &row, exe.Rebind(`SELECT * FROM cohort WHERE id = ?`), filter.ID)
	case filter.Number != 0:
		err = exe.GetContext(ctx, &row, exe.Rebind(`SELECT * FROM cohort WHERE number = ?`), filter.Number)
	default:
		return cohort.Cohort{}, cohort.ErrNotFound
	}

	if err != nil {
		return cohort.Cohort{}, trapNoRowsErr(err, cohort.ErrNotFound, "finding cohort")
	}
	return row.unpack(), nil
}

func (repo cohortRepository) QueryCohorts(ctx context.Context, filter *cohort.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]cohort.Cohort, error) {
	exe := repo.getExec(exec)

	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			conds = append(conds, `(name ILIKE ? OR number::text = ?)`)
			args = append(args, "%"+filter.Search+"%", filter.Search)
		}
		if filter.IsActive != nil {
			conds = append(conds, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
	}

	query := `SELECT * FROM cohort`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering, cohortOrderFields, `number ASC`)

	var rows []cohortRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying cohorts")
	}

	cohorts := make([]cohort.Cohort, 0, len(rows))
	for _, row := range rows {
		cohorts = append(cohorts, row.unpack())
	}
	return cohorts, nil
}

func (repo cohortRepository) UpdateCohort(ctx context.Context, c cohort.Cohort, exec ...core.DBExecutor) (cohort.Cohort, error) {
	row := packCohort(c)

	query := `UPDATE cohort
SET name = :name, is_active = :is_active, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row)
	if err != nil {
		return cohort.Cohort{}, errors.Wrap(err, "updating cohort")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cohort.Cohort{}, cohort.ErrNotFound
	}
	return row.unpack(), nil
}

func (repo cohortRepository) CreateMembership(ctx context.Context, m cohort.Membership, exec ...core.DBExecutor) (cohort.Membership, error) {
	m.ID = uuid.New().String()
	row := packMembership(m)

	query := `INSERT INTO cohort_membership (id, user_id, cohort_id, status, joined_at, updated_at)
VALUES (:id, :user_id, :cohort_id, :status, :joined_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		if isUniqueViolation(err) {
			return cohort.Membership{}, cohort.ErrAlreadyEnrolled
		}
		return cohort.Membership{}, errors.Wrap(err, "inserting membership")
	}
	return row.unpack(), nil
}

func (repo cohortRepository) QueryMemberships(ctx context.Context, filter *cohort.MembershipFilter, exec ...core.DBExecutor) ([]cohort.Membership, error) {
	exe := repo.getExec(exec)

	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.UserID != "" {
			conds = append(conds, `user_id = ?`)
			args = append(args, filter.UserID)
		}
		if filter.CohortID != "" {
			conds = append(conds, `cohort_id = ?`)
			args = append(args, filter.CohortID)
		}
		if filter.Status != "" {
			conds = append(conds, `status = ?`)
			args = append(args, string(filter.Status))
		}
	}

	query := `SELECT * FROM cohort_membership`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY joined_at DESC, id DESC`

	var rows []membershipRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}

	members := make([]cohort.Membership, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.unpack())
	}
	return members, nil
}

func (repo cohortRepository) UpdateMembership(ctx context.Context, m cohort.Membership, exec ...core.DBExecutor) (cohort.Membership, error) {
	row := packMembership(m)

	query := `UPDATE cohort_membership SET status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row)
	if err != nil {
		return cohort.Membership{}, errors.Wrap(err, "updating membership")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cohort.Membership{}, cohort.ErrMembershipNotFound
	}
	return row.unpack(), nil
}

func (repo cohortRepository) UpdateMembershipStatuses(ctx context.Context, ids []string, status cohort.MembershipStatus, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	exe := repo.getExec(exec)

	query, args, err := sqlx.In(
		`UPDATE cohort_membership SET status = ?, updated_at = ? WHERE id IN (?)`,
		string(status), core.Now(), ids,
	)
	if err != nil {
		return 0, errors.Wrap(err, "expanding ids")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "updating membership statuses")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting updated memberships")
	}
	return int(n), nil
}
