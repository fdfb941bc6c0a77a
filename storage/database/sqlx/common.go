// Package sqlxrepos implements the domain repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/friendsofgo/errors"
	"github.com/lib/pq"

	"github.com/mwalimu/darasa/core"
)

// trapNoRowsErr maps psql "no rows" err to the domain's not-found err
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// orderBy renders an ORDER BY clause from client-supplied orderings. Fields
// outside the table's allow-list are dropped, never interpolated: ordering
// names come straight off the query string.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, dflt string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return ` ORDER BY ` + dflt
	}
	return ` ORDER BY ` + strings.Join(clauses, ", ")
}
