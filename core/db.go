package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// DBExecutor is the query surface repositories run against. Both *sqlx.DB and
// *sqlx.Tx satisfy it, so a service can hand a repository method a transaction
// via the trailing `exec ...DBExecutor` parameter those methods accept.
type DBExecutor interface {
	sqlx.ExtContext

	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ DBExecutor = (*sqlx.DB)(nil)
	_ DBExecutor = (*sqlx.Tx)(nil)
)

// DBOrdering is an ORDER BY clause element.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
