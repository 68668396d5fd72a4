// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

const uniqueViolation = "23505"

// getExec returns the executor handed by the caller (e.g. a transaction) or the repository's own.
func getExec(db core.DB, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return db
}

// inTx runs fn in a transaction. A caller-provided executor is assumed to be a transaction
// owned by the caller and is used as is.
func inTx(ctx context.Context, db core.DB, svcExec []core.DBExecutor, fn func(exec core.DBExecutor) error) error {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return fn(svcExec[0])
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// trapNoRowsErr maps the "no rows" error to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

// where accumulates AND-ed conditions with positional ($n) arguments.
type where struct {
	conds []string
	args  []interface{}
}

// add appends cond, whose %d verbs are replaced by the positions of args.
func (w *where) add(cond string, args ...interface{}) {
	pos := make([]interface{}, 0, len(args))
	for _, arg := range args {
		w.args = append(w.args, arg)
		pos = append(pos, len(w.args))
	}
	w.conds = append(w.conds, fmt.Sprintf(cond, pos...))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
