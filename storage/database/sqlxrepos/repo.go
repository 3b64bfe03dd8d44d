// Package sqlxrepos implements the domain repositories on Postgres, mapping rows with sqlx.
// Repositories run on their own executor unless the service hands one (a transaction) down.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/shule/backend/core"
)

const (
	uniqueViolation = "23505"
	invalidTextRepr = "22P02" // e.g. a malformed uuid
)

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func newID() string {
	return uuid.New().String()
}

func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// sqlxIn expands the slice args of `IN (?)` clauses.
func sqlxIn(query string, args ...interface{}) (string, []interface{}, error) {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding IN clause")
	}
	return q, expanded, nil
}

// wrapGet returns notFound as is and wraps any other error.
func wrapGet(err, notFound error, msg string) error {
	if errors.Cause(err) == notFound {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// get scans the first row of the query into dest, returning notFound when there is none.
func get(ctx context.Context, exec core.DBExecutor, dest interface{}, notFound error, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		if isInvalidText(err) {
			return notFound
		}
		return err
	}
	defer func() { _ = rows.Close() }()

	r := &sqlx.Rows{Rows: rows, Mapper: mapper}
	if !r.Next() {
		if err = r.Err(); err != nil {
			return err
		}
		return notFound
	}
	return r.StructScan(dest)
}

// selectAll scans every row of the query into dest, a pointer to a slice.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// namedExec runs a query with `:field` bind vars taken from arg's db tags.
func namedExec(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (sql.Result, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "binding named query")
	}
	return exec.ExecContext(ctx, rebind(q), args...)
}

// namedUpdate is namedExec reporting notFound when no row was touched.
func namedUpdate(ctx context.Context, exec core.DBExecutor, notFound error, query string, arg interface{}) error {
	res, err := namedExec(ctx, exec, query, arg)
	if err != nil {
		return err
	}
	return checkAffected(res, notFound)
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func deleteByID(ctx context.Context, exec core.DBExecutor, table, id string, notFound error) error {
	res, err := exec.ExecContext(ctx, `DELETE FROM `+table+` WHERE id::text = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	return checkAffected(res, notFound)
}

func exists(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var found bool
	err := exec.QueryRowContext(ctx, rebind("SELECT EXISTS ("+query+")"), args...).Scan(&found)
	return found, err
}

func isInvalidText(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == invalidTextRepr
}

// trapUniqueViolation maps a unique-index violation to a ConflictError on the constraint's field.
// fields maps constraint names to API field names.
func trapUniqueViolation(err error, entity string, fields map[string]string) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		field := fields[pqErr.Constraint]
		msg := "this record already exists"
		if field != "" {
			msg = "a record with this " + strings.ReplaceAll(field, "_", " ") + " already exists"
		}
		return core.NewConflictError(entity, "", field, msg)
	}
	return err
}

// where accumulates `?` conditions, rebound to `$n` when the query is run.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in adds `col IN (...)`; values must be a non-empty slice.
func (w *where) in(col string, values interface{}) error {
	cond, args, err := sqlxIn(col+" IN (?)", values)
	if err != nil {
		return err
	}
	w.add(cond, args...)
	return nil
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
