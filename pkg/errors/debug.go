package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// StoreError is what the database driver said about a failed statement.
type StoreError struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Extended   string `json:"extended_code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump is the log-only view of a failure. It never reaches clients.
type ErrorDump struct {
	TopMessage string      `json:"top_message"`
	Code       Code        `json:"code,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
	Chain      []string    `json:"chain,omitempty"`
	Store      *StoreError `json:"store,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Chain: chain(err), Store: storeError(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}
	return d
}

// Fields flattens the dump into log fields, omitting empty driver values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error_code":  d.Code,
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	if d.Store == nil {
		return fields
	}
	fields["db_driver"] = d.Store.Driver
	for key, val := range map[string]string{
		"db_code":          d.Store.Code,
		"db_extended_code": d.Store.Extended,
		"db_constraint":    d.Store.Constraint,
		"db_table":         d.Store.Table,
		"db_column":        d.Store.Column,
		"db_detail":        d.Store.Detail,
		"db_message":       d.Store.Message,
	} {
		if val != "" {
			fields[key] = val
		}
	}
	return fields
}

// chain lists every error in the tree depth-first, following both single
// and multi-%w wrapping.
func chain(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		out = append(out, fmt.Sprintf("%T: %v", e, e))
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

func storeError(err error) *StoreError {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &StoreError{
			Driver:     "pgx",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &StoreError{
			Driver:     "pq",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	// Dev and test runs use SQLite; locking and constraint failures show up here.
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return &StoreError{
			Driver:   "sqlite3",
			Code:     strconv.Itoa(int(liteErr.Code)),
			Extended: strconv.Itoa(int(liteErr.ExtendedCode)),
			Message:  liteErr.Error(),
		}
	}
	return nil
}
