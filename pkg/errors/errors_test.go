package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	want := map[Code]Metadata{
		CodeValidation:             {http.StatusBadRequest, false, "validation failed", true},
		CodeUnauthorized:           {http.StatusUnauthorized, false, "authentication required", false},
		CodeForbidden:              {http.StatusForbidden, false, "access denied", false},
		CodeNotFound:               {http.StatusNotFound, false, "resource not found", false},
		CodeConflict:               {http.StatusConflict, false, "conflict detected", false},
		CodeStateConflict:          {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
		CodeInternal:               {http.StatusInternalServerError, true, "internal server error", false},
		CodeDependency:             {http.StatusServiceUnavailable, true, "dependency unavailable", true},
		CodeDuplicateKey:           {http.StatusConflict, false, "record already exists", true},
		CodeDuplicateTransaction:   {http.StatusConflict, false, "transaction number already recorded", true},
		CodeInsufficientStock:      {http.StatusConflict, false, "insufficient stock", true},
		CodeConcurrentModification: {http.StatusConflict, true, "record was modified concurrently", true},
		CodeLockedRecord:           {http.StatusLocked, false, "record can no longer be edited", true},
		CodeCodeGeneration:         {http.StatusInternalServerError, false, "could not allocate a unique code", false},
		CodeTimeout:                {http.StatusGatewayTimeout, true, "operation timed out", false},
	}
	for code, meta := range want {
		assert.Equal(t, meta, MetadataFor(code), "code %s", code)
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestErrorAccessors(t *testing.T) {
	base := New(CodeValidation, "missing amount")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing amount", base.Message())
	assert.Equal(t, "VALIDATION_ERROR: missing amount", base.Error())
	assert.Nil(t, base.Details())

	detailed := base.WithDetails(map[string]any{"field": "amount"})
	assert.Equal(t, map[string]any{"field": "amount"}, detailed.Details())
	assert.Nil(t, base.Details(), "WithDetails must not mutate the receiver")

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Nil(t, Wrap(CodeConflict, nil, "ctx").Unwrap())

	require.NotNil(t, As(fmt.Errorf("handler: %w", New(CodeForbidden, "no entry"))))
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeInsufficientStock, "not enough")
	outer := fmt.Errorf("create sale: %w", inner)
	if !IsCode(outer, CodeInsufficientStock) {
		t.Fatalf("expected IsCode to find insufficient stock through wrap")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatalf("unexpected match on not found")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
	nested := Wrap(CodeDependency, New(CodeNotFound, "plan gone"), "lookup failed")
	if !IsCode(nested, CodeNotFound) || !IsCode(nested, CodeDependency) {
		t.Fatalf("expected both codes in nested chain")
	}
}

func TestDumpCapturesDriverDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payment_proofs_transaction_number", TableName: "payment_proofs"}
	wrapped := Wrap(CodeDuplicateTransaction, fmt.Errorf("insert proof: %w", pgErr), "duplicate")

	d := Dump(wrapped)
	if d.Code != CodeDuplicateTransaction || d.Retryable {
		t.Fatalf("unexpected code/retryable: %s %v", d.Code, d.Retryable)
	}
	if d.Store == nil || d.Store.Driver != "pgx" || d.Store.Code != "23505" || d.Store.Constraint != "ux_payment_proofs_transaction_number" {
		t.Fatalf("pg details missing: %+v", d.Store)
	}
	if got := d.Fields()["db_table"]; got != "payment_proofs" {
		t.Fatalf("expected db_table field, got %v", got)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected three links in chain, got %v", d.Chain)
	}

	lite := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	d = Dump(Wrap(CodeDependency, lite, "store failed"))
	if d.Store == nil || d.Store.Driver != "sqlite3" || d.Store.Extended != strconv.Itoa(int(sqlite3.ErrConstraintUnique)) {
		t.Fatalf("sqlite details missing: %+v", d.Store)
	}
	if !d.Retryable {
		t.Fatalf("dependency errors are retryable")
	}

	joined := fmt.Errorf("%w: %w", stdErrors.New("left"), New(CodeTimeout, "right"))
	if d := Dump(joined); len(d.Chain) != 3 || d.Code != CodeTimeout {
		t.Fatalf("expected both branches of a multi-wrap, got %v", d.Chain)
	}
	if _, ok := Dump(New(CodeNotFound, "x")).Fields()["db_driver"]; ok {
		t.Fatalf("no driver fields without a driver error")
	}

	if got := Dump(nil); got.TopMessage != "" {
		t.Fatalf("expected empty dump for nil")
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if !Retryable(stdErrors.New("socket closed")) {
		t.Fatal("untyped errors count as internal")
	}
	if Retryable(New(CodeInsufficientStock, "no units")) {
		t.Fatal("insufficient stock is permanent")
	}
	wrapped := fmt.Errorf("create sale: %w", New(CodeConcurrentModification, "version moved"))
	if !Retryable(wrapped) {
		t.Fatal("expected wrapped concurrent modification to be retryable")
	}
}
