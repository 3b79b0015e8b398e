package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyStatuses(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:    http.StatusBadRequest,
		CodeUnauthorized:  http.StatusUnauthorized,
		CodeForbidden:     http.StatusForbidden,
		CodeNotFound:      http.StatusNotFound,
		CodeConflict:      http.StatusConflict,
		CodeStateConflict: http.StatusUnprocessableEntity,
		CodeIdempotency:   http.StatusConflict,
		CodeRateLimit:     http.StatusTooManyRequests,
		CodeInternal:      http.StatusInternalServerError,
		CodeDependency:    http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		m := MetadataFor(code)
		assert.Equal(t, status, m.HTTPStatus, code)
		assert.NotEmpty(t, m.PublicMessage, code)
	}
}

func TestServerFaultsAreRetryable(t *testing.T) {
	assert.True(t, MetadataFor(CodeInternal).Retryable)
	assert.True(t, MetadataFor(CodeDependency).Retryable)
	assert.True(t, MetadataFor(CodeRateLimit).Retryable)
	assert.False(t, MetadataFor(CodeValidation).Retryable)
	assert.False(t, MetadataFor(CodeStateConflict).Retryable)
}

func TestDetailsOnlyForClientActionableCodes(t *testing.T) {
	assert.True(t, MetadataFor(CodeValidation).DetailsAllowed)
	assert.True(t, MetadataFor(CodeStateConflict).DetailsAllowed)
	assert.False(t, MetadataFor(CodeInternal).DetailsAllowed)
	assert.False(t, MetadataFor(CodeUnauthorized).DetailsAllowed)
}

func TestUnknownCodeFallsBackToInternal(t *testing.T) {
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("NOT_A_CODE"))
}

func TestNewAndWrap(t *testing.T) {
	e := Newf(CodeValidation, "quantity must be at least %d", 1)
	assert.Equal(t, CodeValidation, e.Code())
	assert.Equal(t, "quantity must be at least 1", e.Message())
	assert.Nil(t, e.Details())
	assert.Equal(t, "VALIDATION_ERROR: quantity must be at least 1", e.Error())

	e.WithDetails(map[string]string{"field": "quantity"})
	assert.NotNil(t, e.Details())

	cause := stdErrors.New("dial tcp: refused")
	w := Wrap(CodeDependency, cause, "redis unavailable")
	assert.ErrorIs(t, w, cause)
	assert.Contains(t, w.Error(), "dial tcp: refused")

	assert.Nil(t, Wrap(CodeInternal, nil, "no cause").Unwrap())
}

func TestNilReceiver(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.WithDetails("x"))
}

func TestLookupHelpers(t *testing.T) {
	wrapped := fmt.Errorf("load supplier: %w", New(CodeNotFound, "supplier not found"))
	require.NotNil(t, As(wrapped))
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))

	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeConflict))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
}

func TestDumpChain(t *testing.T) {
	err := fmt.Errorf("list orders: %w", Wrap(CodeDependency, stdErrors.New("connection reset"), "orders unavailable"))
	d := Dump(err)
	assert.Equal(t, CodeDependency, d.Code)
	assert.Len(t, d.Chain, 3)
	assert.Empty(t, d.PGCode)
	assert.Empty(t, d.SQLiteCode)
	assert.Equal(t, ErrorDump{}, Dump(nil))
}

func TestDumpPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "reviews_order_id_key", TableName: "reviews"}
	d := Dump(Wrap(CodeConflict, pgErr, "review already exists"))
	assert.Equal(t, "23505", d.PGCode)
	assert.Equal(t, "reviews_order_id_key", d.PGConstraint)
	assert.Equal(t, "reviews", d.PGTable)
}
