package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/ingest"
	"catalog_agent/pkg/core/reconcile"
	"catalog_agent/pkg/core/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	dup := reconcile.ValidationErrors{{Field: "Nome", Message: "exists", Err: reconcile.ErrDuplicateIdentity}}
	invalid := reconcile.ValidationErrors{{Field: "Voto", Message: "bad", Err: catalog.ErrInvalidValue}}

	tests := []struct {
		err  error
		want int
	}{
		{session.ErrNoSession, http.StatusUnauthorized},
		{session.ErrInvalidSecret, http.StatusUnauthorized},
		{session.ErrGateDisabled, http.StatusServiceUnavailable},
		{session.ErrUnknownProposal, http.StatusNotFound},
		{dup, http.StatusConflict},
		{invalid, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", catalog.ErrIdentityNotFound), http.StatusNotFound},
		{reconcile.ErrNotConfirmed, http.StatusBadRequest},
		{fmt.Errorf("%w: a.txt", ingest.ErrUnsupportedKind), http.StatusUnsupportedMediaType},
		{ingest.ErrNoText, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: malformed pdf: bad xref", ingest.ErrUnreadable), http.StatusUnprocessableEntity},
		{&reconcile.PartialWriteError{Written: 1, Field: "x", Err: errors.New("quota")}, http.StatusBadGateway},
		{errors.New("sheets unreachable"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}

func TestError_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, reconcile.ValidationErrors{{Field: "Nome", Message: "identity is required", Err: reconcile.ErrIdentityRequired}})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, map[string]string{"Nome": "identity is required"}, body.Fields)
	assert.Nil(t, body.Written)

	rec = httptest.NewRecorder()
	Error(rec, &reconcile.PartialWriteError{Written: 2, Field: "Logistica", Err: errors.New("quota")})
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Written)
	assert.Equal(t, 2, *body.Written)
}
