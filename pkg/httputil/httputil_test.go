package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
)

type createReq struct {
	Name  string `json:"name" validate:"required,max=10"`
	Level string `json:"level" validate:"omitempty,oneof=owner admin manager member"`
}

func TestParseJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Valley","level":"admin"}`))
		var req createReq
		require.NoError(t, ParseJSON(r, &req))
		assert.Equal(t, "Valley", req.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","color":"red"}`))
		var req createReq
		assert.ErrorContains(t, ParseJSON(r, &req), "invalid JSON")
	})

	t.Run("validation uses json names", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"level":"boss"}`))
		var req createReq
		err := ParseJSON(r, &req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, map[string]string{"name": "required", "level": "oneof"}, verr.Fields)
	})

	t.Run("error response", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		var req createReq
		assert.False(t, ParseJSONOrError(w, r, &req))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "validation_failed", body.Code)
		assert.Equal(t, "required", body.Details["name"])
	})
}

func TestParsePathInt64(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "42", "bad": "x"})

	v, err := ParsePathInt64(r, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = ParsePathInt64(r, "bad")
	assert.Error(t, err)
	_, err = ParsePathInt64(r, "missing")
	assert.Error(t, err)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	t.Run("assigns", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagates", func(t *testing.T) {
		id := "6f1c2a64-9a3b-4c55-8f0e-0d3e8f1a2b3c"
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, id)
		h.ServeHTTP(httptest.NewRecorder(), r)
		assert.Equal(t, id, seen)
	})

	t.Run("replaces garbage", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "not a uuid\n")
		h.ServeHTTP(httptest.NewRecorder(), r)
		assert.NotEqual(t, "not a uuid\n", seen)
	})
}

func TestRecoveryAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)
	h := Chain(RequestIDMiddleware(logger), LoggingMiddleware, RecoveryMiddleware)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.Contains(t, buf.String(), "PANIC in handler")
	assert.Contains(t, buf.String(), `"status":500`)
}
