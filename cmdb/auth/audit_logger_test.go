package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cmdb_platform/cmdb/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuditLoggerRecordsRequest(t *testing.T) {
	var buffer bytes.Buffer
	auditLog := NewAuditLogger(&buffer)

	called := false
	handler := auditLog.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	user := schema.User{Id: uuid.New(), Username: "auditor", IsAdmin: true}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("location_id", "42")

	r := httptest.NewRequest("DELETE", "/locations/42?force=true", nil)
	r.Header.Set("X-Real-Ip", "10.0.0.7")
	r.Header.Set("X-Forwarded-Proto", "https")
	ctx := context.WithValue(r.Context(), UserRequestContextKey, user)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r.WithContext(ctx))

	assert.True(t, called)

	var entry map[string]interface{}
	err := json.Unmarshal(buffer.Bytes(), &entry)
	assert.NoError(t, err)

	assert.Equal(t, "api request", entry["msg"])
	assert.Equal(t, "auditor", entry["username"])
	assert.Equal(t, user.Id.String(), entry["user_id"])
	assert.Equal(t, true, entry["admin"])
	assert.Equal(t, "10.0.0.7", entry["remote_addr"])
	assert.Equal(t, "https", entry["scheme"])
	assert.Equal(t, "DELETE", entry["method"])
	assert.Equal(t, "/locations/42", entry["path"])

	routeParams, ok := entry["route_params"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "42", routeParams["location_id"])

	queryParams, ok := entry["query_params"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "true", queryParams["force"])
}

func TestAuditLoggerRejectsRequestWithoutUser(t *testing.T) {
	var buffer bytes.Buffer
	auditLog := NewAuditLogger(&buffer)

	handler := auditLog.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an authenticated user")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/cmdb/tree", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, buffer.Bytes())
}
