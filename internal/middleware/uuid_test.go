package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/knowledge-base/internal/middleware"
)

func TestValidateUUIDParams(t *testing.T) {
	r := chi.NewRouter()
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	r.With(middleware.ValidateUUIDParams).Get("/article/{articleID}", ok)
	r.With(middleware.ValidateUUIDParams).Get("/user/{userId}/tag/{name}", ok)
	r.With(middleware.ValidateUUIDParams).Get("/p/{ID}", ok)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantParam  string
	}{
		{"valid uuid", "/article/0b6e7a4e-97c1-4d1a-a2b6-0e2c2bb1c9f2", http.StatusOK, ""},
		{"not a uuid", "/article/123", http.StatusBadRequest, "articleID"},
		{"lower-case suffix", "/user/abc/tag/go", http.StatusBadRequest, "userId"},
		{"non-id param is ignored", "/user/0b6e7a4e-97c1-4d1a-a2b6-0e2c2bb1c9f2/tag/not-a-uuid", http.StatusOK, ""},
		{"upper-case name", "/p/zzz", http.StatusBadRequest, "ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantParam == "" {
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, "validation_error", body["error"])
			assert.Equal(t, `Path param "`+tt.wantParam+`" must be a valid UUID`, body["message"])
		})
	}
}
