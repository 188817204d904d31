package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ValidateUUIDParams rejects a request with 400 when any chi URL parameter
// whose name ends in "id" (case-insensitive) is not a UUID. It must be
// installed inside the routing tree (with Route/With), because chi fills
// the URL parameters only once the route has matched.
//
//	GET /article/not-a-uuid → 400 {"error":"validation_error","message":"Path param \"articleID\" must be a valid UUID","field":"articleID"}
func ValidateUUIDParams(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, name := range rctx.URLParams.Keys {
				if !strings.HasSuffix(strings.ToLower(name), "id") {
					continue
				}
				if err := uuid.Validate(rctx.URLParams.Values[i]); err != nil {
					writeInvalidParam(w, name)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeInvalidParam(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "validation_error",
		"message": `Path param "` + name + `" must be a valid UUID`,
		"field":   name,
	})
}
