package middleware

import (
	"context"
	"net/http"

	"github.com/crudgen/crudgen/pkg/httputil"
)

// AnonCaller attaches a fixed anonymous identity to requests that carry no
// authenticated caller. Intended for deployments without an auth backend.
func AnonCaller(subject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := httputil.CallerFrom(r); !ok {
				ctx := context.WithValue(r.Context(), httputil.CallerCtxKey, &httputil.Caller{Subject: subject})
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
