// Package middleware provides the HTTP middleware the generated endpoints
// run behind: request IDs, request logging, CORS, authentication, and
// per-request database connection scoping.
package middleware

import (
	"net/http"

	"github.com/crudgen/crudgen/pkg/httputil"
)

// Chain applies one or more middleware to a handler. The first middleware
// in the list is the outermost wrapper (executed first).
func Chain(h http.Handler, middlewares ...httputil.Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
