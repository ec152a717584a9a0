package middleware

import (
	"context"
	"net/http"

	"github.com/crudgen/crudgen/pkg/crud"
	"github.com/crudgen/crudgen/pkg/httputil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres scopes one pooled connection to each request: the connection is
// acquired before the handler runs, exposed through the context as a query
// executor, and released when the handler returns, normally or not. The
// request's context cancels any query still running on it.
func Postgres(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := pool.Acquire(r.Context())
			if err != nil {
				httputil.Error(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			defer conn.Release()

			ctx := context.WithValue(r.Context(), httputil.ExecutorCtxKey, crud.NewExecutor(conn))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
