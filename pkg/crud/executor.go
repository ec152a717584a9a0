package crud

import (
	"context"
	"net/http"

	"github.com/crudgen/crudgen/pkg/httputil"
	pg "github.com/crudgen/crudgen/pkg/pgx"
)

// Executor runs composed queries against storage. The CRUD handlers depend
// only on this interface; production requests get a pgx-backed implementation
// from the connection middleware, tests substitute fakes.
type Executor interface {
	// Select runs a query and returns all rows as column-keyed maps.
	Select(ctx context.Context, sql string, args []any) ([]map[string]any, error)
	// Count runs a count query and returns the single int64 result.
	Count(ctx context.Context, sql string, args []any) (int64, error)
}

type pgxExecutor struct {
	conn pg.Conn
}

// NewExecutor wraps a pgx connection (or pool) as an Executor.
func NewExecutor(conn pg.Conn) Executor {
	return &pgxExecutor{conn: conn}
}

func (e *pgxExecutor) Select(ctx context.Context, sql string, args []any) ([]map[string]any, error) {
	rows, err := e.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pg.MapRows(rows)
}

func (e *pgxExecutor) Count(ctx context.Context, sql string, args []any) (int64, error) {
	var total int64
	if err := e.conn.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ExecutorFrom extracts the request-scoped Executor placed in the context by
// the connection middleware.
func ExecutorFrom(r *http.Request) (Executor, bool) {
	exec, ok := r.Context().Value(httputil.ExecutorCtxKey).(Executor)
	return exec, ok
}
