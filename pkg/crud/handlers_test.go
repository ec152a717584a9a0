package crud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudgen/crudgen/pkg/httputil"
)

// seqExecutor pops one canned result per Select call, letting a test script
// a multi-request exchange like delete-then-delete.
type seqExecutor struct {
	selects []selectStep
	total   int64
	sqlLog  []string
}

type selectStep struct {
	rows []map[string]any
	err  error
}

func (s *seqExecutor) Select(_ context.Context, sql string, _ []any) ([]map[string]any, error) {
	s.sqlLog = append(s.sqlLog, sql)
	if len(s.selects) == 0 {
		return nil, errors.New("unexpected query: " + sql)
	}
	step := s.selects[0]
	s.selects = s.selects[1:]
	return step.rows, step.err
}

func (s *seqExecutor) Count(_ context.Context, sql string, _ []any) (int64, error) {
	s.sqlLog = append(s.sqlLog, sql)
	return s.total, nil
}

func withTestContext(exec Executor) httputil.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), httputil.CallerCtxKey, &httputil.Caller{Subject: "tester"})
			ctx = context.WithValue(ctx, httputil.ExecutorCtxKey, exec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestServer(t *testing.T, mw httputil.Middleware, opts ...Option) *httptest.Server {
	t.Helper()

	router := httputil.NewRouter()
	if mw != nil {
		router.Use(mw)
	}
	NewResource(testTable(), opts...).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestViewFound(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"id": float64(7), "name": "bob"}}}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/users/7", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bob", body["name"])

	require.Len(t, exec.sqlLog, 1)
	assert.Equal(t, `SELECT * FROM "public"."users" WHERE "status_id" = $1 AND "id" = $2`, exec.sqlLog[0])
	assert.Equal(t, []any{StatusActive, int64(7)}, exec.argsLog[0])
}

func TestViewMissingIs403(t *testing.T) {
	srv := newTestServer(t, withTestContext(&fakeExecutor{}))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/users/7", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "id 7 is not found", body["message"])
}

func TestViewStatusScopeOverride(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"id": float64(7)}}}
	srv := newTestServer(t, withTestContext(exec))

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/users/7?status=deleted", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{StatusDeleted, int64(7)}, exec.argsLog[0])
}

func TestViewBadID(t *testing.T) {
	srv := newTestServer(t, withTestContext(&fakeExecutor{}))

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/users/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMissingCallerIs401(t *testing.T) {
	// executor present, caller absent
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), httputil.ExecutorCtxKey, Executor(&fakeExecutor{}))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	srv := newTestServer(t, mw)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/users/7", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMissingExecutorIs500(t *testing.T) {
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), httputil.CallerCtxKey, &httputil.Caller{Subject: "tester"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	srv := newTestServer(t, mw)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/users/7", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestListEnvelope(t *testing.T) {
	exec := &fakeExecutor{
		rows:  []map[string]any{{"id": float64(1)}, {"id": float64(2)}},
		total: 12,
	}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/users/?page=2&per_page=10&filter[name][like]=bob&sort=-created_at", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(10), body["per_page"])
	assert.Equal(t, float64(12), body["total_records"])
	assert.Equal(t, float64(2), body["pages"])
	assert.Len(t, body["data"], 2)

	require.Len(t, exec.sqlLog, 2)
	assert.Equal(t, `SELECT count(*) FROM "public"."users" WHERE "status_id" = $1 AND "name" ILIKE $2`, exec.sqlLog[0])
	assert.Equal(t,
		`SELECT * FROM "public"."users" WHERE "status_id" = $1 AND "name" ILIKE $2 ORDER BY "created_at" DESC LIMIT $3 OFFSET $4`,
		exec.sqlLog[1],
	)
	assert.Equal(t, []any{StatusActive, "%bob%", 10, 10}, exec.argsLog[1])
}

func TestListEmptyIsJSONArray(t *testing.T) {
	srv := newTestServer(t, withTestContext(&fakeExecutor{}))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/users/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := body["data"].([]any)
	require.True(t, ok, "data must serialize as an array")
	assert.Empty(t, data)
	assert.Equal(t, float64(0), body["pages"])
}

func TestListBadParams(t *testing.T) {
	testCases := []struct {
		name  string
		query string
	}{
		{name: "unknown filter column", query: "filter[missing][eq]=1"},
		{name: "operator not permitted", query: "filter[age][like]=x"},
		{name: "malformed integer", query: "filter[age][eq]=abc"},
		{name: "bad status", query: "status=zombie"},
		{name: "bad page", query: "page=0"},
		{name: "per_page over limit", query: "per_page=1001"},
	}

	srv := newTestServer(t, withTestContext(&fakeExecutor{}))
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodGet, srv.URL+"/users/?"+tc.query, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestListUnknownSortColumnIs500(t *testing.T) {
	srv := newTestServer(t, withTestContext(&fakeExecutor{}))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/users/?sort=missing", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal configuration error", body["message"])
}

func TestCreate(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"id": float64(1), "name": "bob", "status_id": "active"}}}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/users/", `{"name":"bob","age":30}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "bob", body["name"])

	require.Len(t, exec.sqlLog, 1)
	assert.Equal(t,
		`INSERT INTO "public"."users" ("age", "name", "status_id", "created_by", "updated_by") VALUES ($1, $2, $3, $4, $5) RETURNING *`,
		exec.sqlLog[0],
	)
	// audit columns stamped from the authenticated caller
	assert.Equal(t, []any{float64(30), "bob", StatusActive, "tester", "tester"}, exec.argsLog[0])
}

func TestCreateFailureIs422(t *testing.T) {
	exec := &fakeExecutor{err: assert.AnError}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/users/", `{"name":"bob"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	// persistence detail stays opaque
	assert.Equal(t, "Error during creating. Please check input parameters", body["message"])
}

func TestCreateMalformedBody(t *testing.T) {
	srv := newTestServer(t, withTestContext(&fakeExecutor{}))

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/users/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdate(t *testing.T) {
	exec := &seqExecutor{selects: []selectStep{
		{rows: []map[string]any{{"id": float64(7)}}},                  // scoped lookup
		{rows: []map[string]any{{"id": float64(7), "name": "carol"}}}, // update returning
	}}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/users/7", `{"name":"carol"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "carol", body["name"])

	require.Len(t, exec.sqlLog, 2)
	assert.Equal(t,
		`UPDATE "public"."users" SET "name" = $1, "updated_by" = $2, "updated_at" = now() WHERE "id" = $3 RETURNING *`,
		exec.sqlLog[1],
	)
}

func TestUpdateMissingIs403(t *testing.T) {
	exec := &seqExecutor{selects: []selectStep{{rows: nil}}}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/users/7", `{"name":"carol"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "id 7 is not found", body["message"])
}

func TestUpdatePersistFailureIs422(t *testing.T) {
	exec := &seqExecutor{selects: []selectStep{
		{rows: []map[string]any{{"id": float64(7)}}},
		{err: assert.AnError},
	}}
	srv := newTestServer(t, withTestContext(exec))

	resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/users/7", `{"name":"carol"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDeleteThenDeleteAgain(t *testing.T) {
	exec := &seqExecutor{selects: []selectStep{
		{rows: []map[string]any{{"id": float64(7), "status_id": "deleted"}}},
		{rows: nil}, // already deleted, guard yields no rows
	}}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodDelete, srv.URL+"/users/7", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deleted", body["status_id"])

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/users/7", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "id 7 doesn't exist", body["message"])

	require.Len(t, exec.sqlLog, 2)
	assert.Equal(t,
		`UPDATE "public"."users" SET "status_id" = $1, "updated_at" = now() WHERE "id" = $2 AND "status_id" <> $3 RETURNING *`,
		exec.sqlLog[0],
	)
}

func TestRestoreRoundTrip(t *testing.T) {
	exec := &seqExecutor{selects: []selectStep{
		{rows: []map[string]any{{"id": float64(7), "status_id": "active"}}},
		{rows: nil}, // second restore: row no longer deleted
	}}
	srv := newTestServer(t, withTestContext(exec))

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/users/7/restore", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", body["status_id"])

	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/users/7/restore", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "id 7 doesn't exist to restore", body["message"])

	assert.Equal(t,
		`UPDATE "public"."users" SET "status_id" = $1, "updated_at" = now() WHERE "id" = $2 AND "status_id" = $3 RETURNING *`,
		exec.sqlLog[0],
	)
}
