package crud

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/crudgen/crudgen/pkg/httputil"
	"go.uber.org/zap"
)

// prepare enforces the handler preconditions shared by all six actions: an
// authenticated caller and a request-scoped query executor.
func (r *Resource) prepare(w http.ResponseWriter, req *http.Request) (Executor, *httputil.Caller, bool) {
	caller, ok := httputil.CallerFrom(req)
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
		return nil, nil, false
	}
	exec, ok := ExecutorFrom(req)
	if !ok {
		r.logger.Error("no executor in request context", zap.String("table", r.desc.Table))
		httputil.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return nil, nil, false
	}
	return exec, caller, true
}

// pathID coerces the {id} path segment to the primary key's native type.
// Integer keys with an unparseable segment are a client error; any other
// key type passes through as-is.
func (r *Resource) pathID(req *http.Request) (any, error) {
	raw := req.PathValue("id")
	if NativeTypeFor(r.desc.ColumnType(r.desc.PrimaryKey)) == NativeInt {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q", ErrInvalidParam, raw)
		}
		return id, nil
	}
	return raw, nil
}

func (r *Resource) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidParam):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownSortColumn):
		// descriptor/route mismatch, not user input; fail loudly
		r.logger.Error("sort column not in descriptor", zap.String("table", r.desc.Table), zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, "internal configuration error")
	default:
		r.logger.Error("query failed", zap.String("table", r.desc.Table), zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, "Database query error")
	}
}

// handleView reads a single row by primary key under the requested status
// scope. A missing id answers 403, matching the legacy surface.
func (r *Resource) handleView(w http.ResponseWriter, req *http.Request) {
	exec, _, ok := r.prepare(w, req)
	if !ok {
		return
	}

	id, err := r.pathID(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	status, err := ParseStatus(req.URL.Query())
	if err != nil {
		r.writeError(w, err)
		return
	}

	q, err := Compose(r.desc, status, nil, nil)
	if err != nil {
		r.writeError(w, err)
		return
	}
	q.WhereEq(r.desc.PrimaryKey, id)

	rows, err := exec.Select(req.Context(), q.SQL(), q.Args())
	if err != nil {
		r.writeError(w, err)
		return
	}
	if len(rows) == 0 {
		httputil.Error(w, http.StatusForbidden, fmt.Sprintf("id %v is not found", id))
		return
	}

	httputil.JSON(w, http.StatusOK, rows[0])
}

// handleList reads a filtered, sorted, paginated window of rows.
func (r *Resource) handleList(w http.ResponseWriter, req *http.Request) {
	exec, _, ok := r.prepare(w, req)
	if !ok {
		return
	}

	values := req.URL.Query()

	status, err := ParseStatus(values)
	if err != nil {
		r.writeError(w, err)
		return
	}
	filters, err := r.filters.Collect(values)
	if err != nil {
		r.writeError(w, err)
		return
	}
	page, err := ParsePageParams(values)
	if err != nil {
		r.writeError(w, err)
		return
	}
	sort := ParseSort(values.Get("sort"))

	q, err := Compose(r.desc, status, filters, sort)
	if err != nil {
		r.writeError(w, err)
		return
	}

	result, err := Paginate(req.Context(), exec, q, page)
	if err != nil {
		r.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// handleCreate inserts a new row from the JSON body. Persistence failures
// surface uniformly as 422 without storage-layer detail.
func (r *Resource) handleCreate(w http.ResponseWriter, req *http.Request) {
	exec, caller, ok := r.prepare(w, req)
	if !ok {
		return
	}

	var body map[string]any
	if err := httputil.BindOrError(req, w, &body); err != nil {
		return
	}

	sql, args, err := buildInsert(r.desc, body, caller.Subject)
	if err != nil {
		r.writeError(w, err)
		return
	}

	rows, err := exec.Select(req.Context(), sql, args)
	if err != nil || len(rows) == 0 {
		r.logger.Warn("create failed", zap.String("table", r.desc.Table), zap.Error(err))
		httputil.Error(w, http.StatusUnprocessableEntity, "Error during creating. Please check input parameters")
		return
	}

	httputil.JSON(w, http.StatusCreated, rows[0])
}

// handleUpdate patches an existing row: lookup under the requested status
// scope, then persist the changed columns.
func (r *Resource) handleUpdate(w http.ResponseWriter, req *http.Request) {
	exec, caller, ok := r.prepare(w, req)
	if !ok {
		return
	}

	id, err := r.pathID(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	status, err := ParseStatus(req.URL.Query())
	if err != nil {
		r.writeError(w, err)
		return
	}

	var body map[string]any
	if err := httputil.BindOrError(req, w, &body); err != nil {
		return
	}

	q, err := Compose(r.desc, status, nil, nil)
	if err != nil {
		r.writeError(w, err)
		return
	}
	q.WhereEq(r.desc.PrimaryKey, id)

	existing, err := exec.Select(req.Context(), q.SQL(), q.Args())
	if err != nil {
		r.writeError(w, err)
		return
	}
	if len(existing) == 0 {
		httputil.Error(w, http.StatusForbidden, fmt.Sprintf("id %v is not found", id))
		return
	}

	sql, args, err := buildUpdate(r.desc, body, id, caller.Subject)
	if err != nil {
		r.writeError(w, err)
		return
	}

	rows, err := exec.Select(req.Context(), sql, args)
	if err != nil || len(rows) == 0 {
		r.logger.Warn("update failed", zap.String("table", r.desc.Table), zap.Error(err))
		httputil.Error(w, http.StatusUnprocessableEntity, "Error during updating. Please check input parameters")
		return
	}

	httputil.JSON(w, http.StatusOK, rows[0])
}

// handleDelete soft-deletes a row: status moves to deleted, the row stays.
// Deleting an absent or already-deleted row is 404.
func (r *Resource) handleDelete(w http.ResponseWriter, req *http.Request) {
	exec, _, ok := r.prepare(w, req)
	if !ok {
		return
	}

	id, err := r.pathID(req)
	if err != nil {
		r.writeError(w, err)
		return
	}

	sql, args := buildStatusTransition(r.desc, id, StatusDeleted, "<>", StatusDeleted)
	rows, err := exec.Select(req.Context(), sql, args)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if len(rows) == 0 {
		httputil.Error(w, http.StatusNotFound, fmt.Sprintf("id %v doesn't exist", id))
		return
	}

	httputil.JSON(w, http.StatusOK, rows[0])
}

// handleRestore reverses a soft delete. Restoring a row that is not in
// deleted status is 404.
func (r *Resource) handleRestore(w http.ResponseWriter, req *http.Request) {
	exec, _, ok := r.prepare(w, req)
	if !ok {
		return
	}

	id, err := r.pathID(req)
	if err != nil {
		r.writeError(w, err)
		return
	}

	sql, args := buildStatusTransition(r.desc, id, StatusActive, "=", StatusDeleted)
	rows, err := exec.Select(req.Context(), sql, args)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if len(rows) == 0 {
		httputil.Error(w, http.StatusNotFound, fmt.Sprintf("id %v doesn't exist to restore", id))
		return
	}

	httputil.JSON(w, http.StatusOK, rows[0])
}
