package crud

import (
	"net/http"
	"slices"

	"github.com/crudgen/crudgen/pkg/httputil"
	"github.com/crudgen/crudgen/pkg/schema"
	"go.uber.org/zap"
)

// Action is one of the six generated endpoint kinds.
type Action string

const (
	ActionView    Action = "view"
	ActionList    Action = "list"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
)

// AllActions lists every generated action, in registration order.
var AllActions = []Action{ActionView, ActionList, ActionCreate, ActionUpdate, ActionDelete, ActionRestore}

// ParseAction validates an action name from configuration.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	return a, slices.Contains(AllActions, a)
}

// Resource wires a table descriptor into routed CRUD handlers. Built once
// at registration time; everything it holds is read-only afterwards and
// safe to share across concurrent requests.
type Resource struct {
	desc    *Descriptor
	filters *FilterSet
	logger  *zap.Logger

	path       string
	excluded   []string
	include    []Action
	exclude    []Action
	actionMW   map[Action][]httputil.Middleware
	instrument func(resource string, action Action) httputil.Middleware
}

// Option configures a Resource.
type Option func(*Resource)

// WithPath overrides the default route prefix ("/" + table name).
func WithPath(path string) Option {
	return func(r *Resource) { r.path = path }
}

// WithActions restricts the resource to the given actions.
func WithActions(actions ...Action) Option {
	return func(r *Resource) { r.include = actions }
}

// WithoutActions disables the given actions even if included.
func WithoutActions(actions ...Action) Option {
	return func(r *Resource) { r.exclude = actions }
}

// WithActionMiddleware prepends middleware to one action's handler, e.g. an
// authorization dependency that only guards mutations.
func WithActionMiddleware(action Action, mw ...httputil.Middleware) Option {
	return func(r *Resource) { r.actionMW[action] = append(r.actionMW[action], mw...) }
}

// WithExcludedColumns overrides the audit-column exclusion list used for
// filter generation.
func WithExcludedColumns(columns []string) Option {
	return func(r *Resource) { r.excluded = columns }
}

// WithInstrumentation wraps every action handler with the middleware the
// factory returns, typically request metrics labeled per resource/action.
func WithInstrumentation(fn func(resource string, action Action) httputil.Middleware) Option {
	return func(r *Resource) { r.instrument = fn }
}

// WithLogger sets the resource logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resource) { r.logger = logger }
}

// NewResource derives a Resource from a reflected table.
func NewResource(table schema.Table, opts ...Option) *Resource {
	r := &Resource{
		path:     "/" + table.Name,
		include:  AllActions,
		actionMW: make(map[Action][]httputil.Middleware),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.desc = NewDescriptor(table, r.excluded)
	r.filters = NewFilterSet(r.desc)
	return r
}

// Descriptor exposes the derived column metadata, mainly for tests and
// introspection.
func (r *Resource) Descriptor() *Descriptor {
	return r.desc
}

// FilterParams returns the external query-string keys generated for the
// resource, e.g. "filter[name][like]".
func (r *Resource) FilterParams() []string {
	return r.filters.Params()
}

// Path returns the route prefix the resource registers under.
func (r *Resource) Path() string {
	return r.path
}

func (r *Resource) enabled(action Action) bool {
	return slices.Contains(r.include, action) && !slices.Contains(r.exclude, action)
}

// Register mounts the enabled action handlers on the router under the
// resource path.
func (r *Resource) Register(router *httputil.Router) {
	grp := router.Group(r.path)

	r.register(grp, ActionView, "GET /{id}", http.HandlerFunc(r.handleView))
	// "{$}" pins the collection routes to the exact path; a bare "/" would
	// register a subtree pattern that also matches /users/7/extra.
	r.register(grp, ActionList, "GET /{$}", http.HandlerFunc(r.handleList))
	r.register(grp, ActionCreate, "POST /{$}", http.HandlerFunc(r.handleCreate))
	r.register(grp, ActionUpdate, "PATCH /{id}", http.HandlerFunc(r.handleUpdate))
	r.register(grp, ActionDelete, "DELETE /{id}", http.HandlerFunc(r.handleDelete))
	r.register(grp, ActionRestore, "PATCH /{id}/restore", http.HandlerFunc(r.handleRestore))
}

func (r *Resource) register(grp *httputil.Router, action Action, pattern string, handler http.Handler) {
	if !r.enabled(action) {
		return
	}
	if r.instrument != nil {
		handler = r.instrument(r.desc.Table, action)(handler)
	}
	mw := r.actionMW[action]
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	grp.Handle(pattern, handler)
}
