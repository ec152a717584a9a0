// Package schema reflects and caches PostgreSQL table metadata: column names,
// column data types and primary keys. The cached tables drive endpoint and
// filter-parameter generation. A LISTEN/NOTIFY channel triggers reloads so
// schema migrations do not require a process restart.
package schema

import (
	"context"
	"fmt"
	"maps"
	"sync"

	pg "github.com/crudgen/crudgen/pkg/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	// Following PostgREST's notification convention for cache reloads.
	reloadChannel = "crudgen"
	reloadPayload = "reload schema"
)

// Table is the reflected shape of one database table.
type Table struct {
	Schema      string   `json:"schema"`
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	PrimaryKeys []string `json:"primary_keys"`
}

// Column is one reflected table column.
type Column struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// FullName returns the schema-qualified table name.
func (t *Table) FullName() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

// PrimaryKey returns the single-column primary key, defaulting to "id" when
// the table declares none.
func (t *Table) PrimaryKey() string {
	if len(t.PrimaryKeys) > 0 {
		return t.PrimaryKeys[0]
	}
	return "id"
}

// Cache holds reflected table metadata for one database, reloading on
// NOTIFY. The snapshot handed out is a copy; registered routes keep the
// descriptor they were built from until re-registration.
type Cache struct {
	pool   *pgxpool.Pool
	conn   *pgx.Conn
	logger *zap.Logger
	tables map[string]Table // key: schema_name.table_name
	watch  chan map[string]Table
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// NewCache creates a schema cache backed by the given pool. A dedicated
// connection is hijacked from the pool for LISTEN.
func NewCache(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*Cache, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool.Acquire: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		pool:   pool,
		conn:   conn.Hijack(),
		logger: logger,
		tables: make(map[string]Table),
		watch:  make(chan map[string]Table, 1),
	}, nil
}

// Init performs the initial load and starts listening for reload
// notifications.
func (c *Cache) Init(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.reload(ctx); err != nil {
		cancel()
		return fmt.Errorf("initial load: %w", err)
	}

	if _, err := c.conn.Exec(ctx, "LISTEN "+reloadChannel); err != nil {
		cancel()
		return fmt.Errorf("listen: %w", err)
	}

	go c.handleUpdates(ctx)
	return nil
}

// Close stops the listener and releases the dedicated connection. The pool
// itself is owned by the caller and left open.
func (c *Cache) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close(context.Background())
	}
}

// Watch returns a channel that receives a snapshot after every reload.
func (c *Cache) Watch() <-chan map[string]Table {
	return c.watch
}

// Get returns the cached table for a schema-qualified name.
func (c *Cache) Get(fullName string) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[fullName]
	return t, ok
}

// Snapshot returns a copy of all cached tables.
func (c *Cache) Snapshot() map[string]Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(map[string]Table, len(c.tables))
	maps.Copy(snap, c.tables)
	return snap
}

// handleUpdates owns the watch channel: only this goroutine sends on it,
// and it closes the channel when the listener shuts down.
func (c *Cache) handleUpdates(ctx context.Context) {
	defer close(c.watch)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			notification, err := c.conn.WaitForNotification(ctx)
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					c.logger.Warn("schema notification error", zap.Error(err))
					continue
				}
			}

			if notification.Payload == reloadPayload {
				if err := c.reload(ctx); err != nil {
					c.logger.Error("schema reload failed", zap.Error(err))
				}
			}
		}
	}
}

func (c *Cache) reload(ctx context.Context) error {
	tables, err := loadAll(ctx, c.pool)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tables = tables
	c.mu.Unlock()

	select {
	case c.watch <- c.Snapshot():
	default:
	}
	return nil
}

func loadAll(ctx context.Context, conn pg.Conn) (map[string]Table, error) {
	schemas, err := querySchemas(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}

	tables := make(map[string]Table)
	for _, schema := range schemas {
		if isSystem(schema) {
			continue
		}

		schemaTables, err := loadSchema(ctx, conn, schema)
		if err != nil {
			return nil, fmt.Errorf("load schema %s: %w", schema, err)
		}

		maps.Copy(tables, schemaTables)
	}
	return tables, nil
}

func loadSchema(ctx context.Context, conn pg.Conn, schema string) (map[string]Table, error) {
	tableRows, err := conn.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name`, schema)
	if err != nil {
		return nil, err
	}
	defer tableRows.Close()

	var names []Table
	for tableRows.Next() {
		var t Table
		if err := tableRows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, err
		}
		names = append(names, t)
	}
	if err := tableRows.Err(); err != nil {
		return nil, err
	}

	tables := make(map[string]Table, len(names))
	for _, t := range names {
		cols, pkeys, err := queryColumns(ctx, conn, t.Schema, t.Name)
		if err != nil {
			return nil, fmt.Errorf("query columns %s: %w", t.FullName(), err)
		}
		t.Columns = cols
		t.PrimaryKeys = pkeys
		tables[t.FullName()] = t
	}
	return tables, nil
}

func queryColumns(ctx context.Context, conn pg.Conn, schema, table string) ([]Column, []string, error) {
	rows, err := conn.Query(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = $1
					AND tc.table_name = $2
					AND kcu.column_name = c.column_name
			) AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, schema, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []Column
	var pkeys []string
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.IsPrimaryKey); err != nil {
			return nil, nil, err
		}
		cols = append(cols, col)
		if col.IsPrimaryKey {
			pkeys = append(pkeys, col.Name)
		}
	}
	return cols, pkeys, rows.Err()
}

func querySchemas(ctx context.Context, conn pg.Conn) ([]string, error) {
	rows, err := conn.Query(ctx, `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var schema string
		if err := rows.Scan(&schema); err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return schemas, rows.Err()
}

func isSystem(schema string) bool {
	switch schema {
	case "information_schema", "pg_catalog", "pg_toast", "pg_temp_1", "pg_toast_temp_1":
		return true
	default:
		return false
	}
}
