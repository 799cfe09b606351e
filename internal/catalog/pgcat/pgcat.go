// Package pgcat is a PostgreSQL-backed catalog.Catalog + catalog.Storage,
// meant for datasets too large to hold in the in-memory fixture. Node and
// rel tables are ordinary Postgres tables (one per node/rel label) plus a
// small set of metadata tables describing the schema; reads go through a
// pooled set of *sql.DB handles guarded by a circuit breaker so a stalled
// Postgres instance fails fast instead of piling up blocked goroutines.
package pgcat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"graphflow/internal/catalog"
	"graphflow/internal/circuitbreaker"
	"graphflow/internal/config"
	"graphflow/internal/logging"
	"graphflow/internal/retry"
	"graphflow/internal/storage/pool"
	"graphflow/internal/vector"
)

// propertyRow is the JSON shape stored in the properties column of the
// graphflow_node_tables / graphflow_rel_tables metadata tables.
type propertyRow struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func decodeProperties(raw string) ([]catalog.PropertySchema, error) {
	var rows []propertyRow
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &rows); err != nil {
			return nil, fmt.Errorf("decoding property schema: %w", err)
		}
	}
	out := make([]catalog.PropertySchema, len(rows))
	for i, r := range rows {
		out[i] = catalog.PropertySchema{Name: r.Name, Type: parseLogicalType(r.Type)}
	}
	return out, nil
}

func parseLogicalType(s string) vector.LogicalType {
	switch s {
	case "BOOL":
		return vector.Bool
	case "INT64":
		return vector.Int64
	case "DOUBLE":
		return vector.Double
	case "DATE":
		return vector.Date
	case "TIMESTAMP":
		return vector.Timestamp
	case "INTERVAL":
		return vector.Interval
	default:
		return vector.String
	}
}

// dbConn adapts *sql.DB to pool.Connection. Postgres connections are
// themselves pooled internally by database/sql, so each pooled dbConn here
// is a distinct *sql.DB bound to the same DSN — pooling at this layer caps
// how many concurrent round trips the dispatcher's worker pool can issue.
type dbConn struct {
	db  *sql.DB
	dsn string
}

func (c *dbConn) IsAlive() bool {
	return c.db.PingContext(context.Background()) == nil
}

func (c *dbConn) Close() error { return c.db.Close() }

func (c *dbConn) Reset() error { return nil }

// Catalog is a PostgreSQL-backed reference implementation of
// catalog.Catalog and catalog.Storage.
type Catalog struct {
	pool    *pool.ConnectionPool
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier

	nodesByID   map[catalog.TableID]catalog.NodeTableSchema
	nodesByName map[string]catalog.NodeTableSchema
	relsByID    map[catalog.TableID]catalog.RelTableSchema
	relsByName  map[string]catalog.RelTableSchema
}

// Open connects to Postgres using cfg's DSN, loads schema metadata, and
// returns a ready Catalog. The caller must call Close when done.
func Open(ctx context.Context, cfg config.PostgresConfig) (*Catalog, error) {
	dsn := cfg.DSN()

	factory := func(ctx context.Context) (pool.Connection, error) {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres connection: %w", err)
		}
		db.SetMaxOpenConns(1)
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pinging postgres: %w", err)
		}
		return &dbConn{db: db, dsn: dsn}, nil
	}

	poolCfg := pool.DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxSize = cfg.MaxOpenConns
	}
	p, err := pool.NewConnectionPool(poolCfg, factory)
	if err != nil {
		return nil, fmt.Errorf("creating postgres connection pool: %w", err)
	}

	c := &Catalog{
		pool:        p,
		breaker:     circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retrier:     retry.New(retry.DefaultConfig()),
		nodesByID:   map[catalog.TableID]catalog.NodeTableSchema{},
		nodesByName: map[string]catalog.NodeTableSchema{},
		relsByID:    map[catalog.TableID]catalog.RelTableSchema{},
		relsByName:  map[string]catalog.RelTableSchema{},
	}
	if err := c.loadSchema(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	logging.CatalogLogger.Info("postgres catalog opened",
		"node_tables", len(c.nodesByID), "rel_tables", len(c.relsByID))
	return c, nil
}

func (c *Catalog) Close() error { return c.pool.Close() }

// withConn runs fn with a pooled *sql.DB, through the circuit breaker and
// retrier, returning fn's db to the pool afterward.
func (c *Catalog) withConn(ctx context.Context, fn func(*sql.DB) error) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		res := c.retrier.Do(ctx, func(ctx context.Context) error {
			conn, err := c.pool.Get(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.pool.Put(conn) }()
			wc := conn.(*pool.WrappedConn)
			return fn(wc.Unwrap().(*dbConn).db)
		})
		return res.Err
	})
}

func (c *Catalog) loadSchema(ctx context.Context) error {
	return c.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT id, name, properties FROM graphflow_node_tables`)
		if err != nil {
			return fmt.Errorf("loading node tables: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id uint64
			var name, propsJSON string
			if err := rows.Scan(&id, &name, &propsJSON); err != nil {
				return err
			}
			props, err := decodeProperties(propsJSON)
			if err != nil {
				return err
			}
			schema := catalog.NodeTableSchema{ID: catalog.TableID(id), Name: name, Properties: props}
			c.nodesByID[schema.ID] = schema
			c.nodesByName[name] = schema
		}
		if err := rows.Err(); err != nil {
			return err
		}

		relRows, err := db.QueryContext(ctx, `SELECT id, name, src_table, dst_table, many_to_many, properties FROM graphflow_rel_tables`)
		if err != nil {
			return fmt.Errorf("loading rel tables: %w", err)
		}
		defer relRows.Close()
		for relRows.Next() {
			var id, src, dst uint64
			var name, propsJSON string
			var manyToMany bool
			if err := relRows.Scan(&id, &name, &src, &dst, &manyToMany, &propsJSON); err != nil {
				return err
			}
			props, err := decodeProperties(propsJSON)
			if err != nil {
				return err
			}
			schema := catalog.RelTableSchema{
				ID: catalog.TableID(id), Name: name,
				SrcTable: catalog.TableID(src), DstTable: catalog.TableID(dst),
				ManyToMany: manyToMany, Properties: props,
			}
			c.relsByID[schema.ID] = schema
			c.relsByName[name] = schema
		}
		return relRows.Err()
	})
}

func (c *Catalog) NodeTable(name string) (catalog.NodeTableSchema, bool) {
	s, ok := c.nodesByName[name]
	return s, ok
}

func (c *Catalog) RelTable(name string) (catalog.RelTableSchema, bool) {
	s, ok := c.relsByName[name]
	return s, ok
}

func (c *Catalog) NodeTableByID(id catalog.TableID) (catalog.NodeTableSchema, bool) {
	s, ok := c.nodesByID[id]
	return s, ok
}

func (c *Catalog) RelTableByID(id catalog.TableID) (catalog.RelTableSchema, bool) {
	s, ok := c.relsByID[id]
	return s, ok
}

func (c *Catalog) BoundAndNeighborTables(rel catalog.RelTableSchema, dir catalog.Direction) (catalog.TableID, catalog.TableID) {
	if dir == catalog.Fwd {
		return rel.SrcTable, rel.DstTable
	}
	return rel.DstTable, rel.SrcTable
}

func (c *Catalog) AllNodeTables() []catalog.NodeTableSchema {
	out := make([]catalog.NodeTableSchema, 0, len(c.nodesByID))
	for _, s := range c.nodesByID {
		out = append(out, s)
	}
	return out
}

func (c *Catalog) AllRelTables() []catalog.RelTableSchema {
	out := make([]catalog.RelTableSchema, 0, len(c.relsByID))
	for _, s := range c.relsByID {
		out = append(out, s)
	}
	return out
}

func (c *Catalog) MaxOffset(table catalog.TableID) (uint64, error) {
	schema, ok := c.nodesByID[table]
	if !ok {
		return 0, fmt.Errorf("unknown node table %d", table)
	}
	var count uint64
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := c.withConn(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, quoteIdent(schema.Name))).Scan(&count)
	})
	return count, err
}

func (c *Catalog) ReadColumn(table catalog.TableID, property string, nodeIDs, out *vector.Vector) error {
	schema, ok := c.nodesByID[table]
	if !ok {
		return fmt.Errorf("unknown node table %d", table)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var outerErr error
	nodeIDs.State.ForEach(func(_, pos int) {
		if outerErr != nil {
			return
		}
		id := nodeIDs.GetNodeID(pos)
		err := c.withConn(ctx, func(db *sql.DB) error {
			row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE "offset" = $1`, quoteIdent(property), quoteIdent(schema.Name)), id.Offset)
			return scanIntoVector(row, out, pos)
		})
		if err != nil {
			outerErr = err
		}
	})
	return outerErr
}

func (c *Catalog) ReadUnstructured(table catalog.TableID, property string, nodeIDs, out *vector.Vector) error {
	return c.ReadColumn(table, property, nodeIDs, out)
}

func (c *Catalog) AdjColumn(relTable catalog.TableID, dir catalog.Direction, nodeIDs, out *vector.Vector) error {
	rel, ok := c.relsByID[relTable]
	if !ok {
		return fmt.Errorf("unknown rel table %d", relTable)
	}
	neighborTable := rel.DstTable
	boundCol, neighborCol := "src_offset", "dst_offset"
	if dir == catalog.Bwd {
		neighborTable = rel.SrcTable
		boundCol, neighborCol = "dst_offset", "src_offset"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var outerErr error
	nodeIDs.State.ForEach(func(_, pos int) {
		if outerErr != nil {
			return
		}
		id := nodeIDs.GetNodeID(pos)
		var offset sql.NullInt64
		err := c.withConn(ctx, func(db *sql.DB) error {
			query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s LIMIT 1`,
				quoteIdent(neighborCol), quoteIdent(rel.Name), quoteIdent(boundCol), quoteIdent(neighborCol))
			return db.QueryRowContext(ctx, query, id.Offset).Scan(&offset)
		})
		if err == sql.ErrNoRows {
			out.SetNull(pos, true)
			return
		}
		if err != nil {
			outerErr = err
			return
		}
		if !offset.Valid {
			out.SetNull(pos, true)
			return
		}
		out.SetNodeID(pos, vector.NodeIDVal{TableID: uint64(neighborTable), Offset: uint64(offset.Int64)})
	})
	return outerErr
}

func (c *Catalog) AdjListIterator(relTable catalog.TableID, dir catalog.Direction, nodeID vector.NodeIDVal) (catalog.AdjListIterator, error) {
	rel, ok := c.relsByID[relTable]
	if !ok {
		return nil, fmt.Errorf("unknown rel table %d", relTable)
	}
	neighborTable := rel.DstTable
	boundCol, neighborCol := "src_offset", "dst_offset"
	if dir == catalog.Bwd {
		neighborTable = rel.SrcTable
		boundCol, neighborCol = "dst_offset", "src_offset"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var offsets []uint64
	err := c.withConn(ctx, func(db *sql.DB) error {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s`,
			quoteIdent(neighborCol), quoteIdent(rel.Name), quoteIdent(boundCol), quoteIdent(neighborCol))
		rows, err := db.QueryContext(ctx, query, nodeID.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var off uint64
			if err := rows.Scan(&off); err != nil {
				return err
			}
			offsets = append(offsets, off)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return &rowIterator{table: neighborTable, offsets: offsets}, nil
}

type rowIterator struct {
	table   catalog.TableID
	offsets []uint64
	idx     int
}

func (it *rowIterator) Next() (vector.NodeIDVal, bool) {
	if it.idx >= len(it.offsets) {
		return vector.NodeIDVal{}, false
	}
	off := it.offsets[it.idx]
	it.idx++
	return vector.NodeIDVal{TableID: uint64(it.table), Offset: off}, true
}

func quoteIdent(s string) string { return `"` + s + `"` }

func scanIntoVector(row *sql.Row, out *vector.Vector, pos int) error {
	switch out.Type {
	case vector.Int64:
		var v sql.NullInt64
		if err := row.Scan(&v); err != nil {
			return err
		}
		if !v.Valid {
			out.SetNull(pos, true)
			return nil
		}
		out.SetInt64(pos, v.Int64)
	case vector.Double:
		var v sql.NullFloat64
		if err := row.Scan(&v); err != nil {
			return err
		}
		if !v.Valid {
			out.SetNull(pos, true)
			return nil
		}
		out.SetDouble(pos, v.Float64)
	case vector.Bool:
		var v sql.NullBool
		if err := row.Scan(&v); err != nil {
			return err
		}
		if !v.Valid {
			out.SetNull(pos, true)
			return nil
		}
		out.SetBool(pos, v.Bool)
	default:
		var v sql.NullString
		if err := row.Scan(&v); err != nil {
			return err
		}
		if !v.Valid {
			out.SetNull(pos, true)
			return nil
		}
		out.SetString(pos, v.String)
	}
	return nil
}
