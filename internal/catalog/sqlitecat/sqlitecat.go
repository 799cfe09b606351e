// Package sqlitecat is a SQLite-backed catalog.Catalog + catalog.Storage,
// meant for single-process local development and tests against a dataset
// too large for the YAML fixture but not needing a server. SQLite only
// tolerates one writer at a time, so unlike pgcat this package holds a
// single *sql.DB and leans on database/sql's own connection management
// rather than an external pool.
package sqlitecat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"graphflow/internal/catalog"
	"graphflow/internal/logging"
	"graphflow/internal/vector"
)

type propertyRow struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Catalog is a SQLite-backed reference implementation of catalog.Catalog
// and catalog.Storage. The expected schema is one table per node/rel
// label plus graphflow_node_tables / graphflow_rel_tables metadata
// tables, mirroring pgcat's layout.
type Catalog struct {
	db *sql.DB

	nodesByID   map[catalog.TableID]catalog.NodeTableSchema
	nodesByName map[string]catalog.NodeTableSchema
	relsByID    map[catalog.TableID]catalog.RelTableSchema
	relsByName  map[string]catalog.RelTableSchema
}

// Open opens the SQLite file at path and loads schema metadata.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers; keep one connection.

	c := &Catalog{
		db:          db,
		nodesByID:   map[catalog.TableID]catalog.NodeTableSchema{},
		nodesByName: map[string]catalog.NodeTableSchema{},
		relsByID:    map[catalog.TableID]catalog.RelTableSchema{},
		relsByName:  map[string]catalog.RelTableSchema{},
	}
	if err := c.loadSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.CatalogLogger.Info("sqlite catalog opened",
		"path", path, "node_tables", len(c.nodesByID), "rel_tables", len(c.relsByID))
	return c, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) loadSchema(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, properties FROM graphflow_node_tables`)
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

	relRows, err := c.db.QueryContext(ctx, `SELECT id, name, src_table, dst_table, many_to_many, properties FROM graphflow_rel_tables`)
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var count uint64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, quoteIdent(schema.Name))).Scan(&count)
	return count, err
}

func (c *Catalog) ReadColumn(table catalog.TableID, property string, nodeIDs, out *vector.Vector) error {
	schema, ok := c.nodesByID[table]
	if !ok {
		return fmt.Errorf("unknown node table %d", table)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE "offset" = ?`, quoteIdent(property), quoteIdent(schema.Name))
	var outerErr error
	nodeIDs.State.ForEach(func(_, pos int) {
		if outerErr != nil {
			return
		}
		id := nodeIDs.GetNodeID(pos)
		row := c.db.QueryRowContext(ctx, query, id.Offset)
		if err := scanIntoVector(row, out, pos); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY %s LIMIT 1`,
		quoteIdent(neighborCol), quoteIdent(rel.Name), quoteIdent(boundCol), quoteIdent(neighborCol))

	var outerErr error
	nodeIDs.State.ForEach(func(_, pos int) {
		if outerErr != nil {
			return
		}
		id := nodeIDs.GetNodeID(pos)
		var offset sql.NullInt64
		err := c.db.QueryRowContext(ctx, query, id.Offset).Scan(&offset)
		if err == sql.ErrNoRows || !offset.Valid {
			out.SetNull(pos, true)
			return
		}
		if err != nil {
			outerErr = err
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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY %s`,
		quoteIdent(neighborCol), quoteIdent(rel.Name), quoteIdent(boundCol), quoteIdent(neighborCol))
	rows, err := c.db.QueryContext(ctx, query, nodeID.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offsets []uint64
	for rows.Next() {
		var off uint64
		if err := rows.Scan(&off); err != nil {
			return nil, err
		}
		offsets = append(offsets, off)
	}
	if err := rows.Err(); err != nil {
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
