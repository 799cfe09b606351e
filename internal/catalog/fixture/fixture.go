// Package fixture loads a YAML-encoded node/rel-table dataset (the
// tinysnb fixture used by the §8 end-to-end scenarios) into an
// in-memory catalog.Catalog + catalog.Storage pair, for tests and local
// development without a real database.
package fixture

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"graphflow/internal/catalog"
	"graphflow/internal/vector"
)

// propertySpec is one property's YAML shape: {name, type}.
type propertySpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type nodeTableSpec struct {
	ID         uint64                   `yaml:"id"`
	Name       string                   `yaml:"name"`
	Properties []propertySpec           `yaml:"properties"`
	Rows       []map[string]interface{} `yaml:"rows"`
}

type edgeSpec struct {
	Src        uint64                 `yaml:"src"`
	Dst        uint64                 `yaml:"dst"`
	Properties map[string]interface{} `yaml:"properties"`
}

type relTableSpec struct {
	ID         uint64         `yaml:"id"`
	Name       string         `yaml:"name"`
	SrcTable   uint64         `yaml:"src_table"`
	DstTable   uint64         `yaml:"dst_table"`
	ManyToMany bool           `yaml:"many_to_many"`
	Properties []propertySpec `yaml:"properties"`
	Edges      []edgeSpec     `yaml:"edges"`
}

type document struct {
	NodeTables []nodeTableSpec `yaml:"node_tables"`
	RelTables  []relTableSpec  `yaml:"rel_tables"`
}

func parseType(s string) vector.LogicalType {
	switch strings.ToUpper(s) {
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

// relAdjacency indexes a rel table's edges by source and by destination
// node offset, so AdjColumn/AdjListIterator can answer either direction
// without a linear scan.
type relAdjacency struct {
	schema   catalog.RelTableSchema
	fwd      map[uint64][]uint64 // src offset -> dst offsets
	bwd      map[uint64][]uint64 // dst offset -> src offsets
}

// Catalog is an in-memory catalog.Catalog + catalog.Storage backed by a
// loaded fixture document.
type Catalog struct {
	nodesByID   map[catalog.TableID]catalog.NodeTableSchema
	nodesByName map[string]catalog.NodeTableSchema
	relsByID    map[catalog.TableID]catalog.RelTableSchema
	relsByName  map[string]catalog.RelTableSchema

	rowCounts map[catalog.TableID]uint64
	columns   map[catalog.TableID]map[string][]interface{} // table -> property -> value per offset
	adjacency map[catalog.TableID]*relAdjacency
}

// Load reads and parses a fixture YAML file into a ready Catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	return build(doc)
}

func build(doc document) (*Catalog, error) {
	c := &Catalog{
		nodesByID:   map[catalog.TableID]catalog.NodeTableSchema{},
		nodesByName: map[string]catalog.NodeTableSchema{},
		relsByID:    map[catalog.TableID]catalog.RelTableSchema{},
		relsByName:  map[string]catalog.RelTableSchema{},
		rowCounts:   map[catalog.TableID]uint64{},
		columns:     map[catalog.TableID]map[string][]interface{}{},
		adjacency:   map[catalog.TableID]*relAdjacency{},
	}

	for _, nt := range doc.NodeTables {
		props := make([]catalog.PropertySchema, len(nt.Properties))
		for i, p := range nt.Properties {
			props[i] = catalog.PropertySchema{Name: p.Name, Type: parseType(p.Type)}
		}
		schema := catalog.NodeTableSchema{ID: catalog.TableID(nt.ID), Name: nt.Name, Properties: props}
		c.nodesByID[schema.ID] = schema
		c.nodesByName[nt.Name] = schema
		c.rowCounts[schema.ID] = uint64(len(nt.Rows))

		byProp := map[string][]interface{}{}
		for _, p := range props {
			vals := make([]interface{}, len(nt.Rows))
			for i, row := range nt.Rows {
				vals[i] = row[p.Name]
			}
			byProp[p.Name] = vals
		}
		c.columns[schema.ID] = byProp
	}

	for _, rt := range doc.RelTables {
		props := make([]catalog.PropertySchema, len(rt.Properties))
		for i, p := range rt.Properties {
			props[i] = catalog.PropertySchema{Name: p.Name, Type: parseType(p.Type)}
		}
		schema := catalog.RelTableSchema{
			ID: catalog.TableID(rt.ID), Name: rt.Name,
			SrcTable: catalog.TableID(rt.SrcTable), DstTable: catalog.TableID(rt.DstTable),
			ManyToMany: rt.ManyToMany, Properties: props,
		}
		c.relsByID[schema.ID] = schema
		c.relsByName[rt.Name] = schema

		adj := &relAdjacency{schema: schema, fwd: map[uint64][]uint64{}, bwd: map[uint64][]uint64{}}
		for _, e := range rt.Edges {
			adj.fwd[e.Src] = append(adj.fwd[e.Src], e.Dst)
			adj.bwd[e.Dst] = append(adj.bwd[e.Dst], e.Src)
		}
		for _, lst := range adj.fwd {
			sort.Slice(lst, func(i, j int) bool { return lst[i] < lst[j] })
		}
		for _, lst := range adj.bwd {
			sort.Slice(lst, func(i, j int) bool { return lst[i] < lst[j] })
		}
		c.adjacency[schema.ID] = adj
	}

	return c, nil
}

// --- catalog.Catalog ---

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
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) AllRelTables() []catalog.RelTableSchema {
	out := make([]catalog.RelTableSchema, 0, len(c.relsByID))
	for _, s := range c.relsByID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- catalog.Storage ---

func (c *Catalog) MaxOffset(table catalog.TableID) (uint64, error) {
	return c.rowCounts[table], nil
}

func (c *Catalog) ReadColumn(table catalog.TableID, property string, nodeIDs, out *vector.Vector) error {
	col := c.columns[table][property]
	nodeIDs.State.ForEach(func(_, pos int) {
		id := nodeIDs.GetNodeID(pos)
		if int(id.Offset) >= len(col) || col[int(id.Offset)] == nil {
			out.SetNull(pos, true)
			return
		}
		setScalarFromYAML(out, pos, col[int(id.Offset)])
	})
	return nil
}

func (c *Catalog) ReadUnstructured(table catalog.TableID, property string, nodeIDs, out *vector.Vector) error {
	return c.ReadColumn(table, property, nodeIDs, out)
}

func (c *Catalog) AdjColumn(relTable catalog.TableID, dir catalog.Direction, nodeIDs, out *vector.Vector) error {
	adj := c.adjacency[relTable]
	neighborTable := adj.schema.DstTable
	list := adj.fwd
	if dir == catalog.Bwd {
		neighborTable = adj.schema.SrcTable
		list = adj.bwd
	}
	nodeIDs.State.ForEach(func(_, pos int) {
		id := nodeIDs.GetNodeID(pos)
		neighbors := list[id.Offset]
		if len(neighbors) == 0 {
			out.SetNull(pos, true)
			return
		}
		out.SetNodeID(pos, vector.NodeIDVal{TableID: uint64(neighborTable), Offset: neighbors[0]})
	})
	return nil
}

func (c *Catalog) AdjListIterator(relTable catalog.TableID, dir catalog.Direction, nodeID vector.NodeIDVal) (catalog.AdjListIterator, error) {
	adj := c.adjacency[relTable]
	neighborTable := adj.schema.DstTable
	list := adj.fwd
	if dir == catalog.Bwd {
		neighborTable = adj.schema.SrcTable
		list = adj.bwd
	}
	return &listIterator{table: neighborTable, offsets: list[nodeID.Offset]}, nil
}

type listIterator struct {
	table   catalog.TableID
	offsets []uint64
	idx     int
}

func (it *listIterator) Next() (vector.NodeIDVal, bool) {
	if it.idx >= len(it.offsets) {
		return vector.NodeIDVal{}, false
	}
	off := it.offsets[it.idx]
	it.idx++
	return vector.NodeIDVal{TableID: uint64(it.table), Offset: off}, true
}

// setScalarFromYAML writes a YAML-decoded value (string, int, float64,
// bool — yaml.v3's native decode types) into out at pos, matching out's
// declared LogicalType.
func setScalarFromYAML(out *vector.Vector, pos int, v interface{}) {
	switch val := v.(type) {
	case string:
		out.SetString(pos, val)
	case int:
		out.SetInt64(pos, int64(val))
	case int64:
		out.SetInt64(pos, val)
	case float64:
		out.SetDouble(pos, val)
	case bool:
		out.SetBool(pos, val)
	default:
		out.SetString(pos, fmt.Sprintf("%v", val))
	}
}
