// Package catalog defines the external interfaces the query execution
// core depends on but does not implement: Storage (column/adjacency
// reads), Catalog (schema metadata), and the reference backends
// (sqlitecat, pgcat) that satisfy them over a real dataset.
package catalog

import "graphflow/internal/vector"

// Direction is the adjacency-list/column direction a rel table is walked
// in: forward (src->dst) or backward (dst->src).
type Direction uint8

const (
	Fwd Direction = iota
	Bwd
)

// TableID identifies a node or rel table within the catalog.
type TableID uint64

// Storage provides the column and adjacency-list reads the core's scan and
// extend operators pull from. Implementations own the on-disk or in-memory
// representation; the core never reaches past this interface.
type Storage interface {
	// MaxOffset returns the number of rows in a node table.
	MaxOffset(table TableID) (uint64, error)

	// ReadColumn reads a structured property column at the given node IDs
	// into out, which must already be sized/typed for the property.
	ReadColumn(table TableID, property string, nodeIDs *vector.Vector, out *vector.Vector) error

	// ReadUnstructured reads a schema-less property by walking the packed
	// (key,type,value) list for each requested node.
	ReadUnstructured(table TableID, property string, nodeIDs *vector.Vector, out *vector.Vector) error

	// AdjColumn returns, for each requested node, its single neighbor
	// NodeID (or null if none) across the named rel table and direction.
	AdjColumn(relTable TableID, dir Direction, nodeIDs *vector.Vector, out *vector.Vector) error

	// AdjListIterator returns an iterator over the (possibly many)
	// neighbors of a single bound node across the named rel table and
	// direction.
	AdjListIterator(relTable TableID, dir Direction, nodeID vector.NodeIDVal) (AdjListIterator, error)
}

// AdjListIterator walks the variable-width neighbor list of one bound
// node. Implementations may stream from storage; the core consumes it
// across multiple next() calls of AdjListExtend.
type AdjListIterator interface {
	// Next returns the next neighbor and true, or the zero value and
	// false when exhausted.
	Next() (vector.NodeIDVal, bool)
}

// PropertySchema describes one property of a node or rel table.
type PropertySchema struct {
	Name string
	Type vector.LogicalType
}

// RelTableSchema describes the node tables a rel table connects, by
// direction, and whether it is a many-to-many relationship (affects
// multiplicity assumptions in the cost model).
type RelTableSchema struct {
	ID          TableID
	Name        string
	SrcTable    TableID
	DstTable    TableID
	ManyToMany  bool
	Properties  []PropertySchema
}

// NodeTableSchema describes one node table.
type NodeTableSchema struct {
	ID         TableID
	Name       string
	Properties []PropertySchema
}

// Catalog exposes schema metadata: table IDs, properties, and
// direction-aware bound/neighbor table IDs for a rel table.
type Catalog interface {
	NodeTable(name string) (NodeTableSchema, bool)
	RelTable(name string) (RelTableSchema, bool)
	NodeTableByID(id TableID) (NodeTableSchema, bool)
	RelTableByID(id TableID) (RelTableSchema, bool)

	// BoundAndNeighborTables returns, for a rel table walked in dir, the
	// node table the binding side belongs to and the node table on the
	// other end.
	BoundAndNeighborTables(rel RelTableSchema, dir Direction) (bound, neighbor TableID)

	AllNodeTables() []NodeTableSchema
	AllRelTables() []RelTableSchema
}
