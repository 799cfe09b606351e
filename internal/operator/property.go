package operator

import (
	"graphflow/internal/catalog"
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// ScanProperty reads a property column for the NodeID vector produced by
// its child, appending the result as a new column in the output chunk.
// Structured properties do a fixed-width column lookup; Unstructured
// properties walk a packed (key,type,value) list per node, matching the
// target key, per §4.C.
type ScanProperty struct {
	Child        Operator
	Storage      catalog.Storage
	Table        catalog.TableID
	Property     string
	PropertyType vector.LogicalType
	Unstructured bool

	result *vector.ResultSet
	outCol *vector.Vector
}

func NewScanProperty(child Operator, storage catalog.Storage, table catalog.TableID, property string, propType vector.LogicalType, unstructured bool) *ScanProperty {
	return &ScanProperty{Child: child, Storage: storage, Table: table, Property: property, PropertyType: propType, Unstructured: unstructured}
}

func (s *ScanProperty) InitResultSet(mm *memmgr.MemoryManager) error {
	if err := s.Child.InitResultSet(mm); err != nil {
		return err
	}
	if s.Unstructured {
		s.outCol = vector.NewVector(vector.Unstructured)
	} else {
		s.outCol = vector.NewVector(s.PropertyType)
	}
	return nil
}

func (s *ScanProperty) ReInitToRerun() { s.Child.ReInitToRerun() }

func (s *ScanProperty) Next() (bool, error) {
	ok, err := s.Child.Next()
	if err != nil || !ok {
		return ok, err
	}
	rs := s.Child.ResultSet()
	chunk := rs.Chunks[0]
	srcCol := findNodeIDVector(chunk)
	s.outCol.Reserve(srcCol.Capacity())
	s.outCol.State = chunk.State

	var readErr error
	if s.Unstructured {
		readErr = s.Storage.ReadUnstructured(s.Table, s.Property, srcCol, s.outCol)
	} else {
		readErr = s.Storage.ReadColumn(s.Table, s.Property, srcCol, s.outCol)
	}
	if readErr != nil {
		return false, readErr
	}

	newChunk := &vector.DataChunk{
		Vectors: append(append([]*vector.Vector{}, chunk.Vectors...), s.outCol),
		State:   chunk.State,
	}
	s.result = vector.NewResultSet(newChunk)
	s.result.Multiplicity = rs.Multiplicity
	return true, nil
}

func (s *ScanProperty) ResultSet() *vector.ResultSet { return s.result }

func (s *ScanProperty) Clone() Operator {
	return &ScanProperty{
		Child: s.Child.Clone(), Storage: s.Storage, Table: s.Table,
		Property: s.Property, PropertyType: s.PropertyType, Unstructured: s.Unstructured,
	}
}
