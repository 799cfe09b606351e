package operator

import (
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// Expr computes one output column from a chunk into a pre-typed out
// vector sharing the chunk's selection state.
type Expr func(chunk *vector.DataChunk, out *vector.Vector) error

// Projection computes a list of expressions into fresh result vectors. It
// only ever reads rs.Chunks[0]: every operator in this package produces at
// most one chunk per ResultSet, so there are no further chunks to carry
// forward. A childless ResultSet (no chunks at all, e.g. a bare COUNT_STAR
// source) still propagates its Multiplicity untouched, so the row count it
// represents survives the projection.
type Projection struct {
	Child   Operator
	Exprs   []Expr
	OutType []vector.LogicalType

	result *vector.ResultSet
	outs   []*vector.Vector
}

func NewProjection(child Operator, exprs []Expr, outTypes []vector.LogicalType) *Projection {
	return &Projection{Child: child, Exprs: exprs, OutType: outTypes}
}

func (p *Projection) InitResultSet(mm *memmgr.MemoryManager) error {
	if err := p.Child.InitResultSet(mm); err != nil {
		return err
	}
	p.outs = make([]*vector.Vector, len(p.OutType))
	for i, t := range p.OutType {
		p.outs[i] = vector.NewVector(t)
	}
	return nil
}

func (p *Projection) ReInitToRerun() { p.Child.ReInitToRerun() }

func (p *Projection) Next() (bool, error) {
	ok, err := p.Child.Next()
	if err != nil || !ok {
		return ok, err
	}
	rs := p.Child.ResultSet()
	if len(rs.Chunks) == 0 {
		p.result = vector.NewResultSet()
		p.result.Multiplicity = rs.Multiplicity
		return true, nil
	}
	chunk := rs.Chunks[0]
	for _, v := range p.outs {
		v.Reserve(chunk.Vectors[0].Capacity())
		v.State = chunk.State
	}
	for i, expr := range p.Exprs {
		if err := expr(chunk, p.outs[i]); err != nil {
			return false, err
		}
	}
	outChunk := &vector.DataChunk{Vectors: p.outs, State: chunk.State}
	p.result = vector.NewResultSet(outChunk)
	p.result.Multiplicity = rs.Multiplicity
	return true, nil
}

func (p *Projection) ResultSet() *vector.ResultSet { return p.result }

func (p *Projection) Clone() Operator {
	return &Projection{Child: p.Child.Clone(), Exprs: p.Exprs, OutType: p.OutType}
}
