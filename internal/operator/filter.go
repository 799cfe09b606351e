package operator

import (
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
	"graphflow/internal/xerrors"
)

// Predicate evaluates a boolean expression over one chunk, writing a Bool
// vector sharing the chunk's selection state. Filter/Projection callers
// (built by the materializer from the expression tree) supply this.
type Predicate func(chunk *vector.DataChunk) (*vector.Vector, error)

// Filter evaluates Pred to a filtered position list and narrows the
// chunk's selection state in place, retrying the child until it finds at
// least one surviving tuple or reaches end of stream.
type Filter struct {
	Child Operator
	Pred  Predicate

	result *vector.ResultSet
}

func NewFilter(child Operator, pred Predicate) *Filter {
	return &Filter{Child: child, Pred: pred}
}

func (f *Filter) InitResultSet(mm *memmgr.MemoryManager) error { return f.Child.InitResultSet(mm) }
func (f *Filter) ReInitToRerun()                                { f.Child.ReInitToRerun() }

func (f *Filter) Next() (bool, error) {
	for {
		ok, err := f.Child.Next()
		if err != nil || !ok {
			return ok, err
		}
		rs := f.Child.ResultSet()
		var chunks []*vector.DataChunk
		for _, chunk := range rs.Chunks {
			boolCol, err := f.Pred(chunk)
			if err != nil {
				return false, err
			}
			if boolCol.Type != vector.Bool {
				return false, xerrors.PredicateTypeErr("operator.Filter", "predicate evaluated to %s, not BOOL", boolCol.Type)
			}
			keep := make([]bool, chunk.Cardinality())
			any := false
			chunk.State.ForEach(func(i, pos int) {
				if !boolCol.IsNull(pos) && boolCol.GetBool(pos) {
					keep[i] = true
					any = true
				}
			})
			if !any {
				continue
			}
			narrowed := chunk.State.Filter(keep)
			newChunk := &vector.DataChunk{Vectors: chunk.Vectors, State: narrowed}
			for _, v := range newChunk.Vectors {
				v.State = narrowed
			}
			chunks = append(chunks, newChunk)
		}
		if len(chunks) == 0 {
			continue
		}
		f.result = &vector.ResultSet{Chunks: chunks, Multiplicity: rs.Multiplicity}
		return true, nil
	}
}

func (f *Filter) ResultSet() *vector.ResultSet { return f.result }

func (f *Filter) Clone() Operator {
	return &Filter{Child: f.Child.Clone(), Pred: f.Pred}
}
