package operator

import (
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// ResultCollector is the terminal operator of a pipeline: it drains its
// child to exhaustion, copying each produced tuple into an owned result
// log (Rows) so the values outlive the operator tree once the pipeline's
// vectors are recycled back to the MemoryManager.
type ResultCollector struct {
	Child Operator

	Rows         [][]vector.Scalar
	Multiplicity uint64

	drained bool
}

func NewResultCollector(child Operator) *ResultCollector {
	return &ResultCollector{Child: child}
}

func (c *ResultCollector) InitResultSet(mm *memmgr.MemoryManager) error {
	return c.Child.InitResultSet(mm)
}

func (c *ResultCollector) ReInitToRerun() {
	c.Child.ReInitToRerun()
	c.Rows = nil
	c.Multiplicity = 0
	c.drained = false
}

// Next drains the child entirely on its first call, appending one []Scalar
// row per tuple across every emitted chunk, then reports false: a
// ResultCollector produces no further rows of its own.
func (c *ResultCollector) Next() (bool, error) {
	if c.drained {
		return false, nil
	}
	c.drained = true
	for {
		ok, err := c.Child.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		rs := c.Child.ResultSet()
		c.Multiplicity += rs.Multiplicity
		for _, chunk := range rs.Chunks {
			chunk.State.ForEach(func(_, pos int) {
				row := make([]vector.Scalar, len(chunk.Vectors))
				for i, v := range chunk.Vectors {
					row[i] = v.GetScalar(pos)
				}
				c.Rows = append(c.Rows, row)
			})
		}
	}
}

func (c *ResultCollector) ResultSet() *vector.ResultSet { return nil }

func (c *ResultCollector) Clone() Operator {
	return &ResultCollector{Child: c.Child.Clone()}
}
