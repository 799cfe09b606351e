package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/catalog"
	"graphflow/internal/vector"
)

func loadTinysnb(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("tinysnb.yaml")
	require.NoError(t, err)
	return c
}

func TestLoadParsesNodeAndRelTables(t *testing.T) {
	c := loadTinysnb(t)

	person, ok := c.NodeTable("Person")
	require.True(t, ok)
	assert.Equal(t, catalog.TableID(1), person.ID)
	require.Len(t, person.Properties, 2)
	assert.Equal(t, "name", person.Properties[0].Name)
	assert.Equal(t, vector.String, person.Properties[0].Type)
	assert.Equal(t, vector.Int64, person.Properties[1].Type)

	knows, ok := c.RelTable("Knows")
	require.True(t, ok)
	assert.True(t, knows.ManyToMany)
	assert.Equal(t, catalog.TableID(1), knows.SrcTable)
	assert.Equal(t, catalog.TableID(1), knows.DstTable)
}

func TestMaxOffset(t *testing.T) {
	c := loadTinysnb(t)
	rows, err := c.MaxOffset(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rows)
}

func TestReadColumnString(t *testing.T) {
	c := loadTinysnb(t)

	ids := vector.NewVectorCapacity(vector.NodeID, 2)
	ids.SetNodeID(0, vector.NodeIDVal{TableID: 1, Offset: 0})
	ids.SetNodeID(1, vector.NodeIDVal{TableID: 1, Offset: 2})

	out := vector.NewVectorCapacity(vector.String, 2)
	require.NoError(t, c.ReadColumn(1, "name", ids, out))
	assert.Equal(t, "Alice", out.GetString(0))
	assert.Equal(t, "Carol", out.GetString(1))
}

func TestReadColumnInt64(t *testing.T) {
	c := loadTinysnb(t)

	ids := vector.NewVectorCapacity(vector.NodeID, 1)
	ids.SetNodeID(0, vector.NodeIDVal{TableID: 1, Offset: 1})

	out := vector.NewVectorCapacity(vector.Int64, 1)
	require.NoError(t, c.ReadColumn(1, "age", ids, out))
	assert.Equal(t, int64(45), out.GetInt64(0))
}

func TestAdjColumnManyToOne(t *testing.T) {
	c := loadTinysnb(t)

	ids := vector.NewVectorCapacity(vector.NodeID, 1)
	ids.SetNodeID(0, vector.NodeIDVal{TableID: 1, Offset: 0})

	out := vector.NewVectorCapacity(vector.NodeID, 1)
	require.NoError(t, c.AdjColumn(11, catalog.Fwd, ids, out))
	assert.Equal(t, vector.NodeIDVal{TableID: 2, Offset: 0}, out.GetNodeID(0))
}

func TestAdjListIteratorManyToMany(t *testing.T) {
	c := loadTinysnb(t)

	it, err := c.AdjListIterator(10, catalog.Fwd, vector.NodeIDVal{TableID: 1, Offset: 0})
	require.NoError(t, err)

	var got []vector.NodeIDVal
	for {
		nb, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, nb)
	}
	assert.Equal(t, []vector.NodeIDVal{
		{TableID: 1, Offset: 1},
		{TableID: 1, Offset: 2},
	}, got)
}

func TestAdjListIteratorBackwardDirection(t *testing.T) {
	c := loadTinysnb(t)

	it, err := c.AdjListIterator(10, catalog.Bwd, vector.NodeIDVal{TableID: 1, Offset: 3})
	require.NoError(t, err)

	var got []vector.NodeIDVal
	for {
		nb, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, nb)
	}
	assert.Equal(t, []vector.NodeIDVal{
		{TableID: 1, Offset: 1},
		{TableID: 1, Offset: 2},
	}, got)
}

func TestAllNodeAndRelTablesSorted(t *testing.T) {
	c := loadTinysnb(t)

	nodes := c.AllNodeTables()
	require.Len(t, nodes, 2)
	assert.Equal(t, catalog.TableID(1), nodes[0].ID)
	assert.Equal(t, catalog.TableID(2), nodes[1].ID)

	rels := c.AllRelTables()
	require.Len(t, rels, 2)
	assert.Equal(t, catalog.TableID(10), rels[0].ID)
	assert.Equal(t, catalog.TableID(11), rels[1].ID)
}

func TestBoundAndNeighborTables(t *testing.T) {
	c := loadTinysnb(t)
	works, ok := c.RelTable("WorksAt")
	require.True(t, ok)

	bound, neighbor := c.BoundAndNeighborTables(works, catalog.Fwd)
	assert.Equal(t, catalog.TableID(1), bound)
	assert.Equal(t, catalog.TableID(2), neighbor)

	bound, neighbor = c.BoundAndNeighborTables(works, catalog.Bwd)
	assert.Equal(t, catalog.TableID(2), bound)
	assert.Equal(t, catalog.TableID(1), neighbor)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}
