package pgcat

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/config"
)

// TestOpenAgainstLiveDatabase exercises Open/Close/MaxOffset against a real
// Postgres instance. Skipped unless GRAPHFLOW_TEST_POSTGRES_DSN is set to
// a non-empty value; the value itself is not used: the test connects to
// the graphflow_test database on localhost, which must have its
// graphflow_node_tables / graphflow_rel_tables metadata tables populated.
func TestOpenAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("GRAPHFLOW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set GRAPHFLOW_TEST_POSTGRES_DSN to run pgcat integration tests")
	}

	cfg := config.PostgresConfig{Host: "localhost", Database: "graphflow_test", SSLMode: "disable"}
	c, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	nodes := c.AllNodeTables()
	assert.NotEmpty(t, nodes)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Person"`, quoteIdent("Person"))
}

func TestDecodePropertiesEmpty(t *testing.T) {
	props, err := decodeProperties("")
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestDecodePropertiesParsesTypes(t *testing.T) {
	props, err := decodeProperties(`[{"name":"age","type":"INT64"}]`)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "age", props[0].Name)
}
