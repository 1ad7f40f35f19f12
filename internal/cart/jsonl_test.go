package cart

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	c := types.Cart{
		{ID: "a", PageKey: "home", Name: "A", Price: 1.5, Qty: 2},
		{ID: "b", Name: "B", Price: 3, Qty: 1},
	}

	require.NoError(t, WriteJSONL(&buf, c))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":"a","page":"home","name":"A","price":1.5,"image":null,"qty":2}`, lines[0])
	assert.JSONEq(t, `{"id":"b","name":"B","price":3,"image":null,"qty":1}`, lines[1])
}

func TestReadJSONL_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a","page":"home","name":"A","price":1.5,"image":null,"qty":2}`,
		``,
		`not json`,
		`{"id":"b","name":"B","price":3,"image":null,"qty":1}`,
		`{"id":"c","qty":"x"}`,
	}, "\n")

	c, skipped, err := ReadJSONL(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, skipped)
	require.Len(t, c, 2)
	assert.Equal(t, "a", c[0].ID)
	assert.Equal(t, "b", c[1].ID)
}

func TestReadJSONL_Empty(t *testing.T) {
	c, skipped, err := ReadJSONL(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, types.Cart{}, c)
}
