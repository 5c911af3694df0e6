package parsedmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireFormat(t *testing.T) {
	pm := mustParse(t, "import os\nX = 1\ndef foo():\n    pass\n")

	data, err := pm.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"file": {"path": null, "imports": ["os"], "globals": ["X"]},
		"functions": [{
			"name": "foo", "start_line": 3, "end_line": 4,
			"params": [], "returns": [], "calls": [], "called_by": [],
			"control_flow": {"if": false, "while": false},
			"recursion": false
		}],
		"call_graph": {"foo": []}
	}`, string(data))
}

func TestEncode_EmptyMapUsesEmptyCollections(t *testing.T) {
	data, err := mustParse(t, "").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"file": {"path": null, "imports": [], "globals": []},
		"functions": [],
		"call_graph": {}
	}`, string(data))
}

func TestDecode_RoundTripAndNulls(t *testing.T) {
	pm := mustParse(t, "def a():\n    b()\ndef b():\n    return 1\n")
	data, err := pm.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, pm, got)

	sparse, err := Decode([]byte(`{"file":{"path":null},"functions":[{"name":"f","calls":null}],"call_graph":{"f":null}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{}, sparse.File.Imports)
	assert.Equal(t, []string{}, sparse.Functions[0].Calls)
	assert.Equal(t, []string{}, sparse.CallGraph["f"])

	_, err = Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestClone_IsIndependent(t *testing.T) {
	pm := mustParse(t, "import os\ndef a():\n    b()\ndef b():\n    return 1\n")
	clone := pm.Clone()
	require.Equal(t, pm, clone)

	clone.File.Imports[0] = "sys"
	clone.Functions[0].Calls[0] = "changed"
	clone.CallGraph["a"][0] = "changed"
	clone.Functions[1].CalledBy = append(clone.Functions[1].CalledBy, "x")

	assert.Equal(t, "os", pm.File.Imports[0])
	assert.Equal(t, "b", pm.Functions[0].Calls[0])
	assert.Equal(t, []string{"b"}, pm.CallGraph["a"])
	assert.Equal(t, []string{"a"}, pm.Functions[1].CalledBy)

	var nilMap *ParsedMap
	assert.Nil(t, nilMap.Clone())
}

func TestEdges_SortedByCaller(t *testing.T) {
	pm := mustParse(t, "def z():\n    a()\ndef a():\n    a()\n    z()\n")
	assert.Equal(t, [][2]string{{"a", "a"}, {"a", "z"}, {"z", "a"}}, pm.Edges())
}

func TestFunction_Missing(t *testing.T) {
	pm := mustParse(t, "def a():\n    pass\n")
	fn, ok := pm.Function("missing")
	assert.False(t, ok)
	assert.Nil(t, fn)
}

func TestFunction_RedefinedNameResolvesToLast(t *testing.T) {
	pm := mustParse(t, "def f():\n    return 1\n\ndef g():\n    pass\n\ndef f():\n    return 2\n")
	require.Len(t, pm.Functions, 3)

	fn, ok := pm.Function("f")
	require.True(t, ok)
	assert.Equal(t, 7, fn.StartLine)
	assert.Equal(t, []string{"2"}, fn.Returns)
	assert.Same(t, &pm.Functions[2], fn)
}

func TestParseContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pm, err := ParseContext(ctx, []byte("x = 1\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, pm)
}
