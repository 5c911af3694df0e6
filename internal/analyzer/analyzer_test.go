package analyzer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pyannotate/internal/pysyntax"
)

const nestedSrc = "def outer():\n    def inner():\n        return 1\n    return inner()\n"

func newAnalyzer(t *testing.T, cfg Config) *Analyzer {
	t.Helper()
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", "python", name)
}

func TestAnalyze_Basic(t *testing.T) {
	a := newAnalyzer(t, Config{})

	pm, err := a.Analyze(context.Background(), []byte("import os\ndef f():\n    return os.getcwd()\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"os"}, pm.File.Imports)
	assert.Equal(t, []string{"f"}, pm.FunctionNames())
}

func TestAnalyze_SyntaxError(t *testing.T) {
	a := newAnalyzer(t, Config{})

	pm, err := a.Analyze(context.Background(), []byte("def f(:\n"))
	require.ErrorIs(t, err, pysyntax.ErrSyntax)
	assert.Nil(t, pm)
	assert.Equal(t, 0, a.cache.Len(), "failures are not cached")
}

func TestAnalyze_CacheReturnsIndependentCopies(t *testing.T) {
	a := newAnalyzer(t, Config{CacheSize: 4})
	src := []byte("def f():\n    g()\ndef g():\n    pass\n")

	first, err := a.Analyze(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, a.cache.Len())

	first.Functions[0].Calls[0] = "mutated"

	second, err := a.Analyze(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, second.Functions[0].Calls)
	assert.Equal(t, 1, a.cache.Len())
}

func TestAnalyze_CacheDisabled(t *testing.T) {
	a := newAnalyzer(t, Config{CacheSize: -1})
	assert.Nil(t, a.cache)

	pm, err := a.Analyze(context.Background(), []byte("X = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, pm.File.Globals)
}

func TestAnalyze_IsolatedNestedScopes(t *testing.T) {
	full := newAnalyzer(t, Config{})
	isolated := newAnalyzer(t, Config{IsolateNestedScopes: true})

	pm, err := full.Analyze(context.Background(), []byte(nestedSrc))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "inner()"}, pm.Functions[0].Returns)

	pm, err = isolated.Analyze(context.Background(), []byte(nestedSrc))
	require.NoError(t, err)
	assert.Equal(t, []string{"inner()"}, pm.Functions[0].Returns)

	assert.NotEqual(t, cacheKey([]byte(nestedSrc), false), cacheKey([]byte(nestedSrc), true))
}

func TestAnalyzeScoped_OverridesConfig(t *testing.T) {
	isolated := newAnalyzer(t, Config{IsolateNestedScopes: true})
	ctx := context.Background()

	pm, err := isolated.AnalyzeScoped(ctx, []byte(nestedSrc), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "inner()"}, pm.Functions[0].Returns)

	pm, err = isolated.AnalyzeScoped(ctx, []byte(nestedSrc), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"inner()"}, pm.Functions[0].Returns)

	pm, err = isolated.Analyze(ctx, []byte(nestedSrc))
	require.NoError(t, err)
	assert.Equal(t, []string{"inner()"}, pm.Functions[0].Returns, "cached full map must not leak into the default mode")
}

func TestAnalyze_DeadlineExceeded(t *testing.T) {
	a := newAnalyzer(t, Config{CacheSize: -1, Timeout: time.Minute})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	pm, err := a.Analyze(ctx, []byte("x = 1\n"))
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, pm)
}

func TestAnalyzeFiles_MixedResults(t *testing.T) {
	a := newAnalyzer(t, Config{})
	paths := []string{
		fixture("inventory.py"),
		fixture("broken.py"),
		fixture("missing.py"),
		fixture("nested.py"),
	}

	results, err := a.AnalyzeFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, results, len(paths))

	for i, r := range results {
		assert.Equal(t, paths[i], r.Path, "results keep input order")
	}

	assert.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Map)
	assert.Contains(t, results[0].Map.FunctionNames(), "load")

	assert.ErrorIs(t, results[1].Err, pysyntax.ErrSyntax)
	assert.Nil(t, results[1].Map)

	assert.Error(t, results[2].Err)
	assert.Contains(t, results[2].Error(), "missing.py")

	assert.NoError(t, results[3].Err)
	assert.Empty(t, results[3].Error())
	assert.Equal(t, []string{"outer", "helper", "decorated"}, results[3].Map.FunctionNames())
	require.NotNil(t, results[3].Map.File.Path)
	assert.Equal(t, paths[3], *results[3].Map.File.Path)
}

func TestAnalyzeFiles_Cancelled(t *testing.T) {
	a := newAnalyzer(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := a.AnalyzeFiles(ctx, []string{fixture("inventory.py")}, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestAnalyzeFiles_Empty(t *testing.T) {
	a := newAnalyzer(t, Config{})
	results, err := a.AnalyzeFiles(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
