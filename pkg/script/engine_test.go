package script

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	return NewEngine(Config{AllowedEnv: []string{"REPORTGEN_TEST_REGION"}}, slog.Default())
}

func TestEngine_ExecuteReturnsMapping(t *testing.T) {
	engine := newTestEngine(t)

	source := `
def main(process_args, db):
    names = [n.upper() for n in process_args["names"]]
    return {"greeting": "Hi", "names": names, "count": len(names)}
`

	result, err := engine.Execute(context.Background(), source, "main",
		map[string]any{"names": []string{"ava", "bo"}}, NewDataSourceFromDB(nil))
	require.NoError(t, err)

	mapping, ok := result.Mapping()
	require.True(t, ok)
	assert.Equal(t, "Hi", mapping["greeting"])
	assert.Equal(t, []any{"AVA", "BO"}, mapping["names"])
	assert.Equal(t, int64(2), mapping["count"])
	assert.True(t, result.Truth())
}

func TestEngine_ResultTruth(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{name: "true", source: "def main(a, db):\n    return True\n", want: true},
		{name: "false", source: "def main(a, db):\n    return False\n", want: false},
		{name: "none", source: "def main(a, db):\n    pass\n", want: false},
		{name: "empty list", source: "def main(a, db):\n    return []\n", want: false},
		{name: "non empty dict", source: "def main(a, db):\n    return {\"x\": 1}\n", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Execute(context.Background(), tt.source, "main", map[string]any{}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Truth())
		})
	}
}

func TestEngine_NonMappingResult(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Execute(context.Background(), "def main(a, db):\n    return [1, 2]\n", "main", nil, nil)
	require.NoError(t, err)

	_, ok := result.Mapping()
	assert.False(t, ok)
	assert.Equal(t, []any{int64(1), int64(2)}, result.Value())
}

func TestEngine_EntryPointMissing(t *testing.T) {
	engine := newTestEngine(t)

	tests := map[string]string{
		"undefined":    "def other():\n    return 1\n",
		"not callable": "main = 3\n",
	}

	for name, source := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Execute(context.Background(), source, "main")
			require.Error(t, err)
			assert.True(t, IsEntryPointMissing(err))

			var missing *EntryPointMissingError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, "main", missing.Name)
		})
	}
}

func TestEngine_ScriptErrorCarriesBacktrace(t *testing.T) {
	engine := newTestEngine(t)

	source := `
def helper():
    fail("boom")

def main(a, db):
    helper()
`

	_, err := engine.Execute(context.Background(), source, "main", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, IsEntryPointMissing(err))
	assert.Contains(t, Backtrace(err), "helper")
}

func TestEngine_SyntaxError(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), "def main(:\n", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load script")
}

func TestEngine_StepLimit(t *testing.T) {
	engine := NewEngine(Config{MaxSteps: 1000}, slog.Default())

	source := `
def main(a, db):
    while True:
        pass
`

	_, err := engine.Execute(context.Background(), source, "main", nil, nil)
	require.Error(t, err)
}

func TestEngine_ContextCancellation(t *testing.T) {
	engine := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	source := `
def main(a, db):
    while True:
        pass
`

	_, err := engine.Execute(ctx, source, "main", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel")
}

func TestEngine_Hermetic(t *testing.T) {
	engine := newTestEngine(t)

	for _, source := range []string{
		"load(\"os.star\", \"system\")\ndef main():\n    return 1\n",
		"def main():\n    return open(\"/etc/passwd\")\n",
	} {
		_, err := engine.Execute(context.Background(), source, "main")
		require.Error(t, err)
	}
}

func TestEngine_FreshGlobalsPerCall(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), "marker = 1\ndef main():\n    return marker\n", "main")
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), "def main():\n    return marker\n", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marker")
}

func TestEngine_Builtins(t *testing.T) {
	t.Setenv("REPORTGEN_TEST_REGION", "north")
	t.Setenv("REPORTGEN_TEST_SECRET", "hidden")

	engine := newTestEngine(t)

	source := `
def main():
    return {
        "match": re.match(r"(\d+)-(\d+)", "10-20 units"),
        "search": re.search(r"units", "10-20 units"),
        "nomatch": re.match(r"units", "10-20 units"),
        "findall": re.findall(r"\d+", "a1 b22 c333"),
        "sub": re.sub(r"(\w+)@(\w+)", r"\2 at \1", "ava@example"),
        "split": re.split(r"\s*,\s*", "a , b,c"),
        "join": path.join("reports", "2024", "q1.pdf"),
        "base": path.basename("reports/2024/q1.pdf"),
        "dir": path.dirname("reports/2024/q1.pdf"),
        "ext": path.splitext("q1.pdf"),
        "region": os.getenv("REPORTGEN_TEST_REGION"),
        "secret": os.getenv("REPORTGEN_TEST_SECRET", "denied"),
        "sep": os.sep,
        "json": json.encode({"a": 1}),
        "floor": math.floor(2.7),
        "year": time.time(year=2024, month=3, day=1).year,
    }
`

	result, err := engine.Execute(context.Background(), source, "main")
	require.NoError(t, err)

	mapping, ok := result.Mapping()
	require.True(t, ok)
	assert.Equal(t, []any{"10-20", "10", "20"}, mapping["match"])
	assert.Equal(t, []any{"units"}, mapping["search"])
	assert.Nil(t, mapping["nomatch"])
	assert.Equal(t, []any{"1", "22", "333"}, mapping["findall"])
	assert.Equal(t, "example at ava", mapping["sub"])
	assert.Equal(t, []any{"a", "b", "c"}, mapping["split"])
	assert.Equal(t, "reports/2024/q1.pdf", mapping["join"])
	assert.Equal(t, "q1.pdf", mapping["base"])
	assert.Equal(t, "reports/2024", mapping["dir"])
	assert.Equal(t, []any{"q1", ".pdf"}, mapping["ext"])
	assert.Equal(t, "north", mapping["region"])
	assert.Equal(t, "denied", mapping["secret"])
	assert.Equal(t, "/", mapping["sep"])
	assert.Equal(t, `{"a":1}`, mapping["json"])
	assert.Equal(t, int64(2024), mapping["year"])
}

func TestEngine_UnconfiguredDataSource(t *testing.T) {
	engine := newTestEngine(t)

	source := `
def main(a, db):
    return db.fetch_all("SELECT 1")
`

	ds, err := NewDataSource("postgres", "")
	require.NoError(t, err)
	assert.False(t, ds.Configured())

	_, err = engine.Execute(context.Background(), source, "main", nil, ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data source is not configured")
}

func TestToStarlark_Unsupported(t *testing.T) {
	_, err := ToStarlark(struct{}{})
	require.Error(t, err)
}

func TestEngine_NumericArgs(t *testing.T) {
	engine := newTestEngine(t)

	source := `
def main(process_args, db):
    rows = [process_args["rows"][i] for i in range(process_args["count"])]
    return {"rows": rows, "label": "%d%%" % process_args["ratio_pct"], "big": process_args["big"] + 1, "half": process_args["half"] * 2}
`

	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	args := map[string]any{
		"count":     json.Number("2"),
		"rows":      []any{"a", "b", "c"},
		"ratio_pct": int64(40),
		"big":       huge,
		"half":      json.Number("0.25"),
	}

	result, err := engine.Execute(context.Background(), source, "main", args, NewDataSourceFromDB(nil))
	require.NoError(t, err)

	mapping, ok := result.Mapping()
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, mapping["rows"])
	assert.Equal(t, "40%", mapping["label"])
	assert.Equal(t, "123456789012345678901234567891", mapping["big"].(*big.Int).String())
	assert.InDelta(t, 0.5, mapping["half"], 1e-9)
}

func TestToStarlark_JSONNumber(t *testing.T) {
	tests := []struct {
		literal  string
		expected string
		kind     string
	}{
		{literal: "3", expected: "3", kind: "int"},
		{literal: "-7", expected: "-7", kind: "int"},
		{literal: "100000000000000000000000", expected: "100000000000000000000000", kind: "int"},
		{literal: "2.5", expected: "2.5", kind: "float"},
		{literal: "1e3", expected: "1000.0", kind: "float"},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			value, err := ToStarlark(json.Number(tt.literal))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, value.Type())
			assert.Equal(t, tt.expected, value.String())
		})
	}
}
