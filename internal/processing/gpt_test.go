package processing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGPT behaves like gpt for a graph ending in a BEAM-DIMAP Write node:
// it writes <target> and the matching .data directory. FAKE_GPT_FAIL makes
// it write a partial product and exit non-zero.
const fakeGPT = `#!/bin/sh
graph="$1"
target=""
for arg in "$@"; do
  case "$arg" in
    -Ptarget=*) target="${arg#-Ptarget=}" ;;
  esac
done
data="${target%.dim}.data"
mkdir -p "$data"
cp "$graph" "$data/graph.xml"
if [ -n "$FAKE_GPT_FAIL" ]; then
  echo "Executing processing graph"
  echo "Error: [NodeId: Subset] Subset region does not intersect the product" >&2
  echo "<Dimap_Document/>" > "$target"
  exit 1
fi
if [ -z "$FAKE_GPT_NO_OUTPUT" ]; then
  echo "<Dimap_Document/>" > "$target"
fi
echo "Processing completed"
`

func installFakeGPT(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake gpt is a shell script")
	}
	path := filepath.Join(t.TempDir(), "gpt")
	require.NoError(t, os.WriteFile(path, []byte(fakeGPT), 0o755))
	return path
}

func testOperation(t *testing.T) Operation {
	t.Helper()
	in := filepath.Join(t.TempDir(), "S1A_IW_SLC__1SDV_20230602T031415_20230602T031442_048812_05DEAD_1A2B.zip")
	require.NoError(t, os.WriteFile(in, []byte("zip"), 0o644))
	return Operation{
		Name:      "preprocess",
		Steps:     DefaultProfile().Preprocess,
		Inputs:    []string{in},
		OutputDir: filepath.Join(t.TempDir(), "preprocessed"),
		Stem:      "20230602_subset",
	}
}

func visible(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGPT_Run(t *testing.T) {
	gpt := NewGPT(installFakeGPT(t))
	op := testOperation(t)

	target, err := gpt.Run(context.Background(), op)
	require.NoError(t, err)

	assert.Equal(t, op.Target(), target)
	assert.FileExists(t, target)
	assert.DirExists(t, filepath.Join(op.OutputDir, "20230602_subset.data"))
	assert.ElementsMatch(t, []string{"20230602_subset.data", "20230602_subset.dim"}, visible(t, op.OutputDir),
		"staging directory must be removed")

	graph, err := os.ReadFile(filepath.Join(op.OutputDir, "20230602_subset.data", "graph.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(graph), "<operator>Apply-Orbit-File</operator>")
	assert.Contains(t, string(graph), op.Inputs[0])
}

func TestGPT_Run_Failure(t *testing.T) {
	gpt := NewGPT(installFakeGPT(t))
	op := testOperation(t)
	t.Setenv("FAKE_GPT_FAIL", "1")

	_, err := gpt.Run(context.Background(), op)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperator))
	assert.Contains(t, err.Error(), "does not intersect", "diagnostic output must be carried")
	assert.Contains(t, err.Error(), "20230602_subset")

	assert.Empty(t, visible(t, op.OutputDir), "no partial product may remain")
}

func TestGPT_Run_NoProduct(t *testing.T) {
	gpt := NewGPT(installFakeGPT(t))
	op := testOperation(t)
	t.Setenv("FAKE_GPT_NO_OUTPUT", "1")

	_, err := gpt.Run(context.Background(), op)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperator))
	assert.Empty(t, visible(t, op.OutputDir))
}

func TestGPT_Run_ReplacesStaleData(t *testing.T) {
	gpt := NewGPT(installFakeGPT(t))
	op := testOperation(t)

	stale := filepath.Join(op.OutputDir, "20230602_subset.data")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "old.img"), []byte("old"), 0o644))

	_, err := gpt.Run(context.Background(), op)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(stale, "old.img"))
	assert.FileExists(t, filepath.Join(stale, "graph.xml"))
}

func TestGPT_Run_MissingInput(t *testing.T) {
	gpt := NewGPT(installFakeGPT(t))
	op := testOperation(t)
	op.Inputs = append(op.Inputs, filepath.Join(t.TempDir(), "absent.dim"))

	_, err := gpt.Run(context.Background(), op)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperator))
	assert.NoDirExists(t, op.OutputDir)
}

func TestGPT_Run_MissingExecutable(t *testing.T) {
	op := testOperation(t)
	_, err := NewGPT(filepath.Join(t.TempDir(), "no-gpt")).Run(context.Background(), op)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperator))
	assert.Empty(t, visible(t, op.OutputDir))
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 8}
	b.Write([]byte("0123456789"))
	b.Write([]byte("ab"))
	assert.Equal(t, "456789ab", b.String())
	assert.True(t, strings.HasSuffix(b.String(), "ab"))
}
