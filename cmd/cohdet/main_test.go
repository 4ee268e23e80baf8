package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/pipeline"
	"github.com/robert-malhotra/cohdet/internal/processing"
)

const raw0602 = "S1A_IW_SLC__1SDV_20230602T031415_20230602T031442_048812_05DEAD_1A2B"

type cli struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	env    string
	layout environment.Layout
}

// newCLI writes an environment file under a temporary base directory and
// creates its stage directories.
func newCLI(t *testing.T, serviceURL string) *cli {
	t.Helper()
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "debug")

	base := t.TempDir()
	content := strings.Join([]string{
		"base_dir=" + base,
		"data_dir=data",
		"preprocessed_dir=preprocessed",
		"coregistered_dir=coregistered",
		"interferograms_dir=interferograms",
		"collocated_dir=collocated",
		"results_dir=results",
		"start=20230101",
		"latest=20230601",
		"user=zefram",
		"password=s3cret",
		"service_url=" + serviceURL,
		"footprint=POLYGON((55.1 -20.7,55.9 -20.7,55.9 -21.4,55.1 -21.4,55.1 -20.7))",
		"sensor_mode=IW",
	}, "\n") + "\n"
	path := filepath.Join(base, "cohdet_env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rec, err := environment.NewStore(path).Load()
	require.NoError(t, err)
	require.NoError(t, rec.Layout().Ensure())

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &cli{
		app:    newApp(stdout, stderr),
		stdout: stdout,
		stderr: stderr,
		env:    path,
		layout: rec.Layout(),
	}
}

func (c *cli) exec(args ...string) error {
	c.stdout.Reset()
	root := newRootCmd(c.app)
	root.SetArgs(append([]string{"--env-file", c.env}, args...))
	return root.ExecuteContext(context.Background())
}

func (c *cli) latest(t *testing.T) string {
	t.Helper()
	rec, err := environment.NewStore(c.env).Load()
	require.NoError(t, err)
	return rec.Latest.String()
}

// fakeProcessor writes empty BEAM-DIMAP products.
type fakeProcessor struct {
	ops []processing.Operation
}

func (f *fakeProcessor) Run(_ context.Context, op processing.Operation) (string, error) {
	f.ops = append(f.ops, op)
	if err := os.MkdirAll(filepath.Join(op.OutputDir, op.Stem+".data"), 0o755); err != nil {
		return "", err
	}
	return op.Target(), os.WriteFile(op.Target(), []byte("<Dimap_Document/>"), 0o644)
}

// catalogServer serves an ASF search listing one scene and its archive.
func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/services/search/param", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{
			"sceneName":%q,"startTime":"2023-06-02T03:14:15Z","stopTime":"2023-06-02T03:14:42Z",
			"url":%q}}]}`, raw0602, srv.URL+"/download/"+raw0602+".zip")
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK archive"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, "warn", "json").Info("hidden")
	assert.Empty(t, buf.String())

	setupLogger(&buf, "debug", "json").Debug("shown", "k", "v")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])

	buf.Reset()
	setupLogger(&buf, "info", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestParsePairSpecs(t *testing.T) {
	specs, err := parsePairSpecs([]string{"20230602:20230614", "20230614:20230626@20230602:20230614"})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Nil(t, specs[0].Baseline)
	require.NotNil(t, specs[1].Baseline)
	assert.Equal(t, "20230602_20230614", specs[1].Baseline.Key())

	_, err = parsePairSpecs([]string{"20230602"})
	assert.Error(t, err)
}

func TestCLI_Update(t *testing.T) {
	srv := catalogServer(t)
	c := newCLI(t, srv.URL)

	require.NoError(t, c.exec("update"))

	assert.FileExists(t, filepath.Join(c.layout.Raw, raw0602+".zip"))
	assert.Equal(t, "20230602", c.latest(t))
	assert.Contains(t, c.stdout.String(), raw0602)
	assert.Contains(t, c.stderr.String(), "run_id=")

	// a second update finds nothing new
	require.NoError(t, c.exec("update"))
	assert.Contains(t, c.stdout.String(), "nothing to do")
}

func TestCLI_Preprocess(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")
	require.NoError(t, os.WriteFile(filepath.Join(c.layout.Raw, raw0602+".zip"), []byte("PK"), 0o644))
	proc := &fakeProcessor{}
	c.app.processor = proc

	require.NoError(t, c.exec("--json", "preprocess"))

	var results []pipeline.StageResult
	require.NoError(t, json.Unmarshal(c.stdout.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, pipeline.OutcomeRan, results[0].Outcome)
	assert.Equal(t, "20230602", results[0].Subject)
	assert.FileExists(t, filepath.Join(c.layout.Preprocessed, "20230602_subset.dim"))
	require.Len(t, proc.ops, 1)

	require.NoError(t, c.exec("scan"))
	assert.Empty(t, strings.TrimSpace(c.stdout.String()))
}

func TestCLI_PairBlockedWithoutScenes(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")
	c.app.processor = &fakeProcessor{}

	require.NoError(t, c.exec("pair", "20230602:20230614"))
	assert.Contains(t, c.stdout.String(), string(pipeline.OutcomeBlocked))

	err := c.exec("pair", "20230602")
	assert.Error(t, err)
}

func TestCLI_EnvShow(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")

	require.NoError(t, c.exec("env", "show"))
	out := c.stdout.String()
	assert.Contains(t, out, "user=zefram\n")
	assert.Contains(t, out, "password=********\n")
	assert.NotContains(t, out, "s3cret")
}

func TestCLI_EnvResetLatest(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")
	require.Equal(t, "20230601", c.latest(t))

	require.NoError(t, c.exec("env", "reset-latest"))
	assert.Equal(t, "", c.latest(t))
}

func TestCLI_Init(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")
	require.NoError(t, os.RemoveAll(c.layout.Results))

	require.NoError(t, c.exec("init"))
	assert.DirExists(t, c.layout.Results)
	assert.Contains(t, c.stdout.String(), c.layout.Results)
}

func TestCLI_Scan(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")
	require.NoError(t, os.WriteFile(filepath.Join(c.layout.Raw, raw0602+".zip"), []byte("PK"), 0o644))

	require.NoError(t, c.exec("scan"))
	assert.Equal(t, "20230602\t"+raw0602+"\n", c.stdout.String())

	require.NoError(t, c.exec("scan", "download", "--list"))
	assert.Contains(t, c.stdout.String(), raw0602+".zip")

	assert.Error(t, c.exec("scan", "mask"))
	assert.Error(t, c.exec("scan", "bogus"))
}

func TestCLI_Operators(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")

	require.NoError(t, c.exec("operators"))
	out := c.stdout.String()
	assert.Contains(t, out, "Apply-Orbit-File")
	assert.Contains(t, out, "coherenceThreshold: 0.7")
}

func TestCLI_Locked(t *testing.T) {
	c := newCLI(t, "https://api.daac.asf.alaska.edu")
	unlock, err := environment.NewStore(c.env).Lock()
	require.NoError(t, err)
	defer unlock()

	err = c.exec("update")
	require.Error(t, err)
	assert.True(t, errors.Is(err, environment.ErrStoreLocked), "got %v", err)
}
