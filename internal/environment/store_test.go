package environment

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/cohdet/internal/scene"
)

const sampleEnv = `base_dir=/srv/cohdet
data_dir=data
preprocessed_dir=preprocessed
coregistered_dir=coregistered
interferograms_dir=interferograms
collocated_dir=collocated
results_dir=results
start=20230101
latest=20230601
user=zefram
password=s3cret=with=equals
service_url=https://api.daac.asf.alaska.edu
footprint=POLYGON((55.1 -20.7,55.9 -20.7,55.9 -21.4,55.1 -21.4,55.1 -20.7))
sensor_mode=SM
operator=hog
`

func writeEnv(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cohdet_env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return NewStore(path)
}

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	sort.Strings(lines)
	return lines
}

func TestStore_Load(t *testing.T) {
	store := writeEnv(t, sampleEnv)

	rec, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/cohdet", rec.BaseDir)
	assert.Equal(t, "20230101", rec.Start.String())
	assert.Equal(t, "20230601", rec.Latest.String())
	assert.Equal(t, "s3cret=with=equals", rec.Password, "value must be split on the first '=' only")
	assert.Equal(t, "SM", rec.SensorMode)
	assert.Equal(t, map[string]string{"operator": "hog"}, rec.Extra)
}

func TestStore_RoundTrip(t *testing.T) {
	store := writeEnv(t, sampleEnv)

	rec, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(rec))

	saved, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, sortedLines(sampleEnv), sortedLines(string(saved)))
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"))

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigMissing))
}

func TestStore_LoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"line without separator", strings.Replace(sampleEnv, "sensor_mode=SM", "sensor_mode SM", 1)},
		{"empty key", sampleEnv + "=value\n"},
		{"bad date", strings.Replace(sampleEnv, "latest=20230601", "latest=2023-06-01", 1)},
		{"missing key", strings.Replace(sampleEnv, "user=zefram\n", "", 1)},
		{"bad sensor mode", strings.Replace(sampleEnv, "sensor_mode=SM", "sensor_mode=XX", 1)},
		{"bad footprint", strings.Replace(sampleEnv, "footprint=POLYGON", "footprint=POINT", 1)},
		{"latest before start", strings.Replace(sampleEnv, "latest=20230601", "latest=20221231", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeEnv(t, tt.content).Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigMissing), "got %v", err)
		})
	}
}

func TestStore_LoadUnsetLatest(t *testing.T) {
	store := writeEnv(t, strings.Replace(sampleEnv, "latest=20230601", "latest=", 1))

	rec, err := store.Load()
	require.NoError(t, err)
	assert.True(t, rec.Latest.IsZero())
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	store := writeEnv(t, sampleEnv)
	rec, err := store.Load()
	require.NoError(t, err)

	rec.User = ""
	require.Error(t, store.Save(rec))

	content, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, sampleEnv, string(content), "previous content must be untouched")

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may remain")
}

func TestRecord_AdvanceLatest(t *testing.T) {
	rec := &Record{}
	d1, _ := scene.ParseDate("20230602")
	d0, _ := scene.ParseDate("20230531")

	assert.True(t, rec.AdvanceLatest(d1))
	assert.False(t, rec.AdvanceLatest(d0), "marker must never move backward")
	assert.False(t, rec.AdvanceLatest(d1))
	assert.Equal(t, "20230602", rec.Latest.String())

	rec.ResetLatest()
	assert.True(t, rec.Latest.IsZero())
}

func TestRecord_Layout(t *testing.T) {
	rec := &Record{
		BaseDir:           "/srv/cohdet/",
		DataDir:           "data",
		PreprocessedDir:   "/scratch/pre",
		CoregisteredDir:   "coregistered",
		InterferogramsDir: "interferograms",
		CollocatedDir:     "collocated",
		ResultsDir:        "results",
	}
	l := rec.Layout()
	assert.Equal(t, "/srv/cohdet/data", l.Raw)
	assert.Equal(t, "/scratch/pre", l.Preprocessed)
	assert.Equal(t, "/srv/cohdet/results", l.Results)
	assert.Len(t, l.Dirs(), 6)
}

func TestRecord_ValuesRedacted(t *testing.T) {
	rec, err := Parse(strings.NewReader(sampleEnv))
	require.NoError(t, err)

	assert.Equal(t, "********", rec.Values(true)[KeyPassword])
	assert.Equal(t, "s3cret=with=equals", rec.Values(false)[KeyPassword])
	assert.Equal(t, "hog", rec.Values(true)["operator"])
}

func TestStore_Lock(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock not available")
	}
	store := writeEnv(t, sampleEnv)

	unlock, err := store.Lock()
	require.NoError(t, err)

	_, err = store.Lock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreLocked))

	require.NoError(t, unlock())

	unlock, err = store.Lock()
	require.NoError(t, err)
	require.NoError(t, unlock())
}
