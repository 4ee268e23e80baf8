package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/cohdet/internal/asf"
	"github.com/robert-malhotra/cohdet/internal/cmr"
	"github.com/robert-malhotra/cohdet/internal/scene"
)

const testScene = "S1A_IW_SLC__1SDV_20230602T031415_20230602T031442_048812_05DEAD_1A2B"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestASFBackend_Search(t *testing.T) {
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{
			"sceneName":"` + testScene + `",
			"startTime":"2023-06-02T03:14:15.000000",
			"url":"https://datapool.asf.alaska.edu/SLC/SA/` + testScene + `.zip",
			"bytes":"1234"}}]}`))
	}))
	defer server.Close()

	rec := testRecord(t, "20230101", "20230601")
	rec.SensorMode = "IW"
	q, err := QueryFor(rec)
	require.NoError(t, err)

	backend := NewASFBackend(asf.NewClient(server.URL, 5*time.Second), discard())
	records, err := backend.Search(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, testScene, records[0].Name)
	assert.Equal(t, time.Date(2023, 6, 2, 3, 14, 15, 0, time.UTC), records[0].Acquired)
	assert.Equal(t, int64(1234), records[0].Size)
	assert.True(t, strings.HasSuffix(records[0].Handle, ".zip"))

	assert.Equal(t, []string{"SENTINEL-1"}, query["platform"])
	assert.Equal(t, []string{"SLC"}, query["processingLevel"])
	assert.Equal(t, []string{"IW"}, query["beamMode"])
	assert.Equal(t, []string{"2023-01-01T00:00:00Z"}, query["start"])
	assert.True(t, strings.HasPrefix(query["intersectsWith"][0], "POLYGON(("))
}

func TestASFBackend_UnavailableThroughDiffer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	backend := NewASFBackend(asf.NewClient(server.URL, 5*time.Second), discard())
	got, err := NewDiffer(backend).WithLogger(discard()).FindNewScenes(context.Background(), testRecord(t, "20230101", "20230601"))
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
}

func TestCMRBackend_Search(t *testing.T) {
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		resp := cmr.UMMSearchResponse{
			Hits: 1,
			Items: []cmr.UMMResultItem{{
				UMM: cmr.UMMGranule{
					GranuleUR: testScene + "-SLC",
					TemporalExtent: &cmr.TemporalExtent{
						RangeDateTime: &cmr.RangeDateTime{BeginningDateTime: "2023-06-02T03:14:15.000Z"},
					},
					RelatedUrls: []cmr.RelatedURL{
						{URL: "https://datapool.asf.alaska.edu/SLC/SA/" + testScene + ".zip", Type: "GET DATA"},
					},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	q, err := QueryFor(testRecord(t, "20230101", "20230601"))
	require.NoError(t, err)

	backend := NewCMRBackend(cmr.NewClient(server.URL, "ASF", 5*time.Second), discard())
	records, err := backend.Search(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, testScene, records[0].Name)
	assert.Equal(t, time.Date(2023, 6, 2, 3, 14, 15, 0, time.UTC), records[0].Acquired)

	assert.Contains(t, query["short_name"], "SENTINEL-1A_SLC")
	assert.Len(t, query["attribute[]"], 6, "stripmap expands to one attribute per swath")
	assert.Equal(t, []string{"true"}, query["options[attribute][or]"])
	assert.Equal(t, []string{"2023-01-01T00:00:00Z,"}, query["temporal"])
	assert.NotEmpty(t, query["polygon"])
}

type fakeDownloader struct {
	content string
	err     error
	size    int64
}

func (f *fakeDownloader) Download(_ context.Context, _ string, dest string, size int64) (int64, error) {
	f.size = size
	if f.err != nil {
		return 0, f.err
	}
	if size > 0 && int64(len(f.content)) != size {
		return 0, fmt.Errorf("size mismatch: got %d bytes, catalog lists %d", len(f.content), size)
	}
	if err := os.WriteFile(dest, []byte(f.content), 0o644); err != nil {
		return 0, err
	}
	return int64(len(f.content)), nil
}

func TestFetcher_Fetch(t *testing.T) {
	c := Candidate{Identity: scene.MustParse(testScene), Handle: "https://example/x.zip", Size: 7}

	t.Run("success", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), testScene+".zip")
		require.NoError(t, NewFetcher(&fakeDownloader{content: "archive"}).Fetch(context.Background(), c, dest))
		assert.FileExists(t, dest)
	})

	t.Run("transfer error", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), testScene+".zip")
		err := NewFetcher(&fakeDownloader{err: asf.ErrCredentialsRejected}).Fetch(context.Background(), c, dest)
		assert.True(t, errors.Is(err, ErrDownloadFailed))
		assert.Contains(t, err.Error(), testScene)
		assert.NoFileExists(t, dest)
	})

	t.Run("size mismatch", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), testScene+".zip")
		d := &fakeDownloader{content: "short"}
		err := NewFetcher(d).Fetch(context.Background(), c, dest)
		assert.True(t, errors.Is(err, ErrDownloadFailed))
		assert.Equal(t, int64(7), d.size, "catalog size reaches the downloader")
		assert.NoFileExists(t, dest)
	})

	t.Run("no handle", func(t *testing.T) {
		noHandle := c
		noHandle.Handle = ""
		err := NewFetcher(&fakeDownloader{}).Fetch(context.Background(), noHandle, filepath.Join(t.TempDir(), "x.zip"))
		assert.True(t, errors.Is(err, ErrDownloadFailed))
	})
}
