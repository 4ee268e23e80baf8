package stac

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/cohdet/internal/inventory"
	"github.com/robert-malhotra/cohdet/internal/scene"
	"github.com/robert-malhotra/cohdet/pkg/geojson"
)

const baseURL = "http://localhost:8080"

func footprint(t *testing.T) *geojson.Footprint {
	t.Helper()
	fp, err := geojson.ParseFootprint("POLYGON((55.1 -20.7,55.9 -20.7,55.9 -21.4,55.1 -21.4,55.1 -20.7))")
	require.NoError(t, err)
	return fp
}

func TestItemFromArtifact_Raw(t *testing.T) {
	id := scene.MustParse("S1B_IW_SLC__1SDV_20210101T000000_20210101T000025_024960_02F873_ABCD")
	a := inventory.Artifact{
		Stage:   inventory.StageDownload,
		Name:    id.Name + ".zip",
		Path:    "/srv/cohdet/data/" + id.Name + ".zip",
		Stem:    id.Name,
		Date:    id.Date(),
		Scene:   &id,
		Size:    4096,
		ModTime: time.Date(2021, 1, 2, 10, 0, 0, 0, time.UTC),
	}

	item := ItemFromArtifact(a, footprint(t), baseURL)
	assert.Equal(t, id.Name, item.Id)
	assert.Equal(t, "download", item.Collection)
	assert.Equal(t, []float64{55.1, -21.4, 55.9, -20.7}, item.Bbox)
	assert.Equal(t, "sentinel-1b", item.Properties["platform"])
	assert.Equal(t, []string{"VV", "VH"}, item.Properties["sar:polarizations"])
	assert.Equal(t, "2021-01-01T00:00:00Z", item.Properties["datetime"])
	assert.Equal(t, "file:///srv/cohdet/data/"+id.Name+".zip", item.Assets["data"].Href)
	assert.Equal(t, MediaZip, item.Assets["data"].Type)

	_, err := json.Marshal(item)
	require.NoError(t, err)
}

func TestItemFromArtifact_Pair(t *testing.T) {
	p, err := scene.ParsePair("20230602:20230614")
	require.NoError(t, err)
	a := inventory.Artifact{
		Stage: inventory.StageMask,
		Name:  "20230602_20230614_mask.dim",
		Path:  "/srv/cohdet/results/20230602_20230614_mask.dim",
		Stem:  "20230602_20230614_mask",
		Date:  p.Primary,
		Pair:  p,
	}

	item := ItemFromArtifact(a, footprint(t), baseURL)
	assert.Equal(t, "20230602_20230614_mask", item.Id)
	assert.Nil(t, item.Properties["datetime"])
	assert.Equal(t, "2023-06-02T00:00:00Z", item.Properties["start_datetime"])
	assert.Equal(t, "20230602_20230614", item.Properties[PropertyPair])
	assert.Equal(t, MediaDimap, item.Assets["data"].Type)
	assert.Equal(t, baseURL+"/collections/mask/items/20230602_20230614_mask", item.Links[0].Href)
}

func TestStageCollection(t *testing.T) {
	start, err := scene.ParseDate("20230101")
	require.NoError(t, err)

	c := StageCollection(inventory.StageInterferogram, footprint(t), start, baseURL)
	assert.Equal(t, "interferogram", c.Id)
	assert.Equal(t, "Interferograms", c.Title)
	assert.Equal(t, [][]float64{{55.1, -21.4, 55.9, -20.7}}, c.Extent.Spatial.Bbox)
	assert.Equal(t, "2023-01-01T00:00:00Z", c.Extent.Temporal.Interval[0][0])

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":"interferogram"`)
}
