package stac

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	gostac "github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/cohdet/internal/inventory"
	"github.com/robert-malhotra/cohdet/internal/scene"
	"github.com/robert-malhotra/cohdet/pkg/geojson"
)

// PropertyStage and PropertyPair are the item properties naming the stage
// and pair an artifact belongs to.
const (
	PropertyStage = "cohdet:stage"
	PropertyPair  = "cohdet:pair"
)

var stageTitles = map[inventory.Stage]string{
	inventory.StageDownload:      "Raw scenes",
	inventory.StagePreprocess:    "Preprocessed scenes",
	inventory.StageCoregister:    "Coregistered pairs",
	inventory.StageInterferogram: "Interferograms",
	inventory.StageCollocate:     "Collocated interferograms",
	inventory.StageMask:          "Coherence change masks",
}

var stageDescriptions = map[inventory.Stage]string{
	inventory.StageDownload:      "Sentinel-1 SLC archives downloaded from the catalog.",
	inventory.StagePreprocess:    "Orbit-corrected scenes subset to the area of interest.",
	inventory.StageCoregister:    "Secondary scenes coregistered onto their primary.",
	inventory.StageInterferogram: "Interferograms with coherence bands per pair.",
	inventory.StageCollocate:     "Pair interferograms collocated with their baseline pair.",
	inventory.StageMask:          "Pixels whose coherence dropped against the baseline pair.",
}

// StageCollection describes the artifacts of one stage. The spatial extent
// is the footprint; the temporal extent is open from the window start.
func StageCollection(stage inventory.Stage, footprint *geojson.Footprint, start scene.Date, baseURL string) *gostac.Collection {
	c := NewCollection(string(stage), stageTitles[stage], stageDescriptions[stage])

	var interval []any
	if start.IsZero() {
		interval = []any{nil, nil}
	} else {
		interval = []any{start.Time().Format(time.RFC3339), nil}
	}
	c.Extent = &gostac.Extent{
		Spatial:  &gostac.SpatialExtent{Bbox: [][]float64{footprint.BBox()}},
		Temporal: &gostac.TemporalExtent{Interval: [][]any{interval}},
	}
	c.Summaries[PropertyStage] = []string{string(stage)}
	if stage == inventory.StageDownload {
		c.Summaries["sar:product_type"] = []string{"SLC"}
		c.Summaries["constellation"] = []string{"sentinel-1"}
	}

	self := fmt.Sprintf("%s/collections/%s", baseURL, stage)
	c.Links = append(c.Links,
		&gostac.Link{Rel: "self", Href: self, Type: MediaJSON},
		&gostac.Link{Rel: "root", Href: baseURL + "/", Type: MediaJSON},
		&gostac.Link{Rel: "parent", Href: baseURL + "/", Type: MediaJSON},
		&gostac.Link{Rel: "items", Href: self + "/items", Type: MediaGeoJSON, Title: "Items"},
	)
	return c
}

// ItemFromArtifact describes an artifact found on disk. Every artifact
// covers the footprint, so geometry and bbox come from it.
func ItemFromArtifact(a inventory.Artifact, footprint *geojson.Footprint, baseURL string) *gostac.Item {
	id := a.Stem
	if a.Scene != nil {
		id = a.Scene.Name
	}
	item := NewItem(id, string(a.Stage))
	item.Geometry = footprint.Geometry()
	item.Bbox = footprint.BBox()

	props := item.Properties
	props[PropertyStage] = string(a.Stage)
	props["created"] = a.ModTime.UTC().Format(time.RFC3339)
	props["file:size"] = a.Size

	switch {
	case a.Scene != nil:
		props["datetime"] = a.Scene.Start.UTC().Format(time.RFC3339)
		props["start_datetime"] = a.Scene.Start.UTC().Format(time.RFC3339)
		props["end_datetime"] = a.Scene.Stop.UTC().Format(time.RFC3339)
		addSceneProperties(props, a.Scene)
	case a.Stage.IsPair():
		props["datetime"] = nil
		props["start_datetime"] = a.Pair.Primary.Time().Format(time.RFC3339)
		props["end_datetime"] = a.Pair.Secondary.EndOfDay().Format(time.RFC3339)
		props[PropertyPair] = a.Pair.Key()
	default:
		props["datetime"] = a.Date.Time().Format(time.RFC3339)
	}

	mediaType, title := MediaDimap, "BEAM-DIMAP product"
	if a.Stage == inventory.StageDownload {
		mediaType, title = MediaZip, "SAFE archive"
	}
	item.Assets["data"] = &gostac.Asset{
		Href:  fileURL(a.Path),
		Title: title,
		Type:  mediaType,
		Roles: []string{"data"},
	}

	self := fmt.Sprintf("%s/collections/%s/items/%s", baseURL, a.Stage, url.PathEscape(id))
	item.Links = append(item.Links,
		&gostac.Link{Rel: "self", Href: self, Type: MediaGeoJSON},
		&gostac.Link{Rel: "parent", Href: fmt.Sprintf("%s/collections/%s", baseURL, a.Stage), Type: MediaJSON},
		&gostac.Link{Rel: "collection", Href: fmt.Sprintf("%s/collections/%s", baseURL, a.Stage), Type: MediaJSON},
		&gostac.Link{Rel: "root", Href: baseURL + "/", Type: MediaJSON},
	)
	return item
}

func addSceneProperties(props map[string]any, id *scene.Identity) {
	if strings.HasPrefix(id.Mission, "S1") && len(id.Mission) == 3 {
		props["platform"] = "sentinel-1" + strings.ToLower(id.Mission[2:])
	}
	props["constellation"] = "sentinel-1"
	props["instruments"] = []string{"c-sar"}
	props["sar:frequency_band"] = "C"
	props["sar:instrument_mode"] = id.BeamMode
	props["sar:product_type"] = id.ProductType
	if pols := id.Polarisations(); len(pols) > 0 {
		props["sar:polarizations"] = pols
	}
	props["sat:absolute_orbit"] = id.AbsoluteOrbit
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
