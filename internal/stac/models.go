// Package stac describes pipeline artifacts as STAC catalogs, collections
// and items, wrapping planetlabs/go-stac for the core types.
package stac

import (
	gostac "github.com/planetlabs/go-stac"
)

// Re-export core types from planetlabs/go-stac for convenience
type (
	Item       = gostac.Item
	Collection = gostac.Collection
	Asset      = gostac.Asset
	Link       = gostac.Link
	Extent     = gostac.Extent
)

// Version is the STAC version written into every document.
const Version = "1.0.0"

// Media types used in links and assets.
const (
	MediaJSON    = "application/json"
	MediaGeoJSON = "application/geo+json"
	MediaZip     = "application/zip"
	MediaDimap   = "application/x-beam-dimap"
)

// ItemCollection represents a STAC ItemCollection (GeoJSON FeatureCollection).
type ItemCollection struct {
	Type           string         `json:"type"` // "FeatureCollection"
	Features       []*gostac.Item `json:"features"`
	Links          []*gostac.Link `json:"links"`
	NumberMatched  int            `json:"numberMatched"`
	NumberReturned int            `json:"numberReturned"`
}

// NewItemCollection creates a new ItemCollection with the given items.
func NewItemCollection(items []*gostac.Item, matched int) *ItemCollection {
	if items == nil {
		items = make([]*gostac.Item, 0)
	}
	return &ItemCollection{
		Type:           "FeatureCollection",
		Features:       items,
		Links:          make([]*gostac.Link, 0),
		NumberMatched:  matched,
		NumberReturned: len(items),
	}
}

// AddLink adds a link to the ItemCollection.
func (ic *ItemCollection) AddLink(rel, href, mediaType string) {
	ic.Links = append(ic.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// NewItem creates a new STAC Item with the given ID and collection.
func NewItem(id, collection string) *gostac.Item {
	return &gostac.Item{
		Version:    Version,
		Id:         id,
		Collection: collection,
		Properties: make(map[string]any),
		Assets:     make(map[string]*gostac.Asset),
		Links:      make([]*gostac.Link, 0),
	}
}

// NewCollection creates a new STAC Collection with the given ID.
func NewCollection(id, title, description string) *gostac.Collection {
	return &gostac.Collection{
		Version:     Version,
		Id:          id,
		Title:       title,
		Description: description,
		License:     "proprietary",
		Links:       make([]*gostac.Link, 0),
		Assets:      make(map[string]*gostac.Asset),
		Summaries:   make(map[string]any),
	}
}

// CollectionsList represents a list of collections response.
type CollectionsList struct {
	Collections []*gostac.Collection `json:"collections"`
	Links       []*gostac.Link       `json:"links"`
}

// NewCollectionsList creates a new CollectionsList.
func NewCollectionsList(collections []*gostac.Collection) *CollectionsList {
	return &CollectionsList{
		Collections: collections,
		Links:       make([]*gostac.Link, 0),
	}
}

// Conformance represents the conformance classes response.
type Conformance struct {
	ConformsTo []string `json:"conformsTo"`
}

// LandingPage represents the landing page response.
type LandingPage struct {
	Type        string         `json:"type"` // "Catalog"
	Id          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	StacVersion string         `json:"stac_version"`
	ConformsTo  []string       `json:"conformsTo,omitempty"`
	Links       []*gostac.Link `json:"links"`
}

// NewLandingPage creates a new landing page response.
func NewLandingPage(id, title, description string) *LandingPage {
	return &LandingPage{
		Type:        "Catalog",
		Id:          id,
		Title:       title,
		Description: description,
		StacVersion: Version,
		ConformsTo:  DefaultConformance(),
		Links:       make([]*gostac.Link, 0),
	}
}

// AddLink adds a link to the landing page.
func (lp *LandingPage) AddLink(rel, href, mediaType string) {
	lp.Links = append(lp.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// Standard STAC conformance URIs
const (
	ConformanceCore           = "https://api.stacspec.org/v1.0.0/core"
	ConformanceOGCFeatures    = "https://api.stacspec.org/v1.0.0/ogcapi-features"
	ConformanceOGCFeatCore    = "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core"
	ConformanceOGCFeatGeoJSON = "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/geojson"
)

// DefaultConformance returns the conformance classes of the status API.
func DefaultConformance() []string {
	return []string{
		ConformanceCore,
		ConformanceOGCFeatures,
		ConformanceOGCFeatCore,
		ConformanceOGCFeatGeoJSON,
	}
}

// STAC extension URIs
const (
	ExtensionSAR        = "https://stac-extensions.github.io/sar/v1.0.0/schema.json"
	ExtensionSat        = "https://stac-extensions.github.io/sat/v1.0.0/schema.json"
	ExtensionProcessing = "https://stac-extensions.github.io/processing/v1.0.0/schema.json"
	ExtensionFile       = "https://stac-extensions.github.io/file/v2.1.0/schema.json"
)
