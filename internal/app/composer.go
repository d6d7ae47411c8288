package app

import (
	"context"

	"spashell/bff/internal/assets"
)

// ImportMap is one import-map document as the browser's module loader reads it.
type ImportMap struct {
	Imports map[string]string `json:"imports"`
}

// RenderModel is the data the index template is executed with. Portal bundles
// and vendor libraries stay in separate import maps.
type RenderModel struct {
	GATagID              string    `json:"ga_tag_id,omitempty"`
	StripePublishableKey string    `json:"stripe_publishable_key"`
	SPAConfigURL         string    `json:"spa_config_url"`
	Portals              ImportMap `json:"portals"`
	ImportMap            ImportMap `json:"import_map"`
	CSSFiles             []string  `json:"css_files"`
}

type PageSecrets struct {
	GATagID              string
	StripePublishableKey string
}

type manifestAggregator interface {
	Aggregate(ctx context.Context) (assets.Aggregated, error)
}

type rootConfigResolver interface {
	Resolve() (assets.RootConfig, error)
}

// Composer assembles the render model for the entry page.
type Composer struct {
	aggregator manifestAggregator
	roots      rootConfigResolver
	vendor     assets.VendorImportMap
	secrets    PageSecrets
}

func NewComposer(aggregator manifestAggregator, roots rootConfigResolver, vendor assets.VendorImportMap, secrets PageSecrets) *Composer {
	return &Composer{
		aggregator: aggregator,
		roots:      roots,
		vendor:     vendor,
		secrets:    secrets,
	}
}

// Compose fails as a whole if either the manifests or the root config cannot
// be resolved; there is no partial model.
func (c *Composer) Compose(ctx context.Context) (RenderModel, error) {
	manifests, err := c.aggregator.Aggregate(ctx)
	if err != nil {
		return RenderModel{}, err
	}
	root, err := c.roots.Resolve()
	if err != nil {
		return RenderModel{}, err
	}

	cssFiles := manifests.CSSFiles
	if cssFiles == nil {
		cssFiles = []string{}
	}
	return RenderModel{
		GATagID:              c.secrets.GATagID,
		StripePublishableKey: c.secrets.StripePublishableKey,
		SPAConfigURL:         root.URL,
		Portals:              ImportMap{Imports: manifests.Portals},
		ImportMap:            ImportMap{Imports: c.vendor.Imports()},
		CSSFiles:             cssFiles,
	}, nil
}

// ResolveRootConfig checks the root config without touching any portal.
func (c *Composer) ResolveRootConfig() (assets.RootConfig, error) {
	return c.roots.Resolve()
}
