// Package assets resolves portal build manifests and the root SPA configuration
// into the data the entry page is rendered from.
package assets

import (
	"context"
	"errors"
	"fmt"
)

const (
	// PortalPrefix namespaces portal bundles in the import map.
	PortalPrefix = "@portal/"

	MainJS  = "main.js"
	MainCSS = "main.css"
)

var (
	ErrManifest   = errors.New("manifest error")
	ErrRootConfig = errors.New("root config error")
)

// Source is one independently deployed portal and the location of its manifest.
type Source struct {
	Name        string `json:"name"`
	ManifestURL string `json:"manifestUrl"`
}

// Manifest is the decoded build manifest of a single portal.
type Manifest struct {
	Files map[string]string `json:"files"`
}

// Aggregated is the merged result of all portal manifests.
type Aggregated struct {
	Portals  map[string]string `json:"portals"`
	CSSFiles []string          `json:"cssFiles"`
}

// ManifestFetcher retrieves the manifest of one portal.
type ManifestFetcher interface {
	Fetch(ctx context.Context, source Source) (Manifest, error)
}

type FetchErrorKind string

const (
	FetchTransport FetchErrorKind = "transport"
	FetchStatus    FetchErrorKind = "status"
	FetchDecode    FetchErrorKind = "decode"
)

// FetchError reports why the manifest of a portal could not be obtained.
type FetchError struct {
	Portal     string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case FetchDecode:
		return fmt.Sprintf("Unable to parse asset manifest for %s. Error: %v", e.Portal, e.Err)
	case FetchStatus:
		return fmt.Sprintf("Unable to fetch asset manifest for %s. Error: status %d", e.Portal, e.StatusCode)
	default:
		return fmt.Sprintf("Unable to fetch asset manifest for %s. Error: %v", e.Portal, e.Err)
	}
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrManifest}
	}
	return []error{ErrManifest, e.Err}
}

// RootConfigError reports a missing or malformed spa-config.json.
type RootConfigError struct {
	Path string
	Op   string
	Err  error
}

func (e *RootConfigError) Error() string {
	return fmt.Sprintf("Unable to %s root config file - %v", e.Op, e.Err)
}

func (e *RootConfigError) Unwrap() []error {
	return []error{ErrRootConfig, e.Err}
}
