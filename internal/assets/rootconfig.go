package assets

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const RootConfigFile = "spa-config.json"

type RootConfig struct {
	URL string `json:"url"`
}

// RootConfigResolver reads the root orchestration script location from disk.
// The file is re-read on every call so a redeployed root config is picked up
// without a restart.
type RootConfigResolver struct {
	path string
}

func NewRootConfigResolver(frontendDir string) *RootConfigResolver {
	return &RootConfigResolver{path: filepath.Join(frontendDir, RootConfigFile)}
}

func (r *RootConfigResolver) Path() string {
	return r.path
}

func (r *RootConfigResolver) Resolve() (RootConfig, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return RootConfig{}, &RootConfigError{Path: r.path, Op: "read", Err: err}
	}
	var root RootConfig
	if err := json.Unmarshal(raw, &root); err != nil {
		return RootConfig{}, &RootConfigError{Path: r.path, Op: "parse", Err: err}
	}
	if root.URL == "" {
		return RootConfig{}, &RootConfigError{Path: r.path, Op: "parse", Err: errors.New("missing field `url`")}
	}
	return root, nil
}
