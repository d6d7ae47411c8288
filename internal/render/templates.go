// Package render executes the HTML templates the entry page and error pages are
// built from.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const (
	IndexTemplate = "index.html"
	ErrorTemplate = "error.html"
)

//go:embed templates/*.html
var builtinFS embed.FS

// JSON marshals v for embedding inside a non-JavaScript script element such as
// an import map. encoding/json escapes <, > and & so the payload cannot close
// the surrounding element.
func JSON(v any) (template.HTML, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.HTML(raw), nil
}

var funcMap = template.FuncMap{
	"importMap": JSON,
	"json":      JSON,
	"lower":     strings.ToLower,
}

// Renderer loads every *.html file under a directory. With reload enabled the
// directory is parsed again on each Render so on-disk edits show up live.
type Renderer struct {
	dir    string
	reload bool

	mu  sync.RWMutex
	set *template.Template
}

func New(dir string, reload bool) (*Renderer, error) {
	set, err := parseIndexedDir(dir)
	if err != nil {
		return nil, err
	}
	return &Renderer{dir: dir, reload: reload, set: set}, nil
}

// Watch swaps in a freshly parsed template set whenever an .html file directly
// under the templates directory changes. A set that fails to parse is passed to
// onError and the previous one stays in use. The watcher stops with ctx.
func (r *Renderer) Watch(ctx context.Context, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}
	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".html" {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := r.refresh(); err != nil {
					report(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				report(err)
			}
		}
	}()
	return nil
}

func (r *Renderer) refresh() error {
	set, err := parseIndexedDir(r.dir)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}

// Render executes the named template into memory so a failure never leaves a
// partially written response.
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	r.mu.RLock()
	set := r.set
	r.mu.RUnlock()
	if r.reload {
		fresh, err := parseDir(r.dir)
		if err != nil {
			return nil, err
		}
		set = fresh
	}

	tmpl := set.Lookup(name)
	if tmpl == nil {
		return nil, fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func parseIndexedDir(dir string) (*template.Template, error) {
	set, err := parseDir(dir)
	if err != nil {
		return nil, err
	}
	if set.Lookup(IndexTemplate) == nil {
		return nil, fmt.Errorf("template %s not found in %s", IndexTemplate, dir)
	}
	return set, nil
}

func parseDir(dir string) (*template.Template, error) {
	root := template.New("").Funcs(funcMap)

	// Built-in pages first so files in dir override them.
	builtin, err := fs.Glob(builtinFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	for _, name := range builtin {
		content, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := root.New(strings.TrimPrefix(name, "templates/")).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse builtin %s: %w", name, err)
		}
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := root.New(filepath.ToSlash(rel)).Parse(string(content)); err != nil {
			return fmt.Errorf("parse template %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load templates from %s: %w", dir, err)
	}
	return root, nil
}
