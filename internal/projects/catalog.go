package projects

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

var ErrNoRoot = errors.New("projects root does not exist")

// Config describes the project layout
type Config struct {
	Root          string
	PagePattern   string   // relative to Root
	SketchPattern string   // relative to Root
	Ignore        []string // directories matching these are not walked
}

// DefaultConfig returns the layout /projects/<name>/main.html and
// /projects/<name>/<sketch>.js
func DefaultConfig(root string) Config {
	return Config{
		Root:          root,
		PagePattern:   "*/main.html",
		SketchPattern: "*/*.js",
		Ignore:        []string{"**/node_modules", "**/.*"},
	}
}

// Project is one entry of the catalog
type Project struct {
	Name     string    `json:"name"`
	HasPage  bool      `json:"has_page"`
	Sketches []string  `json:"sketches"`
	Modified time.Time `json:"modified"`
}

// HasSketch reports whether the project has a sketch with the given name
func (p Project) HasSketch(name string) bool {
	for _, s := range p.Sketches {
		if s == name {
			return true
		}
	}
	return false
}

// Catalog scans the projects root
type Catalog struct {
	cfg Config
}

// NewCatalog validates the patterns and creates a catalog
func NewCatalog(cfg Config) (*Catalog, error) {
	for _, p := range append([]string{cfg.PagePattern, cfg.SketchPattern}, cfg.Ignore...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}
	return &Catalog{cfg: cfg}, nil
}

// List walks the root and returns projects sorted by name
func (c *Catalog) List(ctx context.Context) ([]Project, error) {
	info, err := os.Stat(c.cfg.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", c.cfg.Root, ErrNoRoot)
	}

	var (
		mu    sync.Mutex
		found = make(map[string]*Project)
	)
	entry := func(name string) *Project {
		p, ok := found[name]
		if !ok {
			p = &Project{Name: name, Sketches: []string{}}
			found[name] = p
		}
		return p
	}

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, c.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(c.cfg.Root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if c.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		page := match(c.cfg.PagePattern, rel)
		sketch := match(c.cfg.SketchPattern, rel)
		if !page && !sketch {
			return nil
		}

		var modified time.Time
		if fi, err := d.Info(); err == nil {
			modified = fi.ModTime()
		}
		name := strings.SplitN(rel, "/", 2)[0]

		mu.Lock()
		defer mu.Unlock()
		p := entry(name)
		if page {
			p.HasPage = true
		}
		if sketch {
			p.Sketches = append(p.Sketches, strings.TrimSuffix(filepath.Base(rel), ".js"))
		}
		if modified.After(p.Modified) {
			p.Modified = modified
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Project, 0, len(found))
	for _, p := range found {
		sort.Strings(p.Sketches)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns one project by name
func (c *Catalog) Get(ctx context.Context, name string) (Project, bool, error) {
	list, err := c.List(ctx)
	if err != nil {
		return Project{}, false, err
	}
	for _, p := range list {
		if p.Name == name {
			return p, true, nil
		}
	}
	return Project{}, false, nil
}

func (c *Catalog) ignored(rel string) bool {
	for _, pattern := range c.cfg.Ignore {
		if match(pattern, rel) {
			return true
		}
	}
	return false
}

func match(pattern, rel string) bool {
	ok, _ := doublestar.Match(pattern, rel)
	return ok
}
