package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/openfroyo/bootcoord/pkg/boot"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// Options configures a Catalog.
type Options struct {
	// Latency is added to every Resolve to simulate slow storage.
	Latency time.Duration

	// Logger receives load and unload output. Defaults to a no-op logger.
	Logger *telemetry.Logger
}

// Catalog resolves Boot Resources from definition files in a directory.
type Catalog struct {
	dir    string
	parser *Parser

	// mu protects loaded.
	mu     sync.Mutex
	loaded map[string]*entry

	latency time.Duration
	logger  *telemetry.Logger
}

type entry struct {
	path     string
	resource *boot.Resource
	refs     int
}

var _ boot.Resolver = (*Catalog)(nil)

// Open returns a catalog over dir. The directory must exist.
func Open(dir string, opts Options) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", dir)
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}

	return &Catalog{
		dir:     dir,
		parser:  NewParser(),
		loaded:  make(map[string]*entry),
		latency: opts.Latency,
		logger:  logger.NewComponentLogger("catalog"),
	}, nil
}

// Dir returns the catalog directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// Resolve returns a counted handle to the resource addressed by key.
func (c *Catalog) Resolve(ctx context.Context, key string) (*boot.Handle, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.loaded[key]; ok {
		e.refs++
		c.logger.WithKey(key).WithField("refs", e.refs).Debug("Resolved loaded resource")
		return boot.NewHandle(key, e.resource), nil
	}

	path, def, err := c.find(key)
	if err != nil {
		return nil, err
	}

	e := &entry{path: path, resource: def.Resource(), refs: 1}
	c.loaded[key] = e
	c.logger.WithKey(key).WithField("path", path).WithField("templates", len(def.Templates)).Info("Loaded boot resource")
	return boot.NewHandle(key, e.resource), nil
}

// Release drops one reference. The last release unloads the resource.
func (c *Catalog) Release(ctx context.Context, h *boot.Handle) error {
	if h == nil {
		return fmt.Errorf("nil handle")
	}
	if !h.Invalidate() {
		return fmt.Errorf("%w: %s", boot.ErrReleased, h.Key())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.loaded[h.Key()]
	if !ok || e.resource != h.Resource() {
		return fmt.Errorf("%w: handle for %s does not belong to this catalog", boot.ErrNotFound, h.Key())
	}

	e.refs--
	if e.refs == 0 {
		delete(c.loaded, h.Key())
		c.logger.WithKey(h.Key()).Info("Unloaded boot resource")
	}
	return nil
}

// Refs returns the live reference count for key.
func (c *Catalog) Refs(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.loaded[key]; ok {
		return e.refs
	}
	return 0
}

// Loaded returns the keys of every loaded resource, sorted.
func (c *Catalog) Loaded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.loaded))
	for k := range c.loaded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns the address of every parseable definition in the catalog, sorted.
func (c *Catalog) Keys() ([]string, error) {
	files, err := definitionFiles(c.dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, path := range files {
		def, err := c.parser.ParseFile(path)
		if err != nil {
			continue
		}
		keys = append(keys, def.Address)
	}
	sort.Strings(keys)
	return keys, nil
}

// find locates the definition for key. Files named after the key are tried first,
// then every definition in the directory is scanned for a matching address.
func (c *Catalog) find(key string) (string, *Definition, error) {
	for _, ext := range []string{".cue", ".yaml", ".yml"} {
		path := filepath.Join(c.dir, key+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		def, err := c.parser.ParseFile(path)
		if err != nil {
			return "", nil, boot.NewConfigError(fmt.Sprintf("invalid definition for %s", key), err)
		}
		if def.Address == key {
			return path, def, nil
		}
	}

	files, err := definitionFiles(c.dir)
	if err != nil {
		return "", nil, err
	}
	for _, path := range files {
		def, err := c.parser.ParseFile(path)
		if err != nil {
			c.logger.WithError(err).WithField("path", path).Debug("Skipping invalid definition")
			continue
		}
		if def.Address == key {
			return path, def, nil
		}
	}

	return "", nil, fmt.Errorf("%w: %s", boot.ErrNotFound, key)
}

// definitionFiles lists definition files in dir, sorted by name.
func definitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var files []string
	for _, de := range entries {
		if de.IsDir() || !IsDefinitionFile(de.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, de.Name()))
	}
	return files, nil
}
