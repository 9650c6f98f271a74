package scene

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/bootcoord/pkg/boot"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// Node is a single object in the scene.
type Node struct {
	ID         boot.NodeID            `yaml:"-"`
	Name       string                 `yaml:"name"`
	Kind       string                 `yaml:"kind,omitempty"`
	Parent     boot.NodeID            `yaml:"-"`
	Persistent bool                   `yaml:"-"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
	Created    time.Time              `yaml:"-"`

	children []boot.NodeID
}

// Children returns a copy of the node's child ids in creation order.
func (n Node) Children() []boot.NodeID {
	return append([]boot.NodeID(nil), n.children...)
}

// Options configures a Graph.
type Options struct {
	// Latency is added to every Instantiate call to simulate slow hosts.
	Latency time.Duration

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *telemetry.Logger
}

// Graph is a concurrency-safe in-memory scene graph.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[boot.NodeID]*Node
	roots    []boot.NodeID
	runMode  bool
	document string

	latency time.Duration
	logger  *telemetry.Logger
}

var _ boot.SceneGraph = (*Graph)(nil)

// NewGraph creates an empty graph in edit mode with no open document.
func NewGraph(opts Options) *Graph {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Graph{
		nodes:   make(map[boot.NodeID]*Node),
		latency: opts.Latency,
		logger:  logger.NewComponentLogger("scene"),
	}
}

// SetRunMode switches between run mode and edit mode.
func (g *Graph) SetRunMode(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runMode = on
}

// RunMode reports whether the graph is in run mode.
func (g *Graph) RunMode() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.runMode
}

// CreateContainer creates a root node. It is persistent only in run mode.
func (g *Graph) CreateContainer(ctx context.Context, name string) (boot.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.addLocked(name, "container", "", nil)
	n.Persistent = g.runMode

	g.logger.WithField("node", string(n.ID)).WithField("persistent", n.Persistent).Debugf("Created container %s", name)
	return n.ID, nil
}

// Instantiate creates an instance of t under parent.
func (g *Graph) Instantiate(ctx context.Context, t *boot.Template, parent boot.NodeID) (boot.NodeID, error) {
	if t == nil {
		return "", fmt.Errorf("nil template")
	}

	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !parent.IsZero() {
		if _, ok := g.nodes[parent]; !ok {
			return "", fmt.Errorf("%w: parent %s", boot.ErrNodeNotFound, parent)
		}
	}

	n := g.addLocked(t.Name, t.Kind, parent, t.Properties)
	return n.ID, nil
}

// Destroy removes the node and its subtree.
func (g *Graph) Destroy(ctx context.Context, id boot.NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", boot.ErrNodeNotFound, id)
	}

	if n.Parent.IsZero() {
		g.roots = removeID(g.roots, id)
	} else if p, ok := g.nodes[n.Parent]; ok {
		p.children = removeID(p.children, id)
	}

	removed := g.destroyLocked(id)
	g.logger.WithField("node", string(id)).Debugf("Destroyed %d node(s)", removed)
	return nil
}

// Get returns a copy of the node.
func (g *Graph) Get(id boot.NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *n
	cp.children = append([]boot.NodeID(nil), n.children...)
	return cp, true
}

// Children returns the child ids of id in creation order.
func (g *Graph) Children(id boot.NodeID) ([]boot.NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", boot.ErrNodeNotFound, id)
	}
	return append([]boot.NodeID(nil), n.children...), nil
}

// Roots returns the root ids in creation order.
func (g *Graph) Roots() []boot.NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]boot.NodeID(nil), g.roots...)
}

// Count returns the number of live nodes.
func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes returns copies of every live node sorted by creation time.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		cp := *n
		cp.children = append([]boot.NodeID(nil), n.children...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// FindByName returns the ids of every node with the given name.
func (g *Graph) FindByName(name string) []boot.NodeID {
	var ids []boot.NodeID
	for _, n := range g.Nodes() {
		if n.Name == name {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func (g *Graph) addLocked(name, kind string, parent boot.NodeID, props map[string]interface{}) *Node {
	n := &Node{
		ID:         boot.NodeID(uuid.New().String()),
		Name:       name,
		Kind:       kind,
		Parent:     parent,
		Properties: props,
		Created:    time.Now(),
	}
	g.nodes[n.ID] = n
	if parent.IsZero() {
		g.roots = append(g.roots, n.ID)
	} else {
		p := g.nodes[parent]
		p.children = append(p.children, n.ID)
	}
	return n
}

// destroyLocked deletes id and its descendants without touching the parent's child list.
func (g *Graph) destroyLocked(id boot.NodeID) int {
	n, ok := g.nodes[id]
	if !ok {
		return 0
	}
	removed := 1
	for _, child := range n.children {
		removed += g.destroyLocked(child)
	}
	delete(g.nodes, id)
	return removed
}

func removeID(ids []boot.NodeID, id boot.NodeID) []boot.NodeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
