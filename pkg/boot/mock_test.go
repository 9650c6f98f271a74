package boot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// mockScene is an in-memory SceneGraph that records every call.
type mockScene struct {
	mu       sync.Mutex
	next     int
	nodes    map[NodeID]mockNode
	log      []string
	failOn   map[string]error
	panicOn  map[string]bool
	instWait time.Duration
}

type mockNode struct {
	name   string
	parent NodeID
}

func newMockScene() *mockScene {
	return &mockScene{
		nodes:   make(map[NodeID]mockNode),
		failOn:  make(map[string]error),
		panicOn: make(map[string]bool),
	}
}

func (m *mockScene) add(name string, parent NodeID) NodeID {
	m.next++
	id := NodeID(fmt.Sprintf("node-%d", m.next))
	m.nodes[id] = mockNode{name: name, parent: parent}
	return id
}

func (m *mockScene) CreateContainer(ctx context.Context, name string) (NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "create:"+name)
	return m.add(name, ""), nil
}

func (m *mockScene) Instantiate(ctx context.Context, t *Template, parent NodeID) (NodeID, error) {
	if m.instWait > 0 {
		time.Sleep(m.instWait)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "instantiate:"+t.Name)
	if m.panicOn[t.Name] {
		panic("instantiate " + t.Name)
	}
	if err := m.failOn[t.Name]; err != nil {
		return "", err
	}
	if _, ok := m.nodes[parent]; !ok {
		return "", ErrNodeNotFound
	}
	return m.add(t.Name, parent), nil
}

func (m *mockScene) Destroy(ctx context.Context, id NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	m.log = append(m.log, "destroy:"+n.name)
	m.destroyLocked(id)
	return nil
}

func (m *mockScene) destroyLocked(id NodeID) {
	delete(m.nodes, id)
	for child, n := range m.nodes {
		if n.parent == id {
			m.destroyLocked(child)
		}
	}
}

func (m *mockScene) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

func (m *mockScene) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

// mockResolver serves resources from a fixed table with reference counting.
type mockResolver struct {
	mu        sync.Mutex
	templates map[string][]*Template
	loaded    map[string]*Resource
	refs      map[string]int
	log       []string
	panicOn   map[string]bool

	// gate, when set, blocks every Resolve until it is closed.
	gate chan struct{}
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		templates: map[string][]*Template{
			InteractiveKey: {{Name: "Gizmos"}},
			ProductionKey:  {{Name: "Audio"}, nil, {Name: "Input"}},
		},
		loaded:  make(map[string]*Resource),
		refs:    make(map[string]int),
		panicOn: make(map[string]bool),
	}
}

func (m *mockResolver) Resolve(ctx context.Context, key string) (*Handle, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "resolve:"+key)
	if m.panicOn[key] {
		panic("resolve " + key)
	}

	templates, ok := m.templates[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	r, ok := m.loaded[key]
	if !ok {
		r = NewResource(key, templates)
		m.loaded[key] = r
	}
	m.refs[key]++
	return NewHandle(key, r), nil
}

func (m *mockResolver) Release(ctx context.Context, h *Handle) error {
	if !h.Invalidate() {
		return ErrReleased
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "release:"+h.Key())
	m.refs[h.Key()]--
	if m.refs[h.Key()] == 0 {
		delete(m.loaded, h.Key())
		delete(m.refs, h.Key())
	}
	return nil
}

func (m *mockResolver) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

func (m *mockResolver) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.refs {
		total += n
	}
	return total
}

func count(log []string, entry string) int {
	n := 0
	for _, l := range log {
		if l == entry {
			n++
		}
	}
	return n
}
