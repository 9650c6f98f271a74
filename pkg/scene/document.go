package scene

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNoDocument is returned by document operations when no document is open.
var ErrNoDocument = errors.New("no active document")

// Document is the serialized form of a document's non-persistent content.
type Document struct {
	Name  string      `yaml:"name"`
	Nodes []SavedNode `yaml:"nodes"`
}

// SavedNode is one node of a saved document tree.
type SavedNode struct {
	Name       string                 `yaml:"name"`
	Kind       string                 `yaml:"kind,omitempty"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
	Children   []SavedNode            `yaml:"children,omitempty"`
}

// OpenDocument makes name the active document. Non-persistent content of the
// previous document is destroyed, as a scene load would.
func (g *Graph) OpenDocument(name string) error {
	if name == "" {
		return fmt.Errorf("document name is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := g.unloadLocked()
	g.document = name
	g.logger.WithField("document", name).Debugf("Opened document, unloaded %d node(s)", removed)
	return nil
}

// ActiveDocument returns the open document name, or "" when none is open.
func (g *Graph) ActiveDocument() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.document
}

// CloseDocument destroys the document's non-persistent content and clears the
// active document.
func (g *Graph) CloseDocument() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.document == "" {
		return ErrNoDocument
	}
	removed := g.unloadLocked()
	g.logger.WithField("document", g.document).Debugf("Closed document, destroyed %d node(s)", removed)
	g.document = ""
	return nil
}

// Snapshot returns the active document's non-persistent node tree.
func (g *Graph) Snapshot() (Document, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.document == "" {
		return Document{}, ErrNoDocument
	}

	doc := Document{Name: g.document, Nodes: []SavedNode{}}
	for _, id := range g.roots {
		n := g.nodes[id]
		if n.Persistent {
			continue
		}
		doc.Nodes = append(doc.Nodes, g.savedLocked(n))
	}
	return doc, nil
}

// SaveDocument writes the active document's content to path as YAML.
func (g *Graph) SaveDocument(path string) (Document, error) {
	doc, err := g.Snapshot()
	if err != nil {
		return Document{}, err
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return Document{}, fmt.Errorf("failed to marshal document: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Document{}, fmt.Errorf("failed to create document directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Document{}, fmt.Errorf("failed to write document: %w", err)
	}

	g.logger.WithField("document", doc.Name).WithField("path", path).Debug("Saved document")
	return doc, nil
}

// LoadDocument reads a saved document from path.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read document: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

func (g *Graph) savedLocked(n *Node) SavedNode {
	s := SavedNode{Name: n.Name, Kind: n.Kind, Properties: n.Properties}
	for _, id := range n.children {
		if child, ok := g.nodes[id]; ok {
			s.Children = append(s.Children, g.savedLocked(child))
		}
	}
	return s
}

// unloadLocked destroys every non-persistent root and its subtree.
func (g *Graph) unloadLocked() int {
	removed := 0
	kept := g.roots[:0]
	for _, id := range g.roots {
		if n := g.nodes[id]; n != nil && n.Persistent {
			kept = append(kept, id)
			continue
		}
		removed += g.destroyLocked(id)
	}
	g.roots = kept
	return removed
}
