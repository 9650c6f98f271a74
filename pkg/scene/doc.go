// Package scene provides an in-memory scene graph for hosting Boot Resources.
//
// Graph implements boot.SceneGraph. Nodes form a forest: containers are roots,
// instances are children of their container, and destroying a node destroys its
// whole subtree. Containers created while the graph is in run mode are persistent
// and survive document loads and closes. Containers created in edit mode are
// ordinary document content, which is why a save must not happen while boot
// content is live.
package scene
