// Package catalog is a file-backed boot.Resolver.
//
// A catalog directory holds one Boot Resource definition per file, written in CUE
// (*.cue) or YAML (*.yaml, *.yml):
//
//	address: "BootSettings_Runtime"
//	name:    "RuntimeBoot"
//	templates: [
//		{name: "AudioManager", kind: "service"},
//		null,
//		{name: "InputRouter", properties: {deadzone: 0.1}},
//	]
//
// Null templates are legal and are skipped at activation time. Every definition is
// checked against a CUE schema and validator struct tags before it is used.
//
// Resolved resources are reference counted: the first Resolve of an address parses
// the file, later ones share the loaded resource, and the last Release unloads it.
package catalog
