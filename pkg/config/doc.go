// Package config loads the bootcoord configuration file.
//
// The file is YAML. Every field has a default, so an empty or missing file is a
// valid configuration:
//
//	catalog:
//	  dir: .bootcoord/catalog
//	state:
//	  path: .bootcoord/state.db
//	keys:
//	  production: BootSettings_Runtime
//	  interactive: BootSettings_Editor
//	telemetry:
//	  logging:
//	    level: debug
//
// The LOG_LEVEL environment variable overrides telemetry.logging.level.
package config
