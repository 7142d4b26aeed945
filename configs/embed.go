// Package configs provides embedded configuration templates for ragcore.
//
// Templates are embedded at build time with go:embed so they ship inside
// the binary; `ragcore config init` writes them out for editing. The
// hierarchy at load time is: built-in defaults, then the config file,
// then RAGCORE_* environment variables.
package configs

import _ "embed"

// ConfigTemplate is the annotated default configuration, written by
// `ragcore config init`. Every value in it matches the built-in default.
//
//go:embed ragcore.example.yaml
var ConfigTemplate string
