// Package configs holds the default game catalogs and the JSON Schemas they
// are validated against.
package configs

import "embed"

//go:embed *.json schemas/*.json
var FS embed.FS
