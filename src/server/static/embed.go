// Package static embeds the sample stores.json snapshot served for local runs.
package static

import "embed"

//go:embed stores.json
var Files embed.FS
