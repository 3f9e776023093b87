// Package assets embeds the static files shipped with the binaries.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var files embed.FS

// Templates returns the templates directory (contains "email/").
func Templates() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
