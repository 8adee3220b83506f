package chi

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed web/templates/*.html web/static
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/templates/search.html"))

// staticFS holds the search page assets served under /static/.
func staticFS() fs.FS {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return sub
}

type pageData struct {
	Title      string
	APIBase    string
	StaticBase string
	Version    string
}
