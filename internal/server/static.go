package server

import (
	"bytes"
	"embed"
	"net/http"
)

//go:embed web/index.html
var webFS embed.FS

// staticHandler serves the embedded viewer page at the root. The page is
// rendered once at startup with the MCP path substituted in.
func staticHandler(mcpPath string) http.Handler {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		panic("embedded viewer page missing: " + err.Error())
	}
	page = bytes.ReplaceAll(page, []byte("{{MCP_PATH}}"), []byte(mcpPath))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})
}
