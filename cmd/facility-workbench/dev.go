package main

import (
	"io/fs"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"

	"github.com/rflorenc/facility-workbench/internal/api"
)

const viteDevServer = "http://localhost:5173"

// devRouter serves API routes directly and proxies everything else to the
// Vite dev server.
func devRouter(server *api.Server) http.Handler {
	apiRouter := api.NewRouter(server, emptyFS{})

	viteURL, _ := url.Parse(viteDevServer)
	proxy := httputil.NewSingleHostReverseProxy(viteURL)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") || strings.HasPrefix(r.URL.Path, "/ws") {
			apiRouter.ServeHTTP(w, r)
			return
		}
		proxy.ServeHTTP(w, r)
	})
}

// emptyFS is a minimal fs.FS that always returns not-found.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, os.ErrNotExist
}
