// Package static serves the page shell and module binary over HTTP.
package static

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// IndexDocument is served for the root path.
const IndexDocument = "/index.html"

// headerSets maps the last character of a request path to the headers sent
// with it: .json, .html, .js/.css, .ttf and .wasm.
var headerSets = map[byte]map[string]string{
	'n': {
		"Content-Type": "application/json",
	},
	'l': {
		"Content-Type":  "text/html;charset=utf-8",
		"Cache-Control": "no-cache",
	},
	's': {
		"Cache-Control": "no-cache",
	},
	'f': {
		"Content-Type":  "font/ttf",
		"Cache-Control": "max-age=86400",
	},
	'm': {
		"Content-Type":  "application/wasm",
		"Cache-Control": "no-cache",
	},
}

// HeadersFor returns the headers selected for urlPath, or nil.
func HeadersFor(urlPath string) map[string]string {
	if urlPath == "" {
		return nil
	}
	return headerSets[urlPath[len(urlPath)-1]]
}

// Responder answers GET requests with files under a fixed root.
type Responder struct {
	root   string
	logger *zap.Logger
}

// NewResponder creates a responder serving files below root.
func NewResponder(root string, logger *zap.Logger) *Responder {
	return &Responder{
		root:   root,
		logger: logger.With(zap.String("component", "static")),
	}
}

// ServeHTTP implements http.Handler.
func (r *Responder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	urlPath := path.Clean("/" + req.URL.Path)
	if urlPath == "/" {
		urlPath = IndexDocument
	}

	header := w.Header()
	// A nil entry keeps net/http from sniffing a type the table did not pick.
	header["Content-Type"] = nil
	for k, v := range HeadersFor(urlPath) {
		header.Set(k, v)
	}

	data, err := r.read(urlPath)
	if err != nil {
		r.logger.Debug("Asset not served", zap.String("path", urlPath), zap.Error(err))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		r.logger.Debug("Write failed", zap.String("path", urlPath), zap.Error(err))
	}
}

// read loads a cleaned, rooted url path from disk. Directories are not files.
func (r *Responder) read(urlPath string) ([]byte, error) {
	name := filepath.Join(r.root, filepath.FromSlash(urlPath))

	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "read", Path: name, Err: os.ErrNotExist}
	}
	return os.ReadFile(name)
}
