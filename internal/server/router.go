package server

import "net/http"

// NewRouter wires HTTP routes to the server's handlers. The /updates/ tree
// serves the published release directory read-only when one is configured.
func NewRouter(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest", s.handleManifest)
	mux.HandleFunc("/validate", s.handleValidate)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/artifacts", s.handleArtifacts)
	mux.HandleFunc("/artifacts/", s.handleArtifactDownload)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.updatesDir != "" {
		fs := http.FileServer(http.Dir(s.updatesDir))
		mux.Handle("/updates/", http.StripPrefix("/updates/", fs))
	}
	return mux
}
