// Copyright 2025 The emunet authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api is the wire layer. It maps HTTP requests onto control-plane
// operations and owns the framing rules: minimal JSON bodies carrying a
// message or an error, chunked transfer for streamed command output, and
// no persistent connections.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/emunet-project/emunet/pkg/log"
	"github.com/emunet-project/emunet/private/cplane"
	"github.com/emunet-project/emunet/private/topology"
	"github.com/emunet-project/emunet/private/viz"
)

// Route describes one registered endpoint, as served by /endpoints.
type Route struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// Server exposes the control plane over HTTP. The route table is built once
// at construction; /endpoints is rendered from it rather than by reflecting
// over the mux.
type Server struct {
	cp     *cplane.ControlPlane
	logger log.Logger
	routes []routeEntry
}

type routeEntry struct {
	Route
	handler http.HandlerFunc
}

// NewServer creates the wire layer over the given control plane.
func NewServer(cp *cplane.ControlPlane) *Server {
	s := &Server{
		cp:     cp,
		logger: log.New("component", "api"),
	}
	s.routes = []routeEntry{
		{Route{"/start", "GET", "Build and start the emulated network"}, s.handleStart},
		{Route{"/stop", "GET", "Stop the emulated network"}, s.handleStop},
		{Route{"/exec", "GET", "Run a command on a node"}, s.handleExec},
		{Route{"/endpoints", "GET", "List all registered endpoints"}, s.handleEndpoints},
		{Route{"/nodes", "GET", "List the nodes of the running network"}, s.handleNodes},
		{Route{"/links", "GET", "List the links of the running network"}, s.handleLinks},
		{Route{"/status", "GET", "Report the lifecycle state"}, s.handleStatus},
		{Route{"/ping_all", "GET", "Probe reachability between all hosts"}, s.handlePingAll},
		{Route{"/start_xterm", "GET", "Open a terminal attached to a node"}, s.handleStartXterm},
		{Route{"/visualize", "GET", "Render the running topology"}, s.handleVisualize},
	}
	return s
}

// Router builds the HTTP handler. Every response closes the connection;
// HEAD mirrors GET for route existence.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}}))
	r.Use(closeConnections)
	r.Use(s.attachLogger)
	for _, e := range s.routes {
		r.MethodFunc(e.Method, e.Path, e.handler)
		if e.Method == http.MethodGet {
			r.MethodFunc(http.MethodHead, e.Path, headOK)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	return r
}

// closeConnections disables keep-alive on every response. Streaming exec
// holds the control-plane gate for the connection's lifetime, so letting
// clients pipeline requests over one connection buys nothing.
func closeConnections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Connection", "close")
		next.ServeHTTP(w, req)
	})
}

// attachLogger embeds a request-scoped logger in the context, so failures
// deep in the control plane log with the route that triggered them.
func (s *Server) attachLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, logger := log.WithLabels(req.Context(), "path", req.URL.Path)
		logger.Debug("Request received", "method", req.Method)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func headOK(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStart(w http.ResponseWriter, req *http.Request) {
	var params cplane.Params
	var err error
	if params.NumEdges, err = intParam(req, "n_nodes"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.NumPaths, err = intParam(req, "n_paths"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cp.Start(req.Context(), params); err != nil {
		s.writeControlError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Network started")
}

func (s *Server) handleStop(w http.ResponseWriter, req *http.Request) {
	if err := s.cp.Stop(req.Context()); err != nil {
		s.writeControlError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Network stopped")
}

func (s *Server) handleExec(w http.ResponseWriter, req *http.Request) {
	node := req.URL.Query().Get("node")
	command := req.URL.Query().Get("command")
	if node == "" || command == "" {
		writeError(w, http.StatusBadRequest, "node and command are required")
		return
	}
	background, err := boolParam(req, "background")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if background {
		if err := s.cp.ExecBackground(req.Context(), node, command); err != nil {
			s.writeControlError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Command dispatched")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	sink := &chunkSink{w: w, flusher: flusher}
	if err := s.cp.ExecStream(req.Context(), node, command, sink); err != nil {
		if !sink.wrote {
			// Nothing committed yet, the error can still get a status code.
			s.writeControlError(w, err)
			return
		}
		_ = sink.WriteChunk(err.Error() + "\n")
	}
}

// chunkSink adapts the response writer to the control plane's streaming
// sink. Each chunk is flushed immediately so output arrives line by line.
type chunkSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

func (c *chunkSink) WriteChunk(chunk string) error {
	if _, err := c.w.Write([]byte(chunk)); err != nil {
		return err
	}
	c.wrote = true
	c.flusher.Flush()
	return nil
}

func (s *Server) handleEndpoints(w http.ResponseWriter, req *http.Request) {
	endpoints := make([]Route, 0, len(s.routes))
	for _, e := range s.routes {
		endpoints = append(endpoints, e.Route)
	}
	writeJSON(w, http.StatusOK, map[string][]Route{"endpoints": endpoints})
}

func (s *Server) handleNodes(w http.ResponseWriter, req *http.Request) {
	nodes, err := s.cp.Nodes()
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]cplane.NodeInfo{"nodes": nodes})
}

func (s *Server) handleLinks(w http.ResponseWriter, req *http.Request) {
	links, err := s.cp.Links(req.Context())
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]cplane.LinkInfo{"links": links})
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.cp.Status(req.Context()))
}

func (s *Server) handlePingAll(w http.ResponseWriter, req *http.Request) {
	results, err := s.cp.PingAll(req.Context())
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleStartXterm(w http.ResponseWriter, req *http.Request) {
	node := req.URL.Query().Get("node")
	if node == "" {
		writeError(w, http.StatusBadRequest, "node is required")
		return
	}
	if err := s.cp.StartXterm(req.Context(), node); err != nil {
		s.writeControlError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Terminal started")
}

func (s *Server) handleVisualize(w http.ResponseWriter, req *http.Request) {
	desc, ok := s.cp.Descriptor()
	if !ok {
		writeError(w, http.StatusBadRequest, "network not running")
		return
	}
	dot, err := viz.RenderDOT(desc)
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	png, err := viz.RenderPNG(req.Context(), dot)
	if err != nil {
		// No renderer on the host; the DOT source is still useful.
		s.logger.Info("Image rendering unavailable, serving DOT source", "err", err)
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(dot))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// writeControlError translates control-plane failures to wire status codes.
// Lifecycle conflicts and bad parameters are client errors, unknown nodes
// are 404, everything else is a fabric or host failure.
func (s *Server) writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cplane.ErrAlreadyRunning):
		// Lifecycle conflicts ride in the message field, the shape clients
		// of the historical API expect.
		writeMessage(w, http.StatusBadRequest, "Network already running")
	case errors.Is(err, cplane.ErrNotRunning):
		writeMessage(w, http.StatusBadRequest, "Network not running")
	case errors.Is(err, topology.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cplane.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("Request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func intParam(req *http.Request, name string) (int, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

func boolParam(req *http.Request, name string) (bool, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	_ = enc.Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
