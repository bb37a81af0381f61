package core

// inspect.go serves a read-only operator view of a running node over HTTP:
// GET /status, /chain, /peers, and a Prometheus /metrics scrape endpoint.
// It never shares a listener with the ingress loop's raw-TCP wire protocol;
// the wire protocol is plain TCP, not HTTP. Routed with go-chi/chi/v5.

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusResponse is the payload for GET /status.
type statusResponse struct {
	Address         string `json:"address"`
	BlockCount      int    `json:"block_count"`
	ActivePeerCount int    `json:"active_peer_count"`
	WholeLogHash    string `json:"whole_log_hash"`
}

// InspectRouter builds the chi router for the node's inspection endpoints.
func (n *ValidatorNode) InspectRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/status", n.handleStatus)
	r.Get("/chain", n.handleChain)
	r.Get("/peers", n.handlePeers)
	r.Handle("/metrics", promhttp.HandlerFor(n.Metrics.Registry, promhttp.HandlerOpts{}))

	return r
}

// StartInspectServer starts the inspection HTTP server on addr in its own
// goroutine. Disabled by default; callers opt in via config.
func (n *ValidatorNode) StartInspectServer(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: n.InspectRouter()}
	go func() {
		<-n.done
		srv.Close()
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			n.log.WithError(err).Warn("inspection server stopped")
		}
	}()
	return nil
}

func (n *ValidatorNode) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Address:         n.selfAddr,
		BlockCount:      n.Log.Len(),
		ActivePeerCount: n.Registry.ActivePeerCount(),
		WholeLogHash:    n.Log.WholeLogHash(),
	}
	writeJSON(w, resp)
}

func (n *ValidatorNode) handleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, n.Log.Snapshot())
}

func (n *ValidatorNode) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, n.Registry.ActiveSnapshot())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
