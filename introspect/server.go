// Package introspect serves the engine's read-only debug surface as
// JSON over local HTTP: component tree, versioned store snapshots, a
// long-poll change feed, and a websocket push stream. It is a pluggable
// collaborator; the engine only exposes the snapshot and feed objects
package introspect

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/engine"
	"github.com/lixenwraith/chronon/store"
)

// longPollMax bounds the /changes wait so dead clients release their
// subscription promptly
const longPollMax = 30 * time.Second

// Server exposes an Inspector over HTTP. It holds no write path into
// the engine
type Server struct {
	insp     *engine.Inspector
	upgrader websocket.Upgrader
}

// NewServer wraps an inspector
func NewServer(insp *engine.Inspector) *Server {
	return &Server{insp: insp}
}

// Routes returns the handler mux; callers may mount it under their own
// server instead of using ListenAndServe
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /components", s.handleComponents)
	mux.HandleFunc("GET /tree", s.handleTree)
	mux.HandleFunc("GET /store", s.handleStore)
	mux.HandleFunc("GET /changes", s.handleChanges)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.insp.Components())
}

// treeJSON is the nested rendering of the naming tree
type treeJSON struct {
	Path     string           `json:"path"`
	CID      core.ComponentID `json:"cid"`
	Children []treeJSON       `json:"children,omitempty"`
}

func renderTree(n *engine.Node) treeJSON {
	out := treeJSON{Path: n.Path, CID: n.CID}
	for _, c := range n.Children() {
		out.Children = append(out.Children, renderTree(c))
	}
	return out
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, renderTree(s.insp.Tree()))
}

// storeEntry is one key rendered for the wire
type storeEntry struct {
	CID   core.ComponentID `json:"cid"`
	Key   string           `json:"key"`
	Value core.Value       `json:"value"`
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	snap := s.insp.Snapshot()
	if vq := r.URL.Query().Get("version"); vq != "" {
		v, err := strconv.ParseUint(vq, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad version")
			return
		}
		old, ok := s.insp.SnapshotAt(v)
		if !ok {
			writeError(w, http.StatusGone, "version no longer retained")
			return
		}
		snap = old
	}

	entries := make([]storeEntry, 0, snap.Len())
	snap.Range(func(k store.Key, v core.Value) {
		entries = append(entries, storeEntry{CID: k.CID, Key: k.Name, Value: v})
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  snap.Version(),
		"sim_time": s.insp.Now().Nanoseconds(),
		"entries":  entries,
	})
}

// handleChanges long-polls the change feed: waits up to timeout for the
// first record, then drains whatever else is already buffered. Records
// between polls are not replayed; delivery is best-effort by contract
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	timeout := 10 * time.Second
	if tq := r.URL.Query().Get("timeout"); tq != "" {
		d, err := time.ParseDuration(tq)
		if err != nil || d <= 0 || d > longPollMax {
			writeError(w, http.StatusBadRequest, "bad timeout")
			return
		}
		timeout = d
	}

	feed := s.insp.Subscribe(r.URL.Query().Get("glob"))
	defer feed.Close()

	var records []store.ChangeRecord
	select {
	case rec, ok := <-feed.C():
		if ok {
			records = append(records, rec)
		}
	case <-time.After(timeout):
	case <-r.Context().Done():
		return
	}

	for {
		select {
		case rec, ok := <-feed.C():
			if !ok {
				writeJSON(w, http.StatusOK, records)
				return
			}
			records = append(records, rec)
		default:
			writeJSON(w, http.StatusOK, records)
			return
		}
	}
}

// handleWS streams change records until the client goes away
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	feed := s.insp.Subscribe(r.URL.Query().Get("glob"))
	defer feed.Close()

	// Reader loop only to observe client close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-feed.C():
			if !ok {
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.insp.Metrics())
}
