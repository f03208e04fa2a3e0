package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/keylinehq/keyline/pkg/cache"
	"github.com/keylinehq/keyline/pkg/remote"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local development entity store",
		Long: `Serve the entity store REST contract on localhost, backed by a file
cache. Useful for working on projects without a hosted Keyline API:
point remote.base_url at this server and every open/save round-trips
through it.

Data persists across restarts in the store directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if dir == "" {
				cacheRoot, err := c.cacheDir()
				if err != nil {
					return fmt.Errorf("resolve store dir: %w", err)
				}
				dir = filepath.Join(cacheRoot, "devstore")
			}
			backend, err := cache.NewFileCache(dir)
			if err != nil {
				return fmt.Errorf("open store dir: %w", err)
			}

			store, err := newDevStore(ctx, backend)
			if err != nil {
				return fmt.Errorf("load store: %w", err)
			}

			printInfo("Serving entity store on %s", StyleHighlight.Render(addr))
			printDetail("Store directory: %s", dir)
			return runServer(ctx, addr, store.router())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8090", "listen address")
	cmd.Flags().StringVar(&dir, "dir", "", "store directory (default <cache-dir>/devstore)")
	return cmd
}

// runServer serves until the context is cancelled, then drains in-flight
// requests.
func runServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// =============================================================================
// Dev Store
// =============================================================================

// devStore is an in-memory entity store persisted to a file cache, one
// blob per kind. It implements the same REST contract as the hosted
// entity API, so remote.HTTPStore works against it unchanged.
type devStore struct {
	mu      sync.RWMutex
	backend cache.Cache
	records map[remote.Kind]map[string]remote.Record
}

// newDevStore opens a store over the given backend, loading any
// previously persisted kinds.
func newDevStore(ctx context.Context, backend cache.Cache) (*devStore, error) {
	s := &devStore{
		backend: backend,
		records: make(map[remote.Kind]map[string]remote.Record),
	}
	for _, kind := range remote.SaveOrder {
		s.records[kind] = make(map[string]remote.Record)
		data, ok, err := backend.Get(ctx, storeKey(kind))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var recs []remote.Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("corrupt %s blob: %w", kind, err)
		}
		for _, rec := range recs {
			if id, ok := rec["id"].(string); ok {
				s.records[kind][id] = rec
			}
		}
	}
	return s, nil
}

func storeKey(kind remote.Kind) string {
	return "devstore:" + string(kind)
}

// persist writes one kind's records back to the backend. Callers hold the
// write lock.
func (s *devStore) persist(ctx context.Context, kind remote.Kind) error {
	recs := make([]remote.Record, 0, len(s.records[kind]))
	for _, rec := range s.records[kind] {
		recs = append(recs, rec)
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, storeKey(kind), data, 0)
}

// filter returns the records of a kind whose key equals value.
func (s *devStore) filter(kind remote.Kind, key, value string) []remote.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []remote.Record{}
	for _, rec := range s.records[kind] {
		if v, ok := rec[key].(string); ok && v == value {
			out = append(out, rec)
		}
	}
	return out
}

// =============================================================================
// Routes
// =============================================================================

// router builds the REST contract:
//
//	GET  /projects/{id}
//	GET  /projects/{id}/layers
//	GET  /projects/{id}/templates
//	GET  /templates/{id}/{elements|animations|keyframes|bindings}
//	POST /{kind}/batch
//	POST /{kind}/batch-delete
func (s *devStore) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/projects/{id}", s.handleGetProject)
	r.Get("/projects/{id}/layers", s.handleChildren(remote.KindLayer, "project_id"))
	r.Get("/projects/{id}/templates", s.handleChildren(remote.KindTemplate, "project_id"))
	r.Get("/templates/{id}/elements", s.handleChildren(remote.KindElement, "template_id"))
	r.Get("/templates/{id}/animations", s.handleChildren(remote.KindAnimation, "template_id"))
	r.Get("/templates/{id}/keyframes", s.handleChildren(remote.KindKeyframe, "template_id"))
	r.Get("/templates/{id}/bindings", s.handleChildren(remote.KindBinding, "template_id"))
	r.Post("/{kind}/batch", s.handleBatchUpsert)
	r.Post("/{kind}/batch-delete", s.handleBatchDelete)

	return r
}

func (s *devStore) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	rec, ok := s.records[remote.KindProject][id]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, rec)
}

func (s *devStore) handleChildren(kind remote.Kind, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.filter(kind, key, chi.URLParam(r, "id")))
	}
}

func (s *devStore) handleBatchUpsert(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	var body struct {
		Records []remote.Record `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range body.Records {
		id, ok := rec["id"].(string)
		if !ok || id == "" {
			http.Error(w, "record without id", http.StatusBadRequest)
			return
		}
		s.records[kind][id] = rec
	}
	if err := s.persist(r.Context(), kind); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *devStore) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range body.IDs {
		delete(s.records[kind], id)
	}
	if err := s.persist(r.Context(), kind); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseKind(raw string) (remote.Kind, bool) {
	for _, kind := range remote.SaveOrder {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
