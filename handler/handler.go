// Package handler provides the HTTP API over a document database.
package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/goccy/go-json"

	"github.com/stevemurr/plaindb/codec"
	"github.com/stevemurr/plaindb/docstore"
	"github.com/stevemurr/plaindb/query"
	"github.com/stevemurr/plaindb/schema"
)

// Handler holds the server dependencies and registers routes.
//
// Tables are not safe for concurrent use, so every request that touches the
// database holds mu.
type Handler struct {
	mu      sync.Mutex
	db      *docstore.DB
	mux     *http.ServeMux
	log     *slog.Logger
	metrics http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for server errors.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics serves m on GET /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// New creates a Handler and wires up all routes.
func New(db *docstore.DB, opts ...Option) *Handler {
	h := &Handler{db: db, mux: http.NewServeMux(), log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}

	h.mux.HandleFunc("GET /tables", h.listTables)
	h.mux.HandleFunc("DELETE /tables/{table}", h.dropTable)

	// --- Documents ---
	h.mux.HandleFunc("GET /tables/{table}/documents", h.allDocuments)
	h.mux.HandleFunc("POST /tables/{table}/documents", h.insertDocuments)
	h.mux.HandleFunc("DELETE /tables/{table}/documents", h.purgeDocuments)
	h.mux.HandleFunc("GET /tables/{table}/documents/{id}", h.getDocument)
	h.mux.HandleFunc("DELETE /tables/{table}/documents/{id}", h.removeDocument)
	h.mux.HandleFunc("GET /tables/{table}/count", h.countDocuments)

	// --- Queries ---
	h.mux.HandleFunc("POST /tables/{table}/search", h.search)
	h.mux.HandleFunc("POST /tables/{table}/get", h.getFirst)
	h.mux.HandleFunc("POST /tables/{table}/remove", h.remove)

	// --- Schema ---
	h.mux.HandleFunc("GET /tables/{table}/schema", h.getSchema)
	h.mux.HandleFunc("PUT /tables/{table}/schema", h.putSchema)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// readJSON decodes the request body with the default codec, so integers
// keep their precision.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return codec.Default.Unmarshal(b, v)
}

// statusFor maps database errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, docstore.ErrReservedField):
		return http.StatusConflict
	case errors.Is(err, docstore.ErrInvalidDocument),
		errors.Is(err, query.ErrTypeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, query.ErrInvalidPattern),
		errors.Is(err, query.ErrPredicateNotReady),
		errors.Is(err, schema.ErrInvalidSchema),
		errors.Is(err, docstore.ErrInvalidTableName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

// table resolves the {table} path value to an existing table, so that
// requests for unknown names get a 404 instead of a new registry entry.
// Callers must hold h.mu.
func (h *Handler) table(r *http.Request) (*docstore.Table, error) {
	return h.db.Lookup(r.PathValue("table"))
}

// openTable is like table but opens the table if it does not exist yet.
func (h *Handler) openTable(r *http.Request) (*docstore.Table, error) {
	return h.db.Table(r.PathValue("table"))
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", r.PathValue("id"))
	}
	return id, nil
}

func readQuery(r *http.Request) (query.Predicate, error) {
	var q map[string]any
	if err := readJSON(r, &q); err != nil {
		return query.Predicate{}, fmt.Errorf("%w: %w", query.ErrInvalidQuery, err)
	}
	return query.Parse(q)
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "plaindb",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- tables ----------

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	names, err := h.db.Tables()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) dropTable(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := r.PathValue("table")
	if err := h.db.DropTable(name); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dropped", "table": name})
}

// ---------- documents ----------

func (h *Handler) allDocuments(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs, err := t.All()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// insertDocuments accepts one document object or an array of them.
func (h *Handler) insertDocuments(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var docs []docstore.Document
	_, batch := body.([]any)
	switch v := body.(type) {
	case map[string]any:
		docs = []docstore.Document{v}
	case []any:
		for i, elem := range v {
			doc, ok := elem.(map[string]any)
			if !ok {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("element %d is not a JSON object", i))
				return
			}
			docs = append(docs, doc)
		}
	default:
		writeError(w, http.StatusBadRequest, "expected a JSON object or array of objects")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.openTable(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ids, err := t.InsertMany(docs...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if batch {
		writeJSON(w, http.StatusCreated, map[string]any{"ids": ids})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": ids[0]})
}

func (h *Handler) purgeDocuments(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := t.Purge(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged", "table": t.Name()})
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := t.GetByID(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) removeDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := t.RemoveByID(id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func (h *Handler) countDocuments(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := t.Len()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// ---------- queries ----------

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	p, err := readQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs, err := t.Search(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) getFirst(w http.ResponseWriter, r *http.Request) {
	p, err := readQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, ok, err := t.Get(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no document matches %s", p))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	p, err := readQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ids, err := t.Remove(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": ids})
}

// ---------- schema endpoints ----------

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.table(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s := t.Schema()
	if s == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no schema for table %q", t.Name()))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) putSchema(w http.ResponseWriter, r *http.Request) {
	var s map[string]any
	if err := readJSON(r, &s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.openTable(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := t.SetSchema(s); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
