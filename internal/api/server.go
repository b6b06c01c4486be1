package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/catalog"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/ingest"
	"github.com/pbaille/medcat/internal/logging"
	"github.com/pbaille/medcat/internal/taxonomy"
)

const maxBodyBytes = 4 << 20

// Core is the set of stores the API serves
type Core struct {
	Catalog   *catalog.Store
	Hierarchy *taxonomy.Hierarchy
	Groups    *taxonomy.GroupManager
}

// Server handles HTTP requests for the catalog API
type Server struct {
	core   Core
	ingest *ingest.Ingester
	addr   string
	logger *log.Logger

	// mu serializes mutations; readers take the read lock so they never see a
	// snapshot swap half way through a request
	mu sync.RWMutex
}

// New creates a new API server
func New(core Core, addr string, logger *log.Logger) *Server {
	logger = logging.OrDiscard(logger)
	norm := taxonomy.NewNormalizer(core.Hierarchy, logger)
	return &Server{
		core:   core,
		ingest: ingest.New(core.Catalog, norm, logger),
		addr:   addr,
		logger: logger,
	}
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Items
	mux.HandleFunc("GET /items", s.listItems)
	mux.HandleFunc("POST /items", s.addItems)
	mux.HandleFunc("GET /items/{id}", s.getItem)
	mux.HandleFunc("PATCH /items/{id}", s.patchItem)

	// Tags
	mux.HandleFunc("GET /tags", s.listTags)
	mux.HandleFunc("POST /tags", s.addTag)
	mux.HandleFunc("POST /tags/{meta}/{canonical}/aliases", s.addAlias)

	// Groups
	mux.HandleFunc("GET /groups", s.listGroups)
	mux.HandleFunc("POST /groups", s.createGroup)
	mux.HandleFunc("GET /groups/suggestions", s.suggestGroups)

	mux.HandleFunc("GET /stats", s.stats)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filterFromQuery reads meta.<name>=<tag>, year_from, year_to, q, tag,
// read_status, priority, sort and desc
func filterFromQuery(q map[string][]string) (catalog.Filter, error) {
	var f catalog.Filter
	for key, vals := range q {
		name, ok := strings.CutPrefix(key, "meta.")
		if !ok || len(vals) == 0 {
			continue
		}
		meta, err := domain.ParseMetaTag(name)
		if err != nil {
			return f, err
		}
		if f.Perspectives == nil {
			f.Perspectives = map[domain.MetaTag]string{}
		}
		f.Perspectives[meta] = vals[0]
	}
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	var err error
	if f.YearFrom, err = intParam(get("year_from")); err != nil {
		return f, err
	}
	if f.YearTo, err = intParam(get("year_to")); err != nil {
		return f, err
	}
	f.Keyword = get("q")
	f.Tag = get("tag")
	if v := get("read_status"); v != "" {
		if f.ReadStatus, err = domain.ParseReadStatus(v); err != nil {
			return f, err
		}
	}
	if v := get("priority"); v != "" {
		if f.Priority, err = domain.ParsePriority(v); err != nil {
			return f, err
		}
	}
	f.SortBy = get("sort")
	f.Desc = get("desc") == "true"
	return f, f.Validate()
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.Errorf(domain.ErrValidation, "%q is not a number", s)
	}
	return n, nil
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeErr(w, err)
		return
	}

	s.mu.RLock()
	items := []domain.Item{}
	for it := range s.core.Catalog.List(f) {
		items = append(items, it)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// addItems ingests one record or an array of records
func (s *Server) addItems(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	records, err := ingest.ParseJSON(body)
	if err != nil {
		writeErr(w, err)
		return
	}

	s.mu.Lock()
	res := s.ingest.Ingest(records)
	s.mu.Unlock()

	status := http.StatusCreated
	if len(res.Added) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	it, err := s.core.Catalog.Get(r.PathValue("id"))
	s.mu.RUnlock()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// PatchItemRequest updates status fields of an item
type PatchItemRequest struct {
	ReadStatus *string `json:"read_status,omitempty"`
	Priority   *string `json:"priority,omitempty"`
}

func (s *Server) patchItem(w http.ResponseWriter, r *http.Request) {
	var req PatchItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReadStatus == nil && req.Priority == nil {
		writeError(w, http.StatusBadRequest, "read_status or priority is required")
		return
	}

	var (
		status   domain.ReadStatus
		priority domain.Priority
		err      error
	)
	if req.ReadStatus != nil {
		if status, err = domain.ParseReadStatus(*req.ReadStatus); err != nil {
			writeErr(w, err)
			return
		}
	}
	if req.Priority != nil {
		if priority, err = domain.ParsePriority(*req.Priority); err != nil {
			writeErr(w, err)
			return
		}
	}

	s.mu.Lock()
	it, err := s.core.Catalog.Update(r.PathValue("id"), func(it *domain.Item) error {
		if status != "" {
			it.ReadStatus = status
		}
		if priority != "" {
			it.Priority = priority
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	var meta domain.MetaTag
	if m := r.URL.Query().Get("meta"); m != "" {
		var err error
		if meta, err = domain.ParseMetaTag(m); err != nil {
			writeErr(w, err)
			return
		}
	}

	s.mu.RLock()
	tags := []taxonomy.Tag{}
	for t := range s.core.Hierarchy.Tags(meta) {
		tags = append(tags, t)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// AddTagRequest is the request body for registering a canonical tag
type AddTagRequest struct {
	MetaTag string   `json:"meta_tag"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

func (s *Server) addTag(w http.ResponseWriter, r *http.Request) {
	var req AddTagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	meta, err := domain.ParseMetaTag(req.MetaTag)
	if err != nil {
		writeErr(w, err)
		return
	}

	name := taxonomy.Key(req.Name)
	s.mu.Lock()
	err = s.core.Hierarchy.AddTag(meta, req.Name, req.Aliases...)
	aliases := s.core.Hierarchy.Aliases(meta, name)
	s.mu.Unlock()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taxonomy.Tag{MetaTag: meta, Name: name, Aliases: aliases})
}

func (s *Server) addAlias(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Alias string `json:"alias"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	meta, err := domain.ParseMetaTag(r.PathValue("meta"))
	if err != nil {
		writeErr(w, err)
		return
	}
	canonical := taxonomy.Key(r.PathValue("canonical"))

	s.mu.Lock()
	err = s.core.Hierarchy.AddAlias(meta, canonical, req.Alias)
	aliases := s.core.Hierarchy.Aliases(meta, canonical)
	s.mu.Unlock()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taxonomy.Tag{MetaTag: meta, Name: canonical, Aliases: aliases})
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	var groups []domain.TagGroup
	if tag := r.URL.Query().Get("tag"); tag != "" {
		groups = s.core.Groups.GroupsForTag(tag)
	} else {
		groups = s.core.Groups.Groups()
	}
	s.mu.RUnlock()

	if groups == nil {
		groups = []domain.TagGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req domain.TagGroup
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	g, err := s.core.Groups.CreateGroup(req.ID, req.MetaTag, req.DisplayName, req.Tags, req.Description)
	s.mu.Unlock()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) suggestGroups(w http.ResponseWriter, r *http.Request) {
	minCount := 2
	if v := r.URL.Query().Get("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "min must be a non-negative integer")
			return
		}
		minCount = n
	}

	s.mu.RLock()
	suggestions := s.core.Groups.SuggestGroups(s.core.Catalog, minCount)
	s.mu.RUnlock()

	if suggestions == nil {
		suggestions = []taxonomy.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"min":         minCount,
		"suggestions": suggestions,
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.core.Catalog.Stats()
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, st)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusOf maps error kinds to HTTP statuses
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownTag):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAliasConflict),
		errors.Is(err, domain.ErrDuplicateTag),
		errors.Is(err, domain.ErrDuplicateGroup),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err.Error())
}
