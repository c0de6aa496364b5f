package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// FakeNotionToken is the only bearer token FakeNotion accepts.
const FakeNotionToken = "secret_test"

// FakeNotionPage is a stored page with properties kept as raw JSON values.
type FakeNotionPage struct {
	ID         string
	Archived   bool
	Properties map[string]json.RawMessage
}

// NotionCounts counts the calls a FakeNotion served.
type NotionCounts struct {
	Queries  int
	Creates  int
	Patches  int
	Archives int
}

// FakeNotion emulates the subset of the Notion API used by the catalog
// store: database query, page create and page patch.
type FakeNotion struct {
	Server     *httptest.Server
	URL        string
	DatabaseID string
	// Schema maps property name to Notion type. When set, query results carry
	// every schema property, blank when the page never set it, as Notion does.
	Schema map[string]string

	mu       sync.Mutex
	order    []string
	pages    map[string]*FakeNotionPage
	counts   NotionCounts
	requests []string
}

// NewFakeNotion starts a fake Notion API and stops it when the test ends.
func NewFakeNotion(t *testing.T) *FakeNotion {
	t.Helper()

	f := &FakeNotion{
		DatabaseID: "db-" + uuid.NewString()[:8],
		pages:      map[string]*FakeNotionPage{},
	}

	r := chi.NewRouter()
	r.Use(f.auth)
	r.Post("/databases/{db}/query", f.query)
	r.Post("/pages", f.create)
	r.Patch("/pages/{id}", f.patch)

	f.Server = httptest.NewServer(r)
	f.URL = f.Server.URL
	t.Cleanup(f.Server.Close)
	return f
}

// SeedPage stores a page whose properties are the JSON encoding of props, a
// map keyed by property name, and returns its id.
func (f *FakeNotion) SeedPage(props any) string {
	b, err := json.Marshal(props)
	if err != nil {
		panic(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(raw)
}

// Counts returns a snapshot of the call counters.
func (f *FakeNotion) Counts() NotionCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts
}

// Requests returns "METHOD path" of each call, in order.
func (f *FakeNotion) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Page returns a copy of a stored page.
func (f *FakeNotion) Page(id string) (FakeNotionPage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pages[id]
	if !ok {
		return FakeNotionPage{}, false
	}
	out := *p
	out.Properties = make(map[string]json.RawMessage, len(p.Properties))
	for k, v := range p.Properties {
		out.Properties[k] = v
	}
	return out, true
}

// PageIDs returns stored page ids in insertion order.
func (f *FakeNotion) PageIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *FakeNotion) insert(props map[string]json.RawMessage) string {
	id := uuid.NewString()
	f.pages[id] = &FakeNotionPage{ID: id, Properties: props}
	f.order = append(f.order, id)
	return id
}

func (f *FakeNotion) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+FakeNotionToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"object": "error", "status": 401, "code": "unauthorized", "message": "API token is invalid.",
			})
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"object": "error", "status": 400, "code": "missing_version", "message": "Notion-Version header missing.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeNotion) query(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.Queries++

	if chi.URLParam(r, "db") != f.DatabaseID {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"object": "error", "status": 404, "code": "object_not_found", "message": "Could not find database.",
		})
		return
	}

	var req struct {
		PageSize    int    `json:"page_size"`
		StartCursor string `json:"start_cursor"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.PageSize <= 0 {
		req.PageSize = 100
	}

	var active []string
	for _, id := range f.order {
		if !f.pages[id].Archived {
			active = append(active, id)
		}
	}

	start := 0
	if req.StartCursor != "" {
		n, err := strconv.Atoi(req.StartCursor)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"object": "error", "status": 400, "code": "validation_error", "message": "bad cursor",
			})
			return
		}
		start = n
	}
	if start > len(active) {
		start = len(active)
	}
	end := start + req.PageSize
	if end > len(active) {
		end = len(active)
	}

	results := make([]map[string]any, 0, end-start)
	for _, id := range active[start:end] {
		p := f.pages[id]
		results = append(results, map[string]any{
			"object":     "page",
			"id":         p.ID,
			"archived":   p.Archived,
			"properties": f.withSchema(p.Properties),
		})
	}

	var next any
	hasMore := end < len(active)
	if hasMore {
		next = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object":      "list",
		"results":     results,
		"has_more":    hasMore,
		"next_cursor": next,
	})
}

func (f *FakeNotion) withSchema(props map[string]json.RawMessage) map[string]json.RawMessage {
	if len(f.Schema) == 0 {
		return props
	}
	out := make(map[string]json.RawMessage, len(f.Schema))
	for name, typ := range f.Schema {
		if v, ok := props[name]; ok {
			out[name] = v
			continue
		}
		var blank any
		switch typ {
		case "title", "rich_text", "multi_select":
			blank = []any{}
		}
		b, _ := json.Marshal(map[string]any{"id": name, "type": typ, typ: blank})
		out[name] = b
	}
	return out
}

func (f *FakeNotion) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent struct {
			DatabaseID string `json:"database_id"`
		} `json:"parent"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Parent.DatabaseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"object": "error", "status": 400, "code": "validation_error", "message": "invalid body",
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.Creates++
	id := f.insert(req.Properties)
	writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": id})
}

func (f *FakeNotion) patch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Archived   bool                       `json:"archived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"object": "error", "status": 400, "code": "validation_error", "message": "invalid body",
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pages[chi.URLParam(r, "id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"object": "error", "status": 404, "code": "object_not_found", "message": "Could not find page.",
		})
		return
	}
	if req.Archived {
		p.Archived = true
		f.counts.Archives++
	}
	if len(req.Properties) > 0 {
		f.counts.Patches++
		for k, v := range req.Properties {
			p.Properties[k] = v
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": p.ID})
}
