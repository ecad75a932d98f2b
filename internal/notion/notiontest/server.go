// Package notiontest provides an in-memory fake of the Notion endpoints the
// mirror calls, for use in tests.
package notiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Call is one request received by the fake.
type Call struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// Server is a fake Notion API backed by a map of pages.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	pages   map[string]map[string]any
	order   []string
	calls   []Call
	nextID  int
	failOps map[string]int
	rawOps  map[string]string
}

// NewServer starts a fake. Close it with Server.Close.
func NewServer() *Server {
	s := &Server{
		pages:   make(map[string]map[string]any),
		failOps: make(map[string]int),
		rawOps:  make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// FailWith makes every subsequent call of op ("query", "create", "update")
// answer with status.
func (s *Server) FailWith(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOps[op] = status
}

// RespondRaw makes every subsequent successful call of op answer with body
// verbatim.
func (s *Server) RespondRaw(op, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawOps[op] = body
}

// Seed inserts a page directly and returns its ID.
func (s *Server) Seed(properties map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(properties)
}

// Calls returns a copy of every request received.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the requests for op.
func (s *Server) CallsTo(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if opFor(c.Method, c.Path) == op {
			out = append(out, c)
		}
	}
	return out
}

// Pages returns the stored properties keyed by page ID.
func (s *Server) Pages() map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]any, len(s.pages))
	for id, props := range s.pages {
		out[id] = props
	}
	return out
}

// PagesForIssue returns the IDs of pages whose Issue ID equals issueID.
func (s *Server) PagesForIssue(issueID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match(issueID)
}

func opFor(method, path string) string {
	switch {
	case method == http.MethodPost && strings.HasSuffix(path, "/query"):
		return "query"
	case method == http.MethodPost && path == "/v1/pages":
		return "create"
	case method == http.MethodPatch && strings.HasPrefix(path, "/v1/pages/"):
		return "update"
	}
	return ""
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})

	op := opFor(r.Method, r.URL.Path)
	if status, ok := s.failOps[op]; ok {
		writeJSON(w, status, map[string]any{
			"object": "error", "status": status, "code": "fake_failure", "message": "injected " + op + " failure",
		})
		return
	}
	if raw, ok := s.rawOps[op]; ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(raw))
		return
	}

	switch op {
	case "query":
		issueID := queryIssueID(body)
		results := []map[string]any{}
		for _, id := range s.match(issueID) {
			results = append(results, map[string]any{"object": "page", "id": id})
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "results": results})
	case "create":
		props, _ := body["properties"].(map[string]any)
		id := s.insert(props)
		writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": id})
	case "update":
		id := strings.TrimPrefix(r.URL.Path, "/v1/pages/")
		page, ok := s.pages[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"object": "error", "status": 404, "code": "object_not_found"})
			return
		}
		props, _ := body["properties"].(map[string]any)
		for k, v := range props {
			page[k] = v
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": id})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"object": "error", "status": 404, "code": "invalid_request_url"})
	}
}

func (s *Server) insert(props map[string]any) string {
	s.nextID++
	id := fmt.Sprintf("page-%d", s.nextID)
	copied := make(map[string]any, len(props))
	for k, v := range props {
		copied[k] = v
	}
	s.pages[id] = copied
	s.order = append(s.order, id)
	return id
}

func (s *Server) match(issueID string) []string {
	var ids []string
	for _, id := range s.order {
		if IssueIDOf(s.pages[id]) == issueID {
			ids = append(ids, id)
		}
	}
	return ids
}

// IssueIDOf reads the plain text of the Issue ID property.
func IssueIDOf(props map[string]any) string {
	return PlainText(props, "Issue ID", "rich_text")
}

// PlainText concatenates the text content of a title or rich_text property.
func PlainText(props map[string]any, name, kind string) string {
	prop, _ := props[name].(map[string]any)
	items, _ := prop[kind].([]any)
	var sb strings.Builder
	for _, item := range items {
		m, _ := item.(map[string]any)
		text, _ := m["text"].(map[string]any)
		content, _ := text["content"].(string)
		sb.WriteString(content)
	}
	return sb.String()
}

// SelectName reads the name of a select property.
func SelectName(props map[string]any, name string) string {
	prop, _ := props[name].(map[string]any)
	sel, _ := prop["select"].(map[string]any)
	s, _ := sel["name"].(string)
	return s
}

func queryIssueID(body map[string]any) string {
	filter, _ := body["filter"].(map[string]any)
	for _, key := range []string{"rich_text", "text"} {
		if cond, ok := filter[key].(map[string]any); ok {
			v, _ := cond["equals"].(string)
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
