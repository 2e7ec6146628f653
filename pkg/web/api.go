package web

import (
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bastiangx/ordsok/pkg/ordbok"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/search"
	"github.com/bastiangx/ordsok/pkg/suggest"
)

//go:embed static/index.html
var static embed.FS

// SuggestionJSON is one suggestion as sent to the browser
type SuggestionJSON struct {
	Word         string   `json:"word"`
	Dictionaries []string `json:"dictionaries"`
	Label        string   `json:"label"`
	Link         string   `json:"link"`
}

// SuggestResponse is the /api/suggest response format
type SuggestResponse struct {
	Query       string           `json:"query"`
	Mode        string           `json:"mode"`
	Suggestions []SuggestionJSON `json:"suggestions"`
	Count       int              `json:"count"`
	TimeTaken   int64            `json:"time_ms"`
}

// AreaJSON is a selectable category
type AreaJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		writeError(w, "Page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"sessions": s.Sessions(),
	}
	if s.history != nil {
		body["history"] = s.history.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	kind, ok := query.ParseKind(params.Get("mode"))
	if !ok {
		writeError(w, "Parameter 'mode' must be text or pattern", http.StatusBadRequest)
		return
	}
	length := 0
	if raw := params.Get("len"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > query.MaxLength {
			writeError(w, "Parameter 'len' must be a number from 0 to "+strconv.Itoa(query.MaxLength), http.StatusBadRequest)
			return
		}
		length = n
	}

	var q query.Query
	if kind == query.KindPattern {
		q = query.FromPattern(query.ParsePattern(params.Get("q")))
	} else {
		q = query.NewFreeText(params.Get("q"), length)
	}

	start := time.Now()
	list, err := s.fetcher.Fetch(r.Context(), q)
	if err != nil {
		s.log.Warn("Lookup failed", "q", q.Term(), "err", err)
		writeError(w, userMessage(err), http.StatusBadGateway)
		return
	}

	suggestions := s.toJSON(list)
	writeJSON(w, http.StatusOK, SuggestResponse{
		Query:       q.Term(),
		Mode:        kind.String(),
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleAreas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, areasJSON(search.Areas))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, "History is disabled", http.StatusNotFound)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("l"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "Parameter 'l' must be a positive number", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.toJSON(s.history.Recent(r.URL.Query().Get("p"), limit)))
}

func (s *Server) toJSON(list suggest.List) []SuggestionJSON {
	out := make([]SuggestionJSON, len(list))
	for i, sg := range list {
		out[i] = s.suggestionJSON(sg)
	}
	return out
}

func (s *Server) suggestionJSON(sg suggest.Suggestion) SuggestionJSON {
	return SuggestionJSON{
		Word:         sg.Word(),
		Dictionaries: sg.Codes(),
		Label:        sg.Label(),
		Link:         s.link(sg.Word()),
	}
}

func areasJSON(areas []search.Area) []AreaJSON {
	out := make([]AreaJSON, len(areas))
	for i, a := range areas {
		out[i] = AreaJSON{ID: a.ID, Name: a.Name}
	}
	return out
}

func userMessage(err error) string {
	var fe *ordbok.FetchError
	if errors.As(err, &fe) {
		return fe.UserMessage()
	}
	return ordbok.UserMessage
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, ErrorResponse{Error: message, Status: status})
}
