package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/ordsok/internal/utils"
	"github.com/bastiangx/ordsok/pkg/ordbok"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

const (
	// maxQueryLength bounds free text queries, in runes
	maxQueryLength = 60
	defaultWorkers = 8
)

// Server handles the IPC for dictionary lookups
type Server struct {
	fetcher  suggest.Fetcher
	history  *suggest.History
	reader   io.Reader
	writer   io.Writer
	encoder  *msgpack.Encoder
	writeMu  sync.Mutex
	workers  int
	noFilter bool
}

// Option configures a Server
type Option func(*Server)

// WithIO replaces stdin/stdout
func WithIO(r io.Reader, w io.Writer) Option {
	return func(s *Server) {
		s.reader = r
		s.writer = w
	}
}

// WithHistory enables the history and select actions
func WithHistory(h *suggest.History) Option {
	return func(s *Server) { s.history = h }
}

// WithWorkers bounds how many requests are handled at once
func WithWorkers(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithNoFilter passes every free text query through, even digits and symbols
func WithNoFilter(noFilter bool) Option {
	return func(s *Server) { s.noFilter = noFilter }
}

// NewServer creates a lookup server using stdin/stdout for IPC
func NewServer(fetcher suggest.Fetcher, opts ...Option) *Server {
	s := &Server{
		fetcher: fetcher,
		reader:  os.Stdin,
		writer:  os.Stdout,
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.encoder = msgpack.NewEncoder(s.writer)
	return s
}

// Start reads requests until EOF or until ctx is done, then waits for the
// requests already accepted. A message that cannot be decoded ends the stream.
//
// Cancelling ctx closes the reader when it is an io.Closer, which ends a read
// in progress on pipes. Other readers are only checked between messages.
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting IPC server", "workers", s.workers)

	if closer, ok := s.reader.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			if err := closer.Close(); err != nil {
				log.Debug("Closing request stream", "err", err)
			}
		})
		defer stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	dec := msgpack.NewDecoder(bufio.NewReader(s.reader))

	for {
		var req LookupRequest
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("Client closed the stream")
				break
			}
			if ctx.Err() != nil {
				log.Debug("IPC server stopped", "err", ctx.Err())
				break
			}
			s.sendError("", "Invalid msgpack request", 400)
			_ = g.Wait()
			return fmt.Errorf("decoding request: %w", err)
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.handleRequest(gctx, req)
			return nil
		})
	}
	return g.Wait()
}

// handleRequest dispatches on the action
func (s *Server) handleRequest(ctx context.Context, req LookupRequest) {
	switch req.Action {
	case ActionLookup:
		s.handleLookup(ctx, req)
	case ActionHistory:
		s.handleHistory(req)
	case ActionSelect:
		s.handleSelect(req)
	case ActionPing:
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown action: %s", req.Action), 400)
	}
}

func (s *Server) handleLookup(ctx context.Context, req LookupRequest) {
	kind, ok := query.ParseKind(req.Mode)
	if !ok {
		s.sendError(req.ID, fmt.Sprintf("Unknown mode: %s", req.Mode), 400)
		return
	}
	if utf8.RuneCountInString(req.Query) > maxQueryLength {
		s.sendError(req.ID, fmt.Sprintf("Query exceeds maximum length of %d characters", maxQueryLength), 400)
		log.Debug("Query is too long in request")
		return
	}
	if req.Length < 0 || req.Length > query.MaxLength {
		s.sendError(req.ID, fmt.Sprintf("Length must be between 0 and %d", query.MaxLength), 400)
		return
	}

	var q query.Query
	if kind == query.KindPattern {
		q = query.FromPattern(query.ParsePattern(req.Query))
	} else {
		if !s.noFilter && !utils.IsBlank(req.Query) && !utils.IsValidInput(req.Query) {
			log.Debugf("Filtered query '%s'", req.Query)
			s.send(LookupResponse{ID: req.ID, Suggestions: []LookupSuggestion{}})
			return
		}
		q = query.NewFreeText(req.Query, req.Length)
	}

	start := time.Now()
	list, err := s.fetcher.Fetch(ctx, q)
	elapsed := time.Since(start)
	if err != nil {
		log.Warnf("Lookup %s failed: %v", req.ID, err)
		s.sendError(req.ID, userMessage(err), 502)
		return
	}
	log.Debugf("Took [ %v ] for '%s'", elapsed, q.Term())

	suggestions := toWire(list, req.Limit)
	s.send(LookupResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   elapsed.Microseconds(),
	})
}

func (s *Server) handleHistory(req LookupRequest) {
	if s.history == nil {
		s.sendError(req.ID, "History is disabled", 404)
		return
	}
	limit := req.Limit
	if limit < 1 {
		limit = 10
	}
	suggestions := toWire(s.history.Recent(req.Query, limit), 0)
	s.send(LookupResponse{ID: req.ID, Suggestions: suggestions, Count: len(suggestions)})
}

func (s *Server) handleSelect(req LookupRequest) {
	if s.history == nil {
		s.sendError(req.ID, "History is disabled", 404)
		return
	}
	if utils.IsBlank(req.Query) {
		s.sendError(req.ID, "Missing 'q' parameter", 400)
		return
	}
	s.history.Record(suggest.New(req.Query))
	s.send(StatusResponse{ID: req.ID, Status: "ok"})
}

// toWire converts a list to wire suggestions ranked by position, keeping at most limit when limit > 0.
func toWire(list suggest.List, limit int) []LookupSuggestion {
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	ranks := utils.CreateRankList(len(list))
	out := make([]LookupSuggestion, len(list))
	for i, sg := range list {
		out[i] = LookupSuggestion{
			Word:  sg.Word(),
			Dicts: sg.Codes(),
			Rank:  ranks[i],
		}
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

// send encodes one message. Writes are serialized so concurrent replies never interleave.
func (s *Server) send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.encoder.Encode(v); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.send(LookupError{ID: id, Error: message, Code: code})
}
