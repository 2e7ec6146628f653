/*
Package ordbok is a client for the University of Bergen dictionary suggest API.

A lookup is one GET request against the suggest endpoint:

	https://ord.uib.no/api/suggest?dict=bm,nn&n=50&include=ef&q=fisk

Free text queries with an active target length add a length class, here for
words of exactly five characters:

	...&q=fi*&w=.{5}

Pattern queries send the pattern itself, with every unknown slot written as
the service wildcard "_":

	...&q=f_s_

The response carries two tiers, "exact" and "freetext". The client merges them,
exact first, and keeps the first occurrence of every word.

	client, err := ordbok.NewClient(cfg.API)
	list, err := client.Fetch(ctx, query.NewFreeText("fisk", 0))

Identical requests that are in flight at the same time share one upstream call.
*/
package ordbok

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bastiangx/ordsok/pkg/config"
	"github.com/bastiangx/ordsok/pkg/dictionary"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// maxBodySize caps how much of a response is read. 50 suggestions are a few KB.
const maxBodySize = 4 << 20

// UserAgent is sent with every request
var UserAgent = "ordsok"

// settings is the immutable request template derived from config.APIConfig
type settings struct {
	base    *url.URL
	detail  string
	dicts   string
	limit   int
	include string
	timeout time.Duration
}

// Client fetches suggestions from the lookup service. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	settings atomic.Pointer[settings]
	group    singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the service described by cfg.
func NewClient(cfg config.APIConfig, opts ...Option) (*Client, error) {
	c := &Client{http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Apply(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply swaps in new api settings. Requests already in flight keep the old ones.
func (c *Client) Apply(cfg config.APIConfig) error {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadBaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadBaseURL, cfg.BaseURL)
	}

	dicts := make([]dictionary.Dictionary, 0, len(cfg.Dicts))
	for _, code := range cfg.Dicts {
		d := dictionary.Parse(code)
		if d == "" {
			continue
		}
		if !d.Known() {
			log.Warnf("Unknown dictionary %q in api.dicts, sending it as is", code)
		}
		dicts = append(dicts, d)
	}
	if len(dicts) == 0 {
		dicts = dictionary.All
	}
	limit := cfg.Limit
	if limit < 1 {
		limit = config.DefaultConfig().API.Limit
	}

	c.settings.Store(&settings{
		base:    base,
		detail:  cfg.DetailURL,
		dicts:   dictionary.Codes(dicts),
		limit:   limit,
		include: cfg.Include,
		timeout: cfg.Timeout(),
	})
	log.Debugf("Suggest client using %s (dicts=%s, n=%d)", base, dictionary.Codes(dicts), limit)
	return nil
}

// RequestURL returns the url Fetch would request for q
func (c *Client) RequestURL(q query.Query) string {
	return c.settings.Load().requestURL(q)
}

func (s *settings) requestURL(q query.Query) string {
	params := url.Values{}
	params.Set("dict", s.dicts)
	params.Set("n", strconv.Itoa(s.limit))
	if s.include != "" {
		params.Set("include", s.include)
	}
	params.Set("q", q.Term())
	if q.Kind() == query.KindText && q.Length() > 0 {
		params.Set("w", LengthClass(q.Length()))
	}

	u := *s.base
	u.RawQuery = params.Encode()
	return u.String()
}

// LengthClass expresses "exactly n characters" in the service's syntax
func LengthClass(n int) string {
	return ".{" + strconv.Itoa(n) + "}"
}

// DetailURL links to the public dictionary page for word
func (c *Client) DetailURL(word string) string {
	return DetailURL(c.settings.Load().detail, word)
}

// DetailURL appends word as the q parameter of base
func DetailURL(base, word string) string {
	if base == "" {
		base = config.DefaultConfig().API.DetailURL
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "q=" + url.QueryEscape(word)
}

// Fetch looks up q and returns the merged suggestion list.
// Blank queries return an empty list without a request.
// Any failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, q query.Query) (suggest.List, error) {
	if q.IsEmpty() {
		return suggest.List{}, nil
	}

	s := c.settings.Load()
	reqURL := s.requestURL(q)

	// the shared call must outlive any single caller's cancellation
	ch := c.group.DoChan(reqURL, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, s.timeout)
			defer cancel()
		}
		return c.get(fetchCtx, reqURL)
	})

	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: reqURL, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.(suggest.List)
		list := make(suggest.List, len(shared))
		copy(list, shared)
		return list, nil
	}
}

func (c *Client) get(ctx context.Context, reqURL string) (suggest.List, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debugf("GET %s failed: %v", reqURL, err)
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debugf("GET %s: status %d", reqURL, resp.StatusCode)
		return nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}

	list, err := ParseResponse(body)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	log.Debugf("Took [ %v ] for %s, %d suggestions", time.Since(start), reqURL, len(list))
	return list, nil
}
