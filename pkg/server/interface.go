/*
Package server implements msgpack IPC for dictionary lookups.

The server reads a stream of msgpack requests from stdin and writes one msgpack
message per request to stdout. Editors and launchers spawn the binary and talk
to it over the pipes; logs go to stderr.

# IPC

Each message carries an ID that is echoed in the reply. Requests are handled
concurrently, so replies may arrive out of order; match them by ID.

A lookup uses mainly this structure, "m" being "t" for free text or "p" for a
pattern and "n" the optional target length of a free text query:

	{"id": "req_001", "q": "fi*", "m": "t", "n": 5}
	{"id": "req_002", "q": "f.s_", "m": "p"}

The server responds with the merged suggestion list, ranked by position:

	{"id": "req_001", "s": [{"w": "fiske", "d": ["bm", "nn"], "r": 1}], "c": 1, "t": 145}

"t" is the time taken in microseconds. Failed lookups reply with an error:

	{"id": "req_001", "e": "Failed to fetch suggestions. Please try again.", "c": 502}

# Actions

Requests with an "a" field are not lookups:

	{"id": "h1", "a": "history", "q": "fi", "l": 10}   recently selected words
	{"id": "s1", "a": "select", "q": "fisk"}           record a selection
	{"id": "p1", "a": "ping"}                          liveness check

msgpack encoding has ~30 to 50% smaller message sizes compared to JSON and a
length-prefixed framing, so no line delimiters are needed.
*/
package server

// Actions understood besides plain lookups
const (
	ActionLookup  = ""
	ActionHistory = "history"
	ActionSelect  = "select"
	ActionPing    = "ping"
)

// LookupRequest - lookup or action request
type LookupRequest struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"a,omitempty"`
	Query  string `msgpack:"q"`
	Mode   string `msgpack:"m,omitempty"`
	Length int    `msgpack:"n,omitempty"`
	Limit  int    `msgpack:"l,omitempty"`
}

// LookupSuggestion - minimal suggestion
type LookupSuggestion struct {
	Word  string   `msgpack:"w"`
	Dicts []string `msgpack:"d"`
	Rank  uint16   `msgpack:"r"`
}

// LookupResponse - lookup response
type LookupResponse struct {
	ID          string             `msgpack:"id"`
	Suggestions []LookupSuggestion `msgpack:"s"`
	Count       int                `msgpack:"c"`
	TimeTaken   int64              `msgpack:"t"`
}

// StatusResponse answers ping and select actions
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
}

// LookupError holds basic error information for failed requests
type LookupError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
