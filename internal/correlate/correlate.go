// Package correlate joins response records to the requests that produced
// them and computes per-pair response times.
package correlate

import "time"

// timestampLayout is the lexical format of gateway log header timestamps.
const timestampLayout = "2006-01-02 15:04:05.000000"

// IdentifierEntry is one request seen during the request pass, as
// persisted in unique_identifiers.json.
type IdentifierEntry struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	PromptType string `json:"prompt_type"`
}

// TimingRecord pairs a response with its originating request.
// ResponseTime is nil when either timestamp failed to parse; the record is
// still retained for count-based reporting.
type TimingRecord struct {
	ID                string   `json:"id"`
	PromptType        string   `json:"prompt_type"`
	RequestTimestamp  string   `json:"request_timestamp"`
	ResponseTimestamp string   `json:"response_timestamp"`
	ResponseTime      *float64 `json:"response_time"`
}

// Index is the identifier → request lookup built after the request pass.
// It is read-only once built.
type Index struct {
	byID map[string]IdentifierEntry
}

// NewIndex builds an Index from the request pass output. Later entries
// with a duplicate identifier overwrite earlier ones.
func NewIndex(entries []IdentifierEntry) *Index {
	byID := make(map[string]IdentifierEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	return &Index{byID: byID}
}

// Lookup returns the request entry for an identifier.
func (x *Index) Lookup(id string) (IdentifierEntry, bool) {
	e, ok := x.byID[id]
	return e, ok
}

// Len returns the number of indexed requests.
func (x *Index) Len() int {
	return len(x.byID)
}

// PromptTypes returns the set of prompt types present in the index.
func (x *Index) PromptTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, e := range x.byID {
		if !seen[e.PromptType] {
			seen[e.PromptType] = true
			types = append(types, e.PromptType)
		}
	}
	return types
}

// Correlate joins a response (identifier + response timestamp) to its
// request. ok is false when the identifier was never seen on the request
// side; such responses are dropped from timing output.
func (x *Index) Correlate(id, responseTimestamp string) (TimingRecord, bool) {
	entry, ok := x.byID[id]
	if !ok {
		return TimingRecord{}, false
	}
	return TimingRecord{
		ID:                id,
		PromptType:        entry.PromptType,
		RequestTimestamp:  entry.Timestamp,
		ResponseTimestamp: responseTimestamp,
		ResponseTime:      elapsedSeconds(entry.Timestamp, responseTimestamp),
	}, true
}

// elapsedSeconds returns response − request in fractional seconds, or nil
// when either timestamp does not parse.
func elapsedSeconds(requestTS, responseTS string) *float64 {
	req, err := time.Parse(timestampLayout, requestTS)
	if err != nil {
		return nil
	}
	resp, err := time.Parse(timestampLayout, responseTS)
	if err != nil {
		return nil
	}
	elapsed := resp.Sub(req).Seconds()
	return &elapsed
}
