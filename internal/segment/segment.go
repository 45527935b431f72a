// Package segment splits an append-only gateway log stream into discrete,
// timestamped records. The log has no container format: a record starts at
// a header line and runs until the next header line or end of input.
package segment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// RequestHeader matches a request header line in the gateway input log, e.g.
//
//	[2024-01-01 10:00:00.000000] Generate request payload [abc-123]:
//
// Capture groups are (timestamp, identifier).
var RequestHeader = regexp.MustCompile(`^\[([^\]]+)\] Generate.*?\[([^\]]+)\]:`)

// ResponseHeader matches a response header line in the gateway output log,
// which additionally carries the word "response" before the identifier:
//
//	[2024-01-01 10:00:02.500000] Generate response [abc-123]:
var ResponseHeader = regexp.MustCompile(`^\[([^\]]+)\] Generate.*?response \[([^\]]+)\]:`)

// Record is one segmented unit of the log stream: a header line plus all
// body lines up to the next header. The timestamp is kept as an opaque
// string; only the correlator interprets its format.
type Record struct {
	Identifier string
	Timestamp  string
	RawBody    string
}

// Segmenter scans a line stream and emits one Record per header match.
// Request-side and response-side logs share the implementation with
// different header patterns.
type Segmenter struct {
	header *regexp.Regexp
}

// New creates a Segmenter for the given header pattern. The pattern must
// have exactly two capture groups: timestamp and identifier.
func New(header *regexp.Regexp) *Segmenter {
	return &Segmenter{header: header}
}

// Scan reads lines from r and calls fn once per record, in stream order.
// Lines before the first header are preamble and are discarded. A header
// immediately followed by another header (or by EOF) yields a record with
// an empty body. Returning an error from fn stops the scan.
//
// Header detection is anchored at the start of the whitespace-trimmed line
// so that payload content resembling a header cannot open a record.
func (s *Segmenter) Scan(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer

	var (
		open    bool
		current Record
		body    []string
	)

	flush := func() error {
		if !open {
			return nil
		}
		current.RawBody = strings.TrimSpace(strings.Join(body, "\n"))
		return fn(current)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if m := s.header.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if err := flush(); err != nil {
				return err
			}
			current = Record{Timestamp: m[1], Identifier: m[2]}
			body = body[:0]
			open = true
			continue
		}
		if open {
			body = append(body, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	return flush()
}

// ScanFile opens path and scans it. See Scan.
func (s *Segmenter) ScanFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return s.Scan(f, fn)
}
