package segment

import (
	"errors"
	"strings"
	"testing"
)

func collect(t *testing.T, s *Segmenter, input string) []Record {
	t.Helper()
	var records []Record
	err := s.Scan(strings.NewReader(input), func(r Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return records
}

func TestScan_BasicRecords(t *testing.T) {
	input := strings.Join([]string{
		`[2024-01-01 10:00:00.000000] Generate request payload [abc-123]:`,
		`{`,
		`  "messages": []`,
		`}`,
		`[2024-01-01 10:00:05.000000] Generate request payload [def-456]:`,
		`body two`,
	}, "\n")

	records := collect(t, New(RequestHeader), input)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Identifier != "abc-123" || records[0].Timestamp != "2024-01-01 10:00:00.000000" {
		t.Errorf("record[0] = %q %q", records[0].Identifier, records[0].Timestamp)
	}
	if records[0].RawBody != "{\n  \"messages\": []\n}" {
		t.Errorf("record[0] body = %q", records[0].RawBody)
	}
	if records[1].Identifier != "def-456" || records[1].RawBody != "body two" {
		t.Errorf("record[1] = %q %q", records[1].Identifier, records[1].RawBody)
	}
}

func TestScan_DiscardsPreamble(t *testing.T) {
	input := strings.Join([]string{
		`gateway starting up`,
		`version 1.2.3`,
		`[2024-01-01 10:00:00.000000] Generate request payload [abc-123]:`,
		`payload`,
	}, "\n")

	records := collect(t, New(RequestHeader), input)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].RawBody != "payload" {
		t.Errorf("body = %q", records[0].RawBody)
	}
}

func TestScan_ConsecutiveHeadersYieldEmptyBody(t *testing.T) {
	input := strings.Join([]string{
		`[2024-01-01 10:00:00.000000] Generate request payload [abc-123]:`,
		`[2024-01-01 10:00:01.000000] Generate request payload [def-456]:`,
		`body`,
	}, "\n")

	records := collect(t, New(RequestHeader), input)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RawBody != "" {
		t.Errorf("record[0] body = %q, want empty", records[0].RawBody)
	}
	if records[1].RawBody != "body" {
		t.Errorf("record[1] body = %q", records[1].RawBody)
	}
}

func TestScan_HeaderAtEOF(t *testing.T) {
	input := `[2024-01-01 10:00:00.000000] Generate request payload [abc-123]:`

	records := collect(t, New(RequestHeader), input)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].RawBody != "" {
		t.Errorf("body = %q, want empty", records[0].RawBody)
	}
}

func TestScan_HeaderShapeInsideBodyIgnored(t *testing.T) {
	// A header-like string embedded mid-line must not open a record.
	input := strings.Join([]string{
		`[2024-01-01 10:00:00.000000] Generate request payload [abc-123]:`,
		`  "content": "see [2024-01-01 10:00:00.000000] Generate request payload [xxx-999]: for details"`,
	}, "\n")

	records := collect(t, New(RequestHeader), input)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Identifier != "abc-123" {
		t.Errorf("identifier = %q", records[0].Identifier)
	}
}

func TestScan_ResponsePattern(t *testing.T) {
	input := strings.Join([]string{
		`[2024-01-01 10:00:00.000000] Generate request payload [abc-123]:`,
		`this is a request header, not a response`,
		`[2024-01-01 10:00:02.500000] Generate response [abc-123]:`,
		`The guard nods.`,
	}, "\n")

	records := collect(t, New(ResponseHeader), input)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Identifier != "abc-123" || records[0].Timestamp != "2024-01-01 10:00:02.500000" {
		t.Errorf("record = %q %q", records[0].Identifier, records[0].Timestamp)
	}
	if records[0].RawBody != "The guard nods." {
		t.Errorf("body = %q", records[0].RawBody)
	}
}

func TestScan_NoLinesDroppedAfterFirstHeader(t *testing.T) {
	lines := []string{
		`[2024-01-01 10:00:00.000000] Generate request payload [a-1]:`,
		`line one`,
		`line two`,
		`[2024-01-01 10:00:01.000000] Generate request payload [a-2]:`,
		`line three`,
	}

	records := collect(t, New(RequestHeader), strings.Join(lines, "\n"))

	var got []string
	for _, r := range records {
		got = append(got, "["+r.Timestamp+"] Generate request payload ["+r.Identifier+"]:")
		if r.RawBody != "" {
			got = append(got, strings.Split(r.RawBody, "\n")...)
		}
	}
	if strings.Join(got, "\n") != strings.Join(lines, "\n") {
		t.Errorf("reconstruction mismatch:\ngot  %q\nwant %q", got, lines)
	}
}

func TestScan_CallbackErrorStopsScan(t *testing.T) {
	input := strings.Join([]string{
		`[2024-01-01 10:00:00.000000] Generate request payload [a-1]:`,
		`body`,
		`[2024-01-01 10:00:01.000000] Generate request payload [a-2]:`,
	}, "\n")

	calls := 0
	err := New(RequestHeader).Scan(strings.NewReader(input), func(Record) error {
		calls++
		return errStop
	})
	if err != errStop {
		t.Fatalf("expected errStop, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

var errStop = errors.New("stop")

func TestScanFile_NotFound(t *testing.T) {
	err := New(RequestHeader).ScanFile("/nonexistent/input.log", func(Record) error { return nil })
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}
