// Package extract recovers a normalized content string from the JSON
// payload of a request record. It parses strictly first and falls back to
// a tolerant line-scan reconstruction when the payload is malformed
// (unescaped control characters, truncation, missing quotes).
package extract

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// ErrMalformedPayload is returned when both the strict parse and the
// recovery scan fail to produce any message.
var ErrMalformedPayload = errors.New("malformed payload")

// ErrNoMessages is returned when the payload parses but carries no
// messages to extract content from.
var ErrNoMessages = errors.New("payload has no messages")

// Message is one role-bearing unit of a request payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// payload keeps Content as a pointer so a message lacking the content
// key can be told apart from one carrying an empty string.
type payload struct {
	Messages []struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"messages"`
}

// messages drops entries without a content key; they contribute nothing
// to the combined content and must not inject separators.
func (p payload) messages() []Message {
	var msgs []Message
	for _, m := range p.Messages {
		if m.Content == nil {
			continue
		}
		msgs = append(msgs, Message{Role: m.Role, Content: *m.Content})
	}
	return msgs
}

// Normalize extracts the combined message content from a raw record body.
// Invalid UTF-8 is repaired by substitution before parsing. The returned
// string is every message's content in payload order, separated by a blank
// line, free of the payload's structural punctuation.
func Normalize(rawBody string) (string, error) {
	repaired := repairUTF8(rawBody)

	var p payload
	if err := json.Unmarshal([]byte(repaired), &p); err == nil {
		if len(p.Messages) == 0 {
			return "", ErrNoMessages
		}
		return joinContents(p.messages()), nil
	}

	msgs := recoverMessages(repaired)
	if len(msgs) == 0 {
		return "", ErrMalformedPayload
	}
	return joinContents(msgs), nil
}

func joinContents(msgs []Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n\n")
}

// repairUTF8 replaces invalid byte sequences with U+FFFD so neither
// parsing path has to deal with broken encoding.
func repairUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	repaired, err := unicode.UTF8.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return repaired
}
