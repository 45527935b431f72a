package extract

import "strings"

// scanState is the recovery scanner's position within the payload.
type scanState int

const (
	// stateSeekingList: the messages key has not been seen yet.
	stateSeekingList scanState = iota
	// stateIdle: inside the message list, between objects.
	stateIdle
	// stateInObject: accumulating fields of the current message.
	stateInObject
	// stateInContent: capturing a (possibly multi-line) content value.
	stateInContent
)

// recoverer reconstructs messages from a payload that strict JSON parsing
// rejected. It scans line by line and tolerates stray delimiters, embedded
// newlines in string values, and truncated input.
type recoverer struct {
	state   scanState
	current Message
	open    bool // a message object is being accumulated
	content []string
	msgs    []Message
}

// recoverMessages runs the tolerant line scan over raw and returns every
// message it managed to finalize. An empty result means the payload is
// unusable.
func recoverMessages(raw string) []Message {
	r := &recoverer{state: stateSeekingList}
	for _, line := range strings.Split(raw, "\n") {
		if done := r.step(strings.TrimSpace(line)); done {
			break
		}
	}
	r.finish()
	return r.msgs
}

// step processes one trimmed line and reports whether the scan is complete
// (the message list was closed).
func (r *recoverer) step(line string) bool {
	switch r.state {
	case stateSeekingList:
		if strings.Contains(line, `"messages"`) {
			r.state = stateIdle
		}

	case stateIdle:
		switch {
		case line == "]":
			return true
		case strings.HasPrefix(line, "{"):
			r.openMessage()
		}

	case stateInObject:
		switch {
		case line == "]":
			return true
		case strings.HasPrefix(line, "{"):
			r.openMessage()
		case strings.Contains(line, `"content":`):
			r.beginContent(line)
		case strings.Contains(line, `"role":`):
			r.current.Role = unquoteField(line, `"role":`)
		case line == "}" || line == "},":
			r.closeMessage()
		}

	case stateInContent:
		switch {
		case strings.HasSuffix(line, `",`):
			r.content = append(r.content, strings.TrimSuffix(line, `",`))
			r.closeContent()
		case strings.HasSuffix(line, `"`):
			r.content = append(r.content, strings.TrimSuffix(line, `"`))
			r.closeContent()
		default:
			r.content = append(r.content, line)
		}
	}
	return false
}

func (r *recoverer) openMessage() {
	r.current = Message{}
	r.open = true
	r.state = stateInObject
}

// beginContent seeds the content buffer with the text after the content
// key, stripped of its opening quote. A value that already terminates on
// this line closes immediately; otherwise subsequent lines are appended
// verbatim until one ends on a closing quote.
func (r *recoverer) beginContent(line string) {
	rest := strings.TrimSpace(strings.SplitN(line, `"content":`, 2)[1])
	r.content = r.content[:0]
	r.state = stateInContent

	if !strings.HasPrefix(rest, `"`) {
		return
	}
	rest = rest[1:]

	switch {
	case strings.HasSuffix(rest, `",`):
		r.content = append(r.content, strings.TrimSuffix(rest, `",`))
		r.closeContent()
	case rest != "" && strings.HasSuffix(rest, `"`):
		r.content = append(r.content, strings.TrimSuffix(rest, `"`))
		r.closeContent()
	default:
		r.content = append(r.content, rest)
	}
}

func (r *recoverer) closeContent() {
	r.current.Content = strings.Join(r.content, "\n")
	r.content = r.content[:0]
	r.state = stateInObject
}

func (r *recoverer) closeMessage() {
	if r.open && (r.current.Role != "" || r.current.Content != "") {
		r.msgs = append(r.msgs, r.current)
	}
	r.current = Message{}
	r.open = false
	r.state = stateIdle
}

// finish salvages whatever the scan was holding when input ran out: an
// unterminated content value is kept as-is, and a message still open at
// EOF is finalized. Truncated payloads keep their recovered prefix.
func (r *recoverer) finish() {
	if r.state == stateInContent && len(r.content) > 0 {
		r.current.Content = strings.Join(r.content, "\n")
	}
	if r.open && (r.current.Role != "" || r.current.Content != "") {
		r.msgs = append(r.msgs, r.current)
	}
}

// unquoteField extracts the value of a quoted single-line field, stripping
// one layer of quotes and trailing comma or brace noise.
func unquoteField(line, key string) string {
	rest := strings.TrimSpace(strings.SplitN(line, key, 2)[1])
	rest = strings.TrimRight(rest, ",}")
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, `"`)
	rest = strings.TrimSuffix(rest, `"`)
	return rest
}
