package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// checkStatus converts an unsuccessful HTTP response into an *APIError.
func checkStatus(p Provider, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "" {
			msg = detail.Message
		} else {
			var s string
			if json.Unmarshal(envelope.Error, &s) == nil && s != "" {
				msg = s
			}
		}
	}
	return &APIError{Provider: p, StatusCode: resp.StatusCode, Message: msg}
}

// readSSE calls fn with the payload of every `data:` line of a server-sent
// event stream until the stream ends or a `[DONE]` sentinel arrives.
func readSSE(r io.Reader, fn func(data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if len(data) == 0 {
			continue
		}
		if string(data) == "[DONE]" {
			return nil
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return sc.Err()
}

// readNDJSON calls fn for every non-empty line of a newline-delimited JSON stream.
func readNDJSON(r io.Reader, fn func(line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// collector accumulates deltas and forwards them to the caller.
type collector struct {
	sb      strings.Builder
	onDelta DeltaFunc
}

func (c *collector) emit(delta string) error {
	if delta == "" {
		return nil
	}
	c.sb.WriteString(delta)
	if c.onDelta != nil {
		return c.onDelta(delta)
	}
	return nil
}

func (c *collector) text() string { return c.sb.String() }

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkFilter removes <think>...</think> reasoning blocks from a stream of
// deltas, even when a tag is split across deltas. MiniMax M2.x models emit
// chain-of-thought in these tags by default.
type thinkFilter struct {
	inThink bool
	pending string
}

func (f *thinkFilter) Write(delta string) string {
	s := f.pending + delta
	f.pending = ""

	var out strings.Builder
	for len(s) > 0 {
		if f.inThink {
			i := strings.Index(s, thinkClose)
			if i < 0 {
				f.pending = partialTag(s, thinkClose)
				break
			}
			s = s[i+len(thinkClose):]
			f.inThink = false
			continue
		}
		i := strings.Index(s, thinkOpen)
		if i < 0 {
			keep := partialTag(s, thinkOpen)
			out.WriteString(s[:len(s)-len(keep)])
			f.pending = keep
			break
		}
		out.WriteString(s[:i])
		s = s[i+len(thinkOpen):]
		f.inThink = true
	}
	return out.String()
}

// Flush returns text held back while waiting to see whether it starts a tag.
func (f *thinkFilter) Flush() string {
	if f.inThink {
		f.pending = ""
		return ""
	}
	p := f.pending
	f.pending = ""
	return p
}

// partialTag returns the longest suffix of s that is a proper prefix of tag.
func partialTag(s, tag string) string {
	n := len(tag) - 1
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return s[len(s)-n:]
		}
	}
	return ""
}
