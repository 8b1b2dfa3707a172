// Package chatapi is the wire format of POST /api/chat: the JSON request
// and error bodies, and the line based data stream the response is written
// in.
//
// Each stream line is a one character part type, a colon and a JSON value:
//
//	0:"Hello"
//	3:"upstream closed the connection"
//	d:{"finishReason":"stop"}
package chatapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samsaffron/seek-chat/internal/llm"
)

// Stream protocol header, set on every streamed response.
const (
	StreamHeader        = "X-Vercel-AI-Data-Stream"
	StreamHeaderVersion = "v1"
	StreamContentType   = "text/plain; charset=utf-8"
)

// PartType is the prefix of a stream line.
type PartType byte

const (
	PartText   PartType = '0'
	PartError  PartType = '3'
	PartFinish PartType = 'd'
)

// FinishReasonStop is the finish reason of a completed response.
const FinishReasonStop = "stop"

// Finish is the payload of the closing part.
type Finish struct {
	FinishReason string       `json:"finishReason"`
	Usage        *FinishUsage `json:"usage,omitempty"`
}

// FinishUsage reports token counts.
type FinishUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Part is one decoded stream line.
type Part struct {
	Type   PartType
	Text   string
	Finish *Finish
}

// Writer encodes stream parts and flushes after each one.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w is an http.Flusher every part is flushed.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// SetHeaders prepares a response for streaming.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", StreamContentType)
	h.Set(StreamHeader, StreamHeaderVersion)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func (w *Writer) write(t PartType, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %c part: %w", t, err)
	}
	line := make([]byte, 0, len(data)+3)
	line = append(line, byte(t), ':')
	line = append(line, data...)
	line = append(line, '\n')
	if _, err := w.w.Write(line); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Text writes a text chunk.
func (w *Writer) Text(s string) error {
	return w.write(PartText, s)
}

// Error writes an error part for a failure after streaming started.
func (w *Writer) Error(msg string) error {
	return w.write(PartError, msg)
}

// Finish writes the closing part.
func (w *Writer) Finish(reason string, use *llm.Usage) error {
	f := Finish{FinishReason: reason}
	if use != nil {
		f.Usage = &FinishUsage{PromptTokens: use.InputTokens, CompletionTokens: use.OutputTokens}
	}
	return w.write(PartFinish, f)
}

// Decoder reads stream parts.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next part, or io.EOF at the end of the stream. Part
// types this package does not know are skipped.
func (d *Decoder) Next() (Part, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return Part{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == io.EOF {
				return Part{}, io.EOF
			}
			continue
		}
		p, ok, perr := parsePart(line)
		if perr != nil {
			return Part{}, perr
		}
		if ok {
			return p, nil
		}
		if err == io.EOF {
			return Part{}, io.EOF
		}
	}
}

func parsePart(line string) (Part, bool, error) {
	if len(line) < 2 || line[1] != ':' {
		return Part{}, false, fmt.Errorf("malformed stream line %q", line)
	}
	t := PartType(line[0])
	payload := []byte(line[2:])
	switch t {
	case PartText, PartError:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return Part{}, false, fmt.Errorf("decode %c part: %w", t, err)
		}
		return Part{Type: t, Text: s}, true, nil
	case PartFinish:
		var f Finish
		if err := json.Unmarshal(payload, &f); err != nil {
			return Part{}, false, fmt.Errorf("decode finish part: %w", err)
		}
		return Part{Type: t, Finish: &f}, true, nil
	default:
		return Part{}, false, nil
	}
}
