package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samsaffron/seek-chat/internal/llm"
)

func TestWriterEncodesParts(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Text("Hello \"world\"\n"); err != nil {
		t.Fatal(err)
	}
	if err := w.Error("boom"); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(FinishReasonStop, nil); err != nil {
		t.Fatal(err)
	}
	want := "0:\"Hello \\\"world\\\"\\n\"\n3:\"boom\"\nd:{\"finishReason\":\"stop\"}\n"
	if got := buf.String(); got != want {
		t.Fatalf("stream = %q, want %q", got, want)
	}
}

func TestDecoderReadsWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.Text("a")
	_ = w.Text("b\nc")
	_ = w.Finish(FinishReasonStop, &llm.Usage{InputTokens: 3, OutputTokens: 2})
	buf.WriteString("f:{\"messageId\":\"x\"}\n")

	dec := NewDecoder(&buf)
	var text strings.Builder
	var finish *Finish
	for {
		p, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		switch p.Type {
		case PartText:
			text.WriteString(p.Text)
		case PartFinish:
			finish = p.Finish
		}
	}
	if text.String() != "ab\nc" {
		t.Fatalf("text = %q", text.String())
	}
	if finish == nil || finish.FinishReason != "stop" || finish.Usage == nil || finish.Usage.CompletionTokens != 2 {
		t.Fatalf("finish = %+v", finish)
	}
}

func TestDecoderRejectsGarbage(t *testing.T) {
	dec := NewDecoder(strings.NewReader("not a part\n"))
	if _, err := dec.Next(); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequestMessages(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantLen int
	}{
		{"valid", `{"messages":[{"role":"user","content":"hi","id":"abc"}]}`, nil, 1},
		{"missing", `{}`, ErrMessagesRequired, 0},
		{"null", `{"messages":null}`, ErrMessagesRequired, 0},
		{"empty", `{"messages":[]}`, ErrMessagesRequired, 0},
		{"not a list", `{"messages":"hi"}`, ErrMessagesRequired, 0},
		{"bad role", `{"messages":[{"role":"tool","content":"x"}]}`, ErrInvalidRole, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := DecodeRequest([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeRequest() error = %v", err)
			}
			msgs, err := raw.Messages()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Messages() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Messages() error = %v", err)
			}
			if len(msgs) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(msgs), tt.wantLen)
			}
		})
	}

	if _, err := DecodeRequest([]byte(`{"messages":`)); err == nil {
		t.Fatal("DecodeRequest() accepted malformed JSON")
	}
}

func TestClientStreamsAnswer(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		SetHeaders(w.Header())
		sw := NewWriter(w)
		_ = sw.Text("2 + 2 ")
		_ = sw.Text("= 4")
		_ = sw.Finish(FinishReasonStop, &llm.Usage{InputTokens: 5, OutputTokens: 4})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	stream, err := c.Send(context.Background(), []llm.Message{llm.UserText("What is 2+2?")})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer stream.Close()

	var text strings.Builder
	var use *llm.Usage
	done := false
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		switch ev.Type {
		case llm.EventTextDelta:
			text.WriteString(ev.Text)
		case llm.EventUsage:
			use = ev.Use
		case llm.EventDone:
			done = true
		}
	}
	if text.String() != "2 + 2 = 4" || !done {
		t.Fatalf("text = %q, done = %v", text.String(), done)
	}
	if use == nil || use.OutputTokens != 4 {
		t.Fatalf("usage = %+v", use)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "What is 2+2?" {
		t.Fatalf("server saw %+v", got)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorBody{Error: ErrorMissingKey, Message: MessageMissingKey})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Send(context.Background(), []llm.Message{llm.UserText("hi")})
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("Send() error = %v, want ErrStatus", err)
	}
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("error %T is not a *StatusError", err)
	}
	if serr.StatusCode != http.StatusInternalServerError || serr.Body.Error != ErrorMissingKey {
		t.Fatalf("StatusError = %+v", serr)
	}
}

func TestClientInStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetHeaders(w.Header())
		sw := NewWriter(w)
		_ = sw.Text("partial")
		_ = sw.Error("upstream reset")
	}))
	defer srv.Close()

	stream, err := NewClient(srv.URL).Send(context.Background(), []llm.Message{llm.UserText("hi")})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer stream.Close()
	if ev, err := stream.Recv(); err != nil || ev.Text != "partial" {
		t.Fatalf("first Recv() = %+v, %v", ev, err)
	}
	if _, err := stream.Recv(); err == nil || !strings.Contains(err.Error(), "upstream reset") {
		t.Fatalf("second Recv() error = %v", err)
	}
}
