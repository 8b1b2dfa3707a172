package llm

import "testing"

func TestMatchMathPattern(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"What is 2+2?", "arithmetic"},
		{"12 * 7", "arithmetic"},
		{"x = ?", ""},
		{"3 = ?", "equals-question"},
		{"Please calculate my taxes", "calculate"},
		{"SOLVE for x", "solve"},
		{"a quadratic equation", "equation"},
		{"2 ^ 10", "exponent"},
		{"the square root of two", "square-root"},
		{"derivative of sin", "derivative"},
		{"an Integral", "integral"},
		{"Tell me a fun fact", ""},
		{"What is the capital of France?", ""},
	}
	for _, tt := range tests {
		got, ok := MatchMathPattern(tt.text)
		if got != tt.want || ok != (tt.want != "") {
			t.Errorf("MatchMathPattern(%q) = %q, %v; want %q", tt.text, got, ok, tt.want)
		}
	}
}

func TestIsMathTurn(t *testing.T) {
	if !IsMathTurn([]Message{UserText("What is 2+2?")}) {
		t.Error("user arithmetic should be a math turn")
	}
	if IsMathTurn([]Message{UserText("What is 2+2?"), AssistantText("4")}) {
		t.Error("a trailing assistant message is never a math turn")
	}
	if IsMathTurn(nil) {
		t.Error("empty history is not a math turn")
	}
}

func TestWithSystemInstruction(t *testing.T) {
	msgs := []Message{UserText("hi")}
	got := WithSystemInstruction(msgs, "be brief")
	if len(got) != 2 || got[0].Role != RoleSystem || got[0].Text() != "be brief" {
		t.Fatalf("WithSystemInstruction() = %+v", got)
	}

	withSystem := []Message{SystemText("custom"), UserText("hi")}
	if got := WithSystemInstruction(withSystem, "be brief"); len(got) != 2 || got[0].Text() != "custom" {
		t.Fatalf("existing system message should win, got %+v", got)
	}
	if got := WithSystemInstruction(msgs, ""); len(got) != 1 {
		t.Fatalf("empty instruction should be a no-op, got %+v", got)
	}
}
