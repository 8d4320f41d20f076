package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bblog/blogbot/internal/domain"
	"github.com/bblog/blogbot/internal/port"
)

func newChatFixture(blogs []domain.Blog, llm *fakeLLM) (*ChatService, *fakeIndex) {
	index := newFakeIndex(4)
	index.queryMatches = matchesFor(blogs)
	store := newFakeStore(blogs...)
	embedder := &fakeEmbedder{dimension: 4}
	return NewChatService(embedder, index, store, llm), index
}

func TestAnswer_NoContextShortCircuit(t *testing.T) {
	llm := &fakeLLM{response: "should never be used"}
	chat, index := newChatFixture(nil, llm)
	index.queryMatches = nil

	answer := chat.Answer(context.Background(), "what is Go?")

	if answer.HasAnswer {
		t.Error("expected HasAnswer=false with no context")
	}
	if answer.Answer != noAnswerMessage {
		t.Errorf("answer = %q, want the canned no-answer message", answer.Answer)
	}
	if llm.completeCalls != 0 {
		t.Errorf("LLM called %d times, want 0", llm.completeCalls)
	}
}

func TestAnswer_SkipsMissingAndEmptyBlogs(t *testing.T) {
	blogs := []domain.Blog{
		{ID: 1, Title: "Kept", Contents: "real content"},
		{ID: 2, Title: "Empty", Contents: "   "},
	}
	llm := &fakeLLM{response: "an answer"}
	chat, index := newChatFixture(blogs, llm)

	// A third match references a blog that no longer exists.
	index.queryMatches = append(matchesFor(blogs), domain.VectorMatch{
		ID: "99", Metadata: domain.EntryMetadata{Title: "Gone", BlogID: 99},
	})

	answer := chat.Answer(context.Background(), "q")

	if !answer.HasAnswer {
		t.Errorf("expected an answer, got %q", answer.Answer)
	}
	if !strings.Contains(llm.lastUser, "Title: Kept") {
		t.Errorf("prompt missing surviving blog:\n%s", llm.lastUser)
	}
	if strings.Contains(llm.lastUser, "Title: Empty") || strings.Contains(llm.lastUser, "Title: Gone") {
		t.Errorf("prompt contains skipped blogs:\n%s", llm.lastUser)
	}
}

func TestAnswer_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", 2000)
	blogs := []domain.Blog{{ID: 1, Title: "Long", Contents: long}}
	llm := &fakeLLM{response: "ok"}
	chat, _ := newChatFixture(blogs, llm)

	chat.Answer(context.Background(), "q")

	if strings.Contains(llm.lastUser, long) {
		t.Error("prompt contains untruncated content")
	}
	if !strings.Contains(llm.lastUser, strings.Repeat("x", maxContentChars)) {
		t.Error("prompt missing truncated content")
	}
}

func TestAnswer_InsufficientInfoClassification(t *testing.T) {
	tests := []struct {
		response string
		want     bool
	}{
		{"Go is a statically typed language.", true},
		{"I don't have enough information to answer that question.", false},
		{"Sadly, I DON'T HAVE ENOUGH INFORMATION here.", false},
	}

	for _, tt := range tests {
		blogs := []domain.Blog{{ID: 1, Title: "T", Contents: "c"}}
		chat, _ := newChatFixture(blogs, &fakeLLM{response: tt.response})

		answer := chat.Answer(context.Background(), "q")
		if answer.HasAnswer != tt.want {
			t.Errorf("response %q: HasAnswer = %v, want %v", tt.response, answer.HasAnswer, tt.want)
		}
		if answer.Answer != tt.response {
			t.Errorf("answer text altered: %q", answer.Answer)
		}
	}
}

func TestAnswer_LLMFailuresBecomeApologies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", fmt.Errorf("groq API error (401): bad key: %w", port.ErrLLMUnauthorized), apologyAuth},
		{"bad request", fmt.Errorf("groq API error (400): decommissioned: %w", port.ErrLLMBadRequest), apologyModel},
		{"generic", errBoom, apologyGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blogs := []domain.Blog{{ID: 1, Title: "T", Contents: "c"}}
			chat, _ := newChatFixture(blogs, &fakeLLM{err: tt.err})

			answer := chat.Answer(context.Background(), "q")
			if answer.HasAnswer {
				t.Error("expected HasAnswer=false on LLM failure")
			}
			if answer.Answer != tt.want {
				t.Errorf("answer = %q, want %q", answer.Answer, tt.want)
			}
		})
	}
}

func TestAnswerStream_OrderAndTermination(t *testing.T) {
	blogs := []domain.Blog{{ID: 1, Title: "T", Contents: "c"}}
	llm := &fakeLLM{fragments: []string{"Hello", " world"}}
	chat, _ := newChatFixture(blogs, llm)

	events := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(events)
		chat.AnswerStream(context.Background(), "q", events)
	}()

	var got []domain.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}

	want := []domain.StreamEvent{
		{Type: domain.EventTyping},
		{Type: domain.EventToken, Content: "Hello"},
		{Type: domain.EventToken, Content: " world"},
		{Type: domain.EventDelimiter},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events (%v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnswerStream_NoContext(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"never"}}
	chat, index := newChatFixture(nil, llm)
	index.queryMatches = nil

	events := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(events)
		chat.AnswerStream(context.Background(), "q", events)
	}()

	var got []domain.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}

	if llm.streamCalls != 0 {
		t.Errorf("LLM stream called %d times, want 0", llm.streamCalls)
	}
	if len(got) != 3 || got[0].Type != domain.EventTyping ||
		got[1] != (domain.StreamEvent{Type: domain.EventToken, Content: noAnswerMessage}) ||
		got[2].Type != domain.EventDelimiter {
		t.Errorf("unexpected event sequence: %+v", got)
	}
}

func TestAnswerStream_LLMFailure(t *testing.T) {
	blogs := []domain.Blog{{ID: 1, Title: "T", Contents: "c"}}
	chat, _ := newChatFixture(blogs, &fakeLLM{err: errBoom})

	events := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(events)
		chat.AnswerStream(context.Background(), "q", events)
	}()

	var got []domain.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}

	if len(got) != 3 {
		t.Fatalf("got %d events (%v), want typing/error/delimiter", len(got), got)
	}
	if got[1].Type != domain.EventError || got[1].Content != apologyGeneric {
		t.Errorf("event 1 = %+v, want generic apology error event", got[1])
	}
	if got[2].Type != domain.EventDelimiter {
		t.Errorf("stream not terminated by delimiter: %+v", got[2])
	}
}
