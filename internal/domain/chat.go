package domain

// Answer is the batch chat response. HasAnswer is false when the model
// reported it had nothing to say or when the call failed and a canned
// apology was substituted.
type Answer struct {
	Answer    string `json:"answer"`
	HasAnswer bool   `json:"has_answer"`
}

// StreamEvent types emitted over the websocket chat channel.
const (
	EventTyping    = "typing"
	EventToken     = "token"
	EventDelimiter = "delimiter"
	EventError     = "error"
)

// StreamEvent is one tagged frame of a streamed answer.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}
