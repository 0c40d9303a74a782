package tokenizer

import (
	"fmt"
	"strings"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Dialog is an ordered conversation, oldest turn first.
type Dialog []Message

// ChatFormat renders dialogs into the header-framed prompt layout used by
// llama3-style instruction models and encodes them with the wrapped
// tokenizer. The tokenizer is expected to map the special marker strings to
// single atomic ids.
type ChatFormat struct {
	tok Tokenizer
}

const (
	beginOfText   = "<|begin_of_text|>"
	startHeaderID = "<|start_header_id|>"
	endHeaderID   = "<|end_header_id|>"
	endOfTurnID   = "<|eot_id|>"
)

// NewChatFormat wraps a tokenizer with dialog rendering.
func NewChatFormat(tok Tokenizer) *ChatFormat {
	return &ChatFormat{tok: tok}
}

// EncodeDialogPrompt renders the dialog, appends the assistant header so the
// model continues as the assistant, and encodes the result.
func (f *ChatFormat) EncodeDialogPrompt(dialog Dialog) ([]int, error) {
	if len(dialog) == 0 {
		return nil, fmt.Errorf("tokenizer: empty dialog")
	}
	var b strings.Builder
	b.WriteString(beginOfText)
	for _, msg := range dialog {
		writeTurn(&b, msg)
	}
	b.WriteString(startHeaderID)
	b.WriteString("assistant")
	b.WriteString(endHeaderID)
	b.WriteString("\n\n")
	return f.tok.Encode(b.String())
}

func writeTurn(b *strings.Builder, msg Message) {
	b.WriteString(startHeaderID)
	b.WriteString(msg.Role)
	b.WriteString(endHeaderID)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(msg.Content))
	b.WriteString(endOfTurnID)
}
