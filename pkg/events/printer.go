package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/palaver/pkg/conversation"
)

// TranscriptPrinterFunc returns a router handler that writes each new message as a line.
// The message is acked only once it is written, so lines come out in store order.
func TranscriptPrinterFunc(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewTranscriptEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		messages := e.Messages
		if e.Kind == conversation.EventAppended && e.Message != nil {
			messages = []conversation.Message{*e.Message}
		}

		for _, m := range messages {
			if _, err := fmt.Fprintln(w, FormatLine(m)); err != nil {
				return err
			}
		}
		return nil
	}
}

// FormatLine renders a message as "HH:MM role> content".
func FormatLine(m conversation.Message) string {
	role := string(m.Role)
	if role == "" {
		role = "?"
	}
	return fmt.Sprintf("%s %s> %s", m.Clock(), role, strings.TrimRight(m.Content, "\n"))
}
