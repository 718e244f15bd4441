package ui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/palaver/pkg/events"
)

// ForwardFunc returns a router handler that tells the program about transcript changes.
// The message is acked before p.Send so a store mutation made from inside Update never
// waits on the Update loop itself.
func ForwardFunc(p *tea.Program) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		e, err := events.NewTranscriptEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		p.Send(TranscriptChangedMsg{
			Version: e.Version,
			Length:  e.Length,
		})

		return nil
	}
}
