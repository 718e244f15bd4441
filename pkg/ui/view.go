package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rs/zerolog/log"
)

const minBubbleWidth = 20

// RoleLabel is the name shown above a message.
func RoleLabel(r conversation.Role) string {
	switch r {
	case conversation.RoleUser:
		return "You"
	case conversation.RoleAssistant:
		return "Assistant"
	case "":
		return "?"
	default:
		return string(r)
	}
}

// transcriptRenderer lays out the transcript for a given width.
type transcriptRenderer struct {
	style    *Style
	markdown *glamour.TermRenderer
}

// MarkdownStyle picks the glamour style matching the terminal background.
// It queries the terminal, so call it before the program takes over stdin.
func MarkdownStyle() string {
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func newMarkdownRenderer(style string, width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer, falling back to plain text")
		return nil
	}
	return r
}

func bubbleWidth(width int) int {
	w := width * 3 / 4
	if w < minBubbleWidth {
		w = minBubbleWidth
	}
	if width > 0 && w > width {
		w = width
	}
	return w
}

func (r transcriptRenderer) render(messages conversation.Transcript, width int) string {
	if len(messages) == 0 {
		return r.style.Status.Render("No messages yet.")
	}

	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		blocks = append(blocks, r.renderMessage(m, width))
	}
	return strings.Join(blocks, "\n")
}

func (r transcriptRenderer) renderMessage(m conversation.Message, width int) string {
	style := r.style.OtherMessage
	position := lipgloss.Left
	switch m.Role {
	case conversation.RoleUser:
		style = r.style.UserMessage
		position = lipgloss.Right
	case conversation.RoleAssistant:
		style = r.style.AssistantMessage
	}

	inner := bubbleWidth(width) - style.GetHorizontalFrameSize()
	if inner < 1 {
		inner = 1
	}

	body := wordwrap.String(m.Content, inner)
	if m.Role == conversation.RoleAssistant && r.markdown != nil {
		rendered, err := r.markdown.Render(m.Content)
		if err == nil {
			body = strings.Trim(rendered, "\n")
		} else {
			log.Debug().Err(err).Msg("could not render markdown")
		}
	}

	header := r.style.MessageHeader.Render(RoleLabel(m.Role) + " · " + m.Clock())
	bubble := style.Render(header + "\n" + body)

	if width <= 0 {
		return bubble
	}
	return lipgloss.PlaceHorizontal(width, position, bubble)
}
