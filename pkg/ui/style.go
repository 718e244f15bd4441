package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	Header           lipgloss.Style
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	OtherMessage     lipgloss.Style
	MessageHeader    lipgloss.Style
	FocusedInput     lipgloss.Style
	BlurredInput     lipgloss.Style
	Status           lipgloss.Style
	Error            lipgloss.Style
}

type BorderColors struct {
	User      string
	Assistant string
	Other     string
	Focused   string
	Blurred   string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		User:      "#87AFD7",
		Assistant: "#CCCCCC",
		Other:     "#FFB6C1", // Light pink
		Focused:   "#FFFF99", // Light yellow
		Blurred:   "#CCCCCC",
	}

	darkModeColors := BorderColors{
		User:      "#5F87AF",
		Assistant: "#444444",
		Other:     "#DD7090", // Desaturated pink for dark mode
		Focused:   "#DDDD77", // Desaturated yellow for dark mode
		Blurred:   "#444444",
	}

	bubble := func(c func(BorderColors) string) lipgloss.Style {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: c(lightModeColors),
				Dark:  c(darkModeColors),
			})
	}

	return &Style{
		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		UserMessage: bubble(func(b BorderColors) string {
			return b.User
		}),
		AssistantMessage: bubble(func(b BorderColors) string {
			return b.Assistant
		}),
		OtherMessage: bubble(func(b BorderColors) string {
			return b.Other
		}),
		MessageHeader: lipgloss.NewStyle().Faint(true),
		FocusedInput: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Focused,
				Dark:  darkModeColors.Focused,
			}),
		BlurredInput: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Blurred,
				Dark:  darkModeColors.Blurred,
			}),
		Status: lipgloss.NewStyle().Faint(true).Padding(0, 1),
		Error: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}),
	}
}
