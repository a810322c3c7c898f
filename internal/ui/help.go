package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	// Help content
	sections := []helpSection{
		{
			title: "Navigation",
			items: []helpItem{
				{"tab", "Switch lamps/zones"},
				{"j/k", "Move down/up"},
			},
		},
		{
			title: "Room",
			items: []helpItem{
				{"x/X y/Y z/Z", "Shrink/grow room"},
				{"u", "Cycle standard"},
				{"m", "Meters/feet"},
				{"r", "Toggle reflectance"},
				{"s", "Toggle standard zones"},
			},
		},
		{
			title: "Lamps and zones",
			items: []helpItem{
				{"h/l", "Move lamp / zone hours"},
				{"e", "Enable/disable"},
				{"a", "Add"},
				{"c", "Copy"},
				{"d", "Remove"},
				{"p", "Place lamp (cycles corners)"},
				{"i", "Clear lamp intensity map"},
			},
		},
		{
			title: "Model",
			items: []helpItem{
				{"enter", "Calculate"},
				{"E", "Estimate calculation cost"},
				{"K", "Safety check"},
				{"N", "New model"},
				{"D", "Dismiss newest notification"},
				{"C", "Clear notifications"},
			},
		},
		{
			title: "General",
			items: []helpItem{
				{"T", "Cycle theme"},
				{"?", "Toggle help"},
				{"q/ctrl+c", "Quit"},
			},
		},
	}

	// Build help content
	var b strings.Builder

	// Title
	title := styles.Text.Bold(true).Render("Keyboard Shortcuts")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	for i, section := range sections {
		// Section title
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")

		for _, item := range section.items {
			// Key
			keyStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.Warning)).
				Width(14)
			b.WriteString(keyStyle.Render(item.key))
			// Description
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}

		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	// Build the modal
	content := b.String()

	// Calculate modal dimensions
	modalWidth := 46

	// Modal style
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(modalWidth)

	// Center the modal
	modalContent := modal.Render(content)

	// Create overlay
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modalContent,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}
