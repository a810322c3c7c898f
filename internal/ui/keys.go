package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding

	// Navigation
	Up   key.Binding
	Down key.Binding

	// Room
	RoomXDown     key.Binding
	RoomXUp       key.Binding
	RoomYDown     key.Binding
	RoomYUp       key.Binding
	RoomZDown     key.Binding
	RoomZUp       key.Binding
	CycleStandard key.Binding
	ToggleUnits   key.Binding
	Reflectance   key.Binding
	StandardZones key.Binding

	// Selected lamp or zone
	NudgeDown     key.Binding
	NudgeUp       key.Binding
	ToggleEnabled key.Binding
	Add           key.Binding
	Copy          key.Binding
	Remove        key.Binding
	Place         key.Binding
	ClearMap      key.Binding

	// Model
	Calculate key.Binding
	Estimate  key.Binding
	Safety    key.Binding
	NewModel  key.Binding

	// Notifications
	Dismiss    key.Binding
	DismissAll key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		// Global
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Lamps/zones"),
		),

		// Navigation
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),

		// Room
		RoomXDown: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x/X", "Room length -/+"),
		),
		RoomXUp: key.NewBinding(key.WithKeys("X")),
		RoomYDown: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y/Y", "Room width -/+"),
		),
		RoomYUp: key.NewBinding(key.WithKeys("Y")),
		RoomZDown: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z/Z", "Room height -/+"),
		),
		RoomZUp: key.NewBinding(key.WithKeys("Z")),
		CycleStandard: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Cycle standard"),
		),
		ToggleUnits: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Meters/feet"),
		),
		Reflectance: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Toggle reflectance"),
		),
		StandardZones: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Toggle standard zones"),
		),

		// Selected lamp or zone
		NudgeDown: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/l", "Nudge selected"),
		),
		NudgeUp: key.NewBinding(key.WithKeys("l", "right")),
		ToggleEnabled: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Enable/disable"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Add"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Copy"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Remove"),
		),
		Place: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Place lamp"),
		),
		ClearMap: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Clear intensity map"),
		),

		// Model
		Calculate: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Calculate"),
		),
		Estimate: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "Estimate"),
		),
		Safety: key.NewBinding(
			key.WithKeys("K"),
			key.WithHelp("K", "Check lamps"),
		),
		NewModel: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "New model"),
		),

		// Notifications
		Dismiss: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Dismiss newest"),
		),
		DismissAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Clear notifications"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Add, k.Remove, k.Calculate, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Up, k.Down},
		{k.RoomXDown, k.RoomYDown, k.RoomZDown, k.CycleStandard, k.ToggleUnits, k.Reflectance, k.StandardZones},
		{k.NudgeDown, k.ToggleEnabled, k.Add, k.Copy, k.Remove, k.Place, k.ClearMap},
		{k.Calculate, k.Estimate, k.Safety, k.NewModel, k.Dismiss, k.DismissAll},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
