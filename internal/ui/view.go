package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/notify"
)

func (m Model) renderMain() string {
	sections := []string{
		m.renderHeader(),
		m.renderRoom(),
		m.renderLists(),
		m.renderNotices(),
		m.help.View(m.keys),
	}
	return strings.Join(sections, "\n")
}

// renderHeader renders the status bar: workspace, session and last action.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	s := m.snap

	parts := []string{
		bg.Render("lumen", styles.Logo),
		bg.Render(m.opts.Workspace, styles.MutedText),
		styles.StatusStyle(s.session.String()).Render(strings.ToUpper(s.session.String())),
	}
	if s.sessionID != "" && m.width >= LayoutCompactWidth {
		parts = append(parts, bg.Render(truncate(s.sessionID, 12), styles.FaintText))
	}
	if s.degraded {
		parts = append(parts, styles.StatusStyle("degraded").Render("DEGRADED"))
	}
	if m.busy > 0 {
		parts = append(parts, bg.Render("working...", styles.InfoText))
	}
	if m.status != "" {
		parts = append(parts, bg.Render(truncate(m.status, 60), styles.MutedText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// renderRoom summarises room settings and whether results are current.
func (m Model) renderRoom() string {
	styles := m.theme.Styles()
	room := m.snap.model.Room
	unit := unitSuffix(string(room.Units))
	p := room.Precision

	dims := fmt.Sprintf("%s × %s × %s %s",
		formatNumber(room.X, p), formatNumber(room.Y, p), formatNumber(room.Z, p), unit)
	parts := []string{
		styles.AccentText.Bold(true).Render("Room"),
		styles.Text.Render(dims),
		styles.MutedText.Render("standard ") + styles.Text.Render(string(room.Standard)),
		styles.MutedText.Render("reflectance ") + onOff(styles, room.Reflectance.Enabled),
		styles.MutedText.Render("standard zones ") + onOff(styles, room.UseStandardZones),
	}

	sig := m.snap.signals
	switch {
	case sig.NeedsComputation:
		parts = append(parts, styles.StatusStyle("stale").Render("RECALCULATE"))
	case sig.HasComputed:
		parts = append(parts, styles.StatusStyle("current").Render("CURRENT"))
	}
	if res := m.snap.model.Results; res != nil && res.MeanFluence != nil {
		parts = append(parts, styles.MutedText.Render("mean fluence ")+
			styles.Text.Render(formatNumber(*res.MeanFluence, 3)))
	}
	return strings.Join(parts, "  ")
}

func onOff(styles Styles, on bool) string {
	if on {
		return styles.SuccessText.Render("on")
	}
	return styles.FaintText.Render("off")
}

func (m Model) renderLists() string {
	lamps := m.renderLampList()
	zones := m.renderZoneList()
	if m.width >= LayoutSideBySideWidth {
		return lipgloss.JoinHorizontal(lipgloss.Top, lamps, zones)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lamps, zones)
}

func (m Model) panel(title string, focused bool, rows []string) string {
	width := m.width - 2
	if m.width >= LayoutSideBySideWidth {
		width = m.width/2 - 2
	}
	border := m.theme.Border
	if focused {
		border = m.theme.BorderFocus
	}
	styles := m.theme.Styles()
	body := append([]string{styles.AccentText.Bold(true).Render(title)}, rows...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Width(maxWidth(width, 20)).
		Render(strings.Join(body, "\n"))
}

func (m Model) renderLampList() string {
	styles := m.theme.Styles()
	lamps := m.snap.model.LightSources
	focused := m.focus == paneLamps
	title := fmt.Sprintf("Lamps (%d)", len(lamps))
	if len(lamps) > 0 && m.snap.signals.LightSourcesStale {
		title += " " + styles.StatusStyle("stale").Render("CHANGED")
	}

	if len(lamps) == 0 {
		return m.panel(title, focused, []string{styles.FaintText.Render("no lamps; press a to add one")})
	}
	p := m.snap.model.Room.Precision
	rows := make([]string, 0, len(lamps))
	for i, ls := range lamps {
		line := fmt.Sprintf("%s %s (%s, %s, %s)",
			padRight(truncate(ls.Name, 20), 20),
			padRight(string(ls.LampType), 9),
			formatNumber(ls.X, p), formatNumber(ls.Y, p), formatNumber(ls.Z, p))
		if ls.Photometry.Loaded {
			line += " ies"
		}
		if ls.Spectrum.Loaded {
			line += " spd"
		}
		if ls.IntensityMap.Loaded {
			line += " map"
		}
		rows = append(rows, m.row(line, focused && i == m.selected[paneLamps], ls.Enabled))
	}
	return m.panel(title, focused, rows)
}

func (m Model) renderZoneList() string {
	styles := m.theme.Styles()
	zones := m.snap.model.Zones
	focused := m.focus == paneZones
	title := fmt.Sprintf("Zones (%d)", len(zones))

	if len(zones) == 0 {
		return m.panel(title, focused, []string{styles.FaintText.Render("no zones; press a to add one")})
	}
	rows := make([]string, 0, len(zones))
	for i, z := range zones {
		line := fmt.Sprintf("%s %s %sh", padRight(truncate(z.Name, 24), 24), padRight(string(z.Type), 6), formatNumber(z.Hours, 1))
		if mean := zoneMean(m.snap.model.Results, z.ID); mean != "" {
			line += "  mean " + mean
		}
		row := m.row(line, focused && i == m.selected[paneZones], z.Enabled)
		if z.IsStandard {
			row += " " + styles.StatusStyle("standard").Render("STD")
		}
		if m.snap.stale[z.ID] {
			row += " " + styles.StatusStyle("stale").Render("STALE")
		}
		rows = append(rows, row)
	}
	return m.panel(title, focused, rows)
}

func (m Model) row(text string, selected, enabled bool) string {
	styles := m.theme.Styles()
	switch {
	case selected:
		return styles.Selected.Render("> " + text)
	case !enabled:
		return styles.FaintText.Render("  " + text)
	default:
		return styles.Text.Render("  " + text)
	}
}

func zoneMean(res *model.Results, id string) string {
	if res == nil {
		return ""
	}
	zr, ok := res.Zones[id]
	if !ok || zr.Statistics.Mean == nil {
		return ""
	}
	return formatNumber(*zr.Statistics.Mean, 3)
}

// renderNotices lists the newest notifications first.
func (m Model) renderNotices() string {
	styles := m.theme.Styles()
	list := m.snap.notices
	if len(list) == 0 {
		return styles.FaintText.Render("No notifications")
	}

	header := styles.AccentText.Bold(true).Render(fmt.Sprintf("Notifications (%d)", len(list)))
	lines := []string{header}
	now := time.Now()
	for i := len(list) - 1; i >= 0 && len(lines) <= NoticeLimit; i-- {
		n := list[i]
		lines = append(lines, fmt.Sprintf("%s %s %s %s",
			styles.StatusStyle(string(n.Severity)).Render(severityLabel(n.Severity)),
			styles.Text.Render(n.Operation),
			styles.MutedText.Render(truncate(n.Message, maxWidth(m.width-40, 20))),
			styles.FaintText.Render(humanizeDuration(now.Sub(n.Timestamp))),
		))
	}
	return strings.Join(lines, "\n")
}

func severityLabel(s notify.Severity) string {
	switch s {
	case notify.SeverityError:
		return "ERR"
	case notify.SeverityWarning:
		return "WARN"
	default:
		return "INFO"
	}
}

func maxWidth(a, b int) int {
	if a > b {
		return a
	}
	return b
}
