package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title    lipgloss.Style
	accent   lipgloss.Style
	dim      lipgloss.Style
	selected lipgloss.Style
	current  lipgloss.Style
	toast    lipgloss.Style
	filled   lipgloss.Style
	empty    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		current:  lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		toast:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		filled:   lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		empty:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// chromeLines is the number of lines around the track list.
const chromeLines = 9

func (m Model) listHeight() int {
	if h := m.height - chromeLines; h > 3 {
		return h
	}
	return 3
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.title.Render("19player"))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderNowPlaying())
	sb.WriteString("\n")
	sb.WriteString(m.renderProgress())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(m.styles.toast.Render(m.toast))
	sb.WriteString("\n")
	if m.search.Focused || m.query != "" {
		sb.WriteString(m.search.View(m.styles))
	}
	sb.WriteString("\n")
	sb.WriteString(m.renderList())
	sb.WriteString(m.styles.dim.Render("space play/pause  ←/→ seek  ↑/↓ volume  n/p next/prev  s shuffle  r repeat  m mute  / search  q quit"))

	return sb.String()
}

func (m Model) renderNowPlaying() string {
	if m.view.Track == nil {
		return m.styles.dim.Render("No track loaded")
	}
	icon := "⏸"
	if m.view.Playing {
		icon = "▶"
	}
	return fmt.Sprintf("%s %s", icon, m.view.Track.DisplayName())
}

func (m Model) renderProgress() string {
	width := m.width - 16
	if width < 10 {
		width = 10
	}
	filled := int(float64(width) * m.view.Progress)
	if filled > width {
		filled = width
	}
	bar := m.styles.filled.Render(strings.Repeat("█", filled)) +
		m.styles.empty.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %s / %s", bar, m.view.Elapsed, m.view.Total)
}

func (m Model) renderStatus() string {
	shuffle := "off"
	if m.view.Shuffle {
		shuffle = "on"
	}
	status := fmt.Sprintf("%s %s   🔀 Shuffle: %s   %s %d%%",
		m.view.RepeatIcon, m.view.RepeatLabel, shuffle,
		m.view.VolumeIcon, int(m.view.Volume*100+0.5))
	if !m.view.ControlsEnabled {
		return m.styles.dim.Render(status)
	}
	return status
}

func (m Model) renderList() string {
	if len(m.tracks) == 0 {
		return m.styles.dim.Render("  (no tracks)") + "\n"
	}

	currentID := ""
	if m.view.Track != nil {
		currentID = m.view.Track.ID
	}

	var sb strings.Builder
	end := m.offset + m.listHeight()
	if end > len(m.tracks) {
		end = len(m.tracks)
	}
	for i := m.offset; i < end; i++ {
		t := m.tracks[i]
		marker := "  "
		if t.ID == currentID {
			marker = "♪ "
		}
		line := marker + t.DisplayName()
		switch {
		case i == m.cursor:
			line = m.styles.selected.Render(line)
		case t.ID == currentID:
			line = m.styles.current.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
