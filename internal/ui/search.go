package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// searchInput is a single-line text input for the library filter.
type searchInput struct {
	Value     string
	Focused   bool
	CursorPos int
	Prompt    string
}

func newSearchInput() searchInput {
	return searchInput{Prompt: "/ "}
}

func (s *searchInput) Focus() {
	s.Focused = true
	s.CursorPos = len([]rune(s.Value))
}

func (s *searchInput) Blur() {
	s.Focused = false
}

func (s *searchInput) Clear() {
	s.Value = ""
	s.CursorPos = 0
}

// Update edits the value. Positions are counted in runes.
func (s searchInput) Update(msg tea.KeyMsg) searchInput {
	if !s.Focused {
		return s
	}

	value := []rune(s.Value)
	switch msg.Type {
	case tea.KeyBackspace:
		if s.CursorPos > 0 {
			value = append(value[:s.CursorPos-1], value[s.CursorPos:]...)
			s.CursorPos--
		}
	case tea.KeyDelete:
		if s.CursorPos < len(value) {
			value = append(value[:s.CursorPos], value[s.CursorPos+1:]...)
		}
	case tea.KeyLeft:
		if s.CursorPos > 0 {
			s.CursorPos--
		}
	case tea.KeyRight:
		if s.CursorPos < len(value) {
			s.CursorPos++
		}
	case tea.KeyHome:
		s.CursorPos = 0
	case tea.KeyEnd:
		s.CursorPos = len(value)
	case tea.KeySpace:
		value = insertRunes(value, s.CursorPos, []rune{' '})
		s.CursorPos++
	case tea.KeyRunes:
		value = insertRunes(value, s.CursorPos, msg.Runes)
		s.CursorPos += len(msg.Runes)
	}
	s.Value = string(value)
	return s
}

func insertRunes(value []rune, at int, ins []rune) []rune {
	result := make([]rune, 0, len(value)+len(ins))
	result = append(result, value[:at]...)
	result = append(result, ins...)
	return append(result, value[at:]...)
}

func (s searchInput) View(st styles) string {
	if !s.Focused {
		return st.dim.Render(s.Prompt + s.Value)
	}
	value := []rune(s.Value)
	cursor := lipgloss.NewStyle().Reverse(true)
	under := " "
	after := ""
	if s.CursorPos < len(value) {
		under = string(value[s.CursorPos])
		after = string(value[s.CursorPos+1:])
	}
	return st.accent.Render(s.Prompt) + string(value[:s.CursorPos]) + cursor.Render(under) + after
}
