package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorDanger  = lipgloss.Color("#E53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#6B7280")
)

// Tone is the semantic colour of a rendered value.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneSuccess
	ToneWarning
	ToneDanger
	ToneInfo
)

// Styles holds the lipgloss styles used for terminal output. With colour
// disabled every style renders plain text.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Danger  lipgloss.Style
	Info    lipgloss.Style
}

// NewStyles builds styles bound to w so colour detection follows the
// actual destination.
func NewStyles(w io.Writer, color bool) Styles {
	r := lipgloss.NewRenderer(w)
	plain := r.NewStyle()
	if !color {
		return Styles{
			Title: plain, Header: plain, Cell: plain, Border: plain, Muted: plain,
			Success: plain, Warning: plain, Danger: plain, Info: plain,
		}
	}
	return Styles{
		Title:   r.NewStyle().Bold(true),
		Header:  r.NewStyle().Bold(true),
		Cell:    plain,
		Border:  r.NewStyle().Foreground(colorMuted),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Success: r.NewStyle().Foreground(colorSuccess),
		Warning: r.NewStyle().Foreground(colorWarning),
		Danger:  r.NewStyle().Foreground(colorDanger).Bold(true),
		Info:    r.NewStyle().Foreground(colorInfo),
	}
}

// Tone renders s in the style for t.
func (s Styles) Tone(t Tone, v string) string {
	switch t {
	case ToneSuccess:
		return s.Success.Render(v)
	case ToneWarning:
		return s.Warning.Render(v)
	case ToneDanger:
		return s.Danger.Render(v)
	case ToneInfo:
		return s.Info.Render(v)
	case ToneNeutral:
		return v
	}
	return v
}
