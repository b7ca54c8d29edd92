package ui

import (
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	topicStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).Italic(true)
	rosterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	replyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	pausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	confirmStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("170")).
			Padding(0, 2)

	statusStyles = map[render.StatusLevel]lipgloss.Style{
		render.StatusInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("118")),
		render.StatusWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		render.StatusError: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

func statusStyle(l render.StatusLevel) lipgloss.Style {
	if s, ok := statusStyles[l]; ok {
		return s
	}
	return statusStyles[render.StatusInfo]
}
