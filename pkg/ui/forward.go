package ui

import (
	"github.com/T-X-R/BrainstormAI/pkg/render"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

// ProgramSink forwards render commands to a bubbletea program by injecting
// them as CommandMsg. Send blocks until the program reads the message and
// returns immediately once the program has exited.
type ProgramSink struct {
	p *tea.Program
}

var _ render.Sink = &ProgramSink{}

func NewProgramSink(p *tea.Program) *ProgramSink {
	return &ProgramSink{p: p}
}

func (s *ProgramSink) Apply(cmd render.Command) {
	if s == nil || s.p == nil {
		return
	}
	log.Trace().Str("component", "ui").Type("command", cmd).Msg("dispatching command to UI")
	s.p.Send(CommandMsg{Command: cmd})
}

// NewProgram builds the chat program for model and returns it together with
// the sink the controller should write to.
func NewProgram(model *ChatModel, opts ...tea.ProgramOption) (*tea.Program, *ProgramSink) {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	}
	p := tea.NewProgram(model, opts...)
	return p, NewProgramSink(p)
}
