package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/T-X-R/BrainstormAI/pkg/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog/log"
)

const plainHelp = "commands: /stop pause the agents, /end end the session, /export download the transcript, /quit leave"

// Plain is the line-mode presenter used when no terminal is attached. It is
// both the render sink and the input loop.
type Plain struct {
	mu    sync.Mutex
	out   *termenv.Output
	width int

	endOnce sync.Once
	ended   chan struct{}
}

var _ render.Sink = &Plain{}

// NewPlain writes to w, wrapping message bodies at width when width > 0.
func NewPlain(w io.Writer, width int, opts ...termenv.OutputOption) *Plain {
	return &Plain{
		out:   termenv.NewOutput(w, opts...),
		width: width,
		ended: make(chan struct{}),
	}
}

func (p *Plain) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *Plain) name(s string, user bool) string {
	st := p.out.String(s).Bold()
	if user {
		return st.Foreground(p.out.Color("39")).String()
	}
	return st.Foreground(p.out.Color("205")).String()
}

func (p *Plain) wrap(s string) string {
	if p.width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(p.width).Render(s)
}

func (p *Plain) Apply(cmd render.Command) {
	switch c := cmd.(type) {
	case render.CreatePending:
		if c.ReplyTo != "" {
			p.printf("… %s is replying to %s\n", c.DisplayName, c.ReplyTo)
		} else {
			p.printf("… %s is speaking\n", c.DisplayName)
		}
	case render.Finalize:
		p.printf("%s: %s\n", p.name(c.DisplayName, c.Author == render.AuthorUser), p.wrap(c.Content))
	case render.StatusLine:
		prefix := "*"
		switch c.Level {
		case render.StatusWarn:
			prefix = "!"
		case render.StatusError:
			prefix = "!!"
		}
		p.printf("%s %s\n", prefix, c.Text)
	case render.Activity:
		p.printf("  (%s)\n", describeActivity(c))
	case render.Roster:
		p.printf("Agents: %s\n", describeRoster(c.Agents))
	case render.PauseChanged:
		if c.Paused {
			p.printf("-- paused, send a message to continue --\n")
		}
	case render.PanelChanged:
		switch c.State {
		case render.PanelActive:
			p.printf("Session %s: %s\n%s\n", c.SessionID, c.Topic, plainHelp)
		case render.PanelEnded:
			p.endOnce.Do(func() { close(p.ended) })
		}
	}
}

// Ended is closed once the session reaches the Ended panel.
func (p *Plain) Ended() <-chan struct{} { return p.ended }

type lineReader struct {
	lines <-chan string
}

func readLines(in io.Reader) *lineReader {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			ch <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			log.Debug().Err(err).Str("component", "plain").Msg("input closed")
		}
	}()
	return &lineReader{lines: ch}
}

func (r *lineReader) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case l, ok := <-r.lines:
		return l, ok
	}
}

// Run asks for the session setup, then relays input lines to ctrl until the
// user quits, the input ends after the session ended, or ctx is cancelled.
func (p *Plain) Run(ctx context.Context, ctrl Controller, in io.Reader, models *api.ModelsResponse) error {
	lines := readLines(in)
	ok, err := p.setup(ctx, ctrl, lines, models)
	if err != nil || !ok {
		return err
	}

	for {
		line, ok := lines.next(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			// Input is exhausted; keep listening until the session is over.
			select {
			case <-ctx.Done():
			case <-p.ended:
			}
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var err error
		switch line {
		case "/quit", "/exit":
			return nil
		case "/help":
			p.printf("%s\n", plainHelp)
		case "/stop":
			err = ctrl.StopGeneration(ctx)
		case "/export":
			err = ctrl.Export(ctx)
		case "/end":
			p.printf("End this session? [y/N] ")
			answer, _ := lines.next(ctx)
			if isYes(answer) {
				err = ctrl.EndSession(ctx)
			}
		default:
			err = ctrl.SendUserMessage(ctx, line)
		}
		if err != nil {
			p.printf("! %s\n", actionError(strings.TrimPrefix(strings.Fields(line)[0], "/"), err))
		}
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}

// setup prompts until a session is created. It returns false when the input
// ends first.
func (p *Plain) setup(ctx context.Context, ctrl Controller, lines *lineReader, models *api.ModelsResponse) (bool, error) {
	for {
		p.printf("Topic: ")
		topic, ok := lines.next(ctx)
		if !ok {
			return false, nil
		}
		if err := validateTopic(topic); err != nil {
			p.printf("! %s\n", err)
			continue
		}

		v := newSetupValues(models)
		p.printf("Number of agents (%d-%d) [%d]: ", api.MinAgents, api.MaxAgents, api.DefaultAgents)
		countLine, ok := lines.next(ctx)
		if !ok {
			return false, nil
		}
		if s := strings.TrimSpace(countLine); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < api.MinAgents || n > api.MaxAgents {
				p.printf("! enter a number between %d and %d\n", api.MinAgents, api.MaxAgents)
				continue
			}
			v.Count = n
		}
		if models != nil && len(models.Models) > 0 {
			for i := 0; i < v.Count; i++ {
				p.printf("Model for agent %d [%s]: ", i+1, v.Models[i])
				m, ok := lines.next(ctx)
				if !ok {
					return false, nil
				}
				if m = strings.TrimSpace(m); m != "" {
					v.Models[i] = m
				}
			}
		}

		id, err := ctrl.CreateSession(ctx, topic, v.agentConfigs())
		if err == nil || id != "" {
			return true, nil
		}
		// Rejections are reported through the sink; validation errors are not.
		if session.IsInputValidation(err) {
			p.printf("! %v\n", err)
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}
}
