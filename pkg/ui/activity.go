package ui

import (
	"fmt"
	"strings"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/render"
	"github.com/T-X-R/BrainstormAI/pkg/session"
	"github.com/pkg/errors"
)

// describeActivity turns a speaker hint into a short sentence.
func describeActivity(a render.Activity) string {
	who := strings.TrimSpace(a.Nickname)
	if who == "" {
		who = "An agent"
	}
	switch a.Action {
	case "silent":
		if r := strings.TrimSpace(a.Reason); r != "" {
			return fmt.Sprintf("%s stays silent (%s)", who, r)
		}
		return who + " stays silent"
	case "reply_user":
		return who + " is replying to you"
	case "reply_ai":
		if t := strings.TrimSpace(a.Target); t != "" {
			return fmt.Sprintf("%s is replying to %s", who, t)
		}
		return who + " is replying to another agent"
	default:
		return fmt.Sprintf("%s: %s", who, a.Action)
	}
}

func describeRoster(agents []events.Agent) string {
	parts := make([]string, 0, len(agents))
	for _, a := range agents {
		name := a.Nickname
		if name == "" {
			name = a.ID
		}
		if a.ModelName != "" {
			name += " (" + a.ModelName + ")"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " · ")
}

// actionError maps controller errors to short user-facing text.
func actionError(op string, err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return "Message is empty"
	case errors.Is(err, session.ErrNotConnected):
		return "Not connected, message not sent"
	case errors.Is(err, session.ErrSessionEnded):
		return "The session has ended"
	default:
		return fmt.Sprintf("%s failed: %v", op, err)
	}
}
