package render

import (
	"fmt"
	"time"
)

type ViewState string

const (
	ViewPending ViewState = "pending"
	ViewFinal   ViewState = "final"
)

// View is one rendered message.
type View struct {
	ID          string
	Author      AuthorKind
	DisplayName string
	ReplyTo     string
	Content     string
	State       ViewState
	CreatedAt   time.Time
	FinalizedAt time.Time
}

// Timeline is the message view model built from render commands. It is the
// presenter-side source of truth and refuses any mutation of a final view,
// recording the attempt as a violation instead.
type Timeline struct {
	order      []string
	views      map[string]*View
	violations []string
}

var _ Sink = &Timeline{}

func NewTimeline() *Timeline {
	return &Timeline{views: map[string]*View{}}
}

func (t *Timeline) Apply(cmd Command) {
	switch c := cmd.(type) {
	case CreatePending:
		if existing, ok := t.views[c.ID]; ok {
			if existing.State == ViewFinal {
				t.violate("create over final view %s", c.ID)
			}
			return
		}
		t.insert(&View{
			ID:          c.ID,
			Author:      AuthorAI,
			DisplayName: c.DisplayName,
			ReplyTo:     c.ReplyTo,
			State:       ViewPending,
			CreatedAt:   c.At,
		})
	case UpdateContent:
		v, ok := t.views[c.ID]
		if !ok {
			return
		}
		if v.State == ViewFinal {
			t.violate("update of final view %s", c.ID)
			return
		}
		v.Content = c.Content
	case Finalize:
		v, ok := t.views[c.ID]
		if !ok {
			t.insert(&View{
				ID:          c.ID,
				Author:      c.Author,
				DisplayName: c.DisplayName,
				Content:     c.Content,
				State:       ViewFinal,
				CreatedAt:   c.At,
				FinalizedAt: c.At,
			})
			return
		}
		if v.State == ViewFinal {
			t.violate("second finalization of %s", c.ID)
			return
		}
		v.Author = c.Author
		v.DisplayName = c.DisplayName
		v.Content = c.Content
		v.State = ViewFinal
		v.FinalizedAt = c.At
	case Remove:
		v, ok := t.views[c.ID]
		if !ok {
			return
		}
		if v.State == ViewFinal {
			t.violate("removal of final view %s", c.ID)
			return
		}
		delete(t.views, c.ID)
		for i, id := range t.order {
			if id == c.ID {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

func (t *Timeline) insert(v *View) {
	t.views[v.ID] = v
	t.order = append(t.order, v.ID)
}

func (t *Timeline) violate(format string, args ...any) {
	t.violations = append(t.violations, fmt.Sprintf(format, args...))
}

// Views returns copies of all views in creation order.
func (t *Timeline) Views() []View {
	out := make([]View, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.views[id])
	}
	return out
}

func (t *Timeline) Get(id string) (View, bool) {
	v, ok := t.views[id]
	if !ok {
		return View{}, false
	}
	return *v, true
}

func (t *Timeline) Len() int { return len(t.order) }

// Pending returns the number of in-progress views.
func (t *Timeline) Pending() int {
	n := 0
	for _, v := range t.views {
		if v.State == ViewPending {
			n++
		}
	}
	return n
}

// Violations lists attempted mutations of final views.
func (t *Timeline) Violations() []string {
	return append([]string(nil), t.violations...)
}

// LastFinal returns the most recent final view, if any.
func (t *Timeline) LastFinal() (View, bool) {
	for i := len(t.order) - 1; i >= 0; i-- {
		if v := t.views[t.order[i]]; v.State == ViewFinal {
			return *v, true
		}
	}
	return View{}, false
}
