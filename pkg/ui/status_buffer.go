package ui

import (
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/render"
)

// statusBuffer keeps the most recent status lines. Transient lines expire
// after ttl; sticky ones stay until pushed out by newer lines.
type statusBuffer struct {
	max   int
	ttl   time.Duration
	lines []render.StatusLine
}

func newStatusBuffer(limit int, ttl time.Duration) *statusBuffer {
	if limit <= 0 {
		limit = 50
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &statusBuffer{max: limit, ttl: ttl, lines: make([]render.StatusLine, 0, limit)}
}

func (b *statusBuffer) Add(line render.StatusLine) {
	if b == nil || line.Text == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		drop := len(b.lines) - b.max
		b.lines = append([]render.StatusLine(nil), b.lines[drop:]...)
	}
}

// Current returns the newest line still visible at now.
func (b *statusBuffer) Current(now time.Time) (render.StatusLine, bool) {
	if b == nil {
		return render.StatusLine{}, false
	}
	for i := len(b.lines) - 1; i >= 0; i-- {
		l := b.lines[i]
		if l.Transient && now.Sub(l.At) > b.ttl {
			continue
		}
		return l, true
	}
	return render.StatusLine{}, false
}

func (b *statusBuffer) Snapshot() []render.StatusLine {
	if b == nil {
		return nil
	}
	return append([]render.StatusLine(nil), b.lines...)
}
