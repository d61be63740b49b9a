package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avatarstudio/avatargw/internal/domain"
)

// ─── Wait Indicator ─────────────────────────────────────────────────────────
// Terminal line shown while --wait polls a task. The bar tracks how much of
// the poll budget has been spent, not job progress (vendors don't report it).
//   waiting chanjing/abc123  [=====>........................]  12s / 5m0s

const barWidth = 30

type waitIndicator struct {
	w       io.Writer
	handle  domain.TaskHandle
	budget  time.Duration
	started time.Time
	stop    chan struct{}
	done    chan struct{}
}

func newWaitIndicator(w io.Writer, h domain.TaskHandle, budget time.Duration) *waitIndicator {
	return &waitIndicator{
		w:       w,
		handle:  h,
		budget:  budget,
		started: time.Now(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start redraws the line every tick until Stop.
func (p *waitIndicator) Start(tick time.Duration) {
	go func() {
		defer close(p.done)
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			p.render(time.Now())
			select {
			case <-p.stop:
				return
			case <-t.C:
			}
		}
	}()
}

// Stop ends the redraw loop and prints the final status.
func (p *waitIndicator) Stop(status domain.PollStatus) {
	close(p.stop)
	<-p.done
	clearLine(p.w)
	fmt.Fprintf(p.w, "[%s] %s/%s after %s\n", status, p.handle.Vendor, p.handle.TaskID,
		time.Since(p.started).Round(time.Second))
}

func (p *waitIndicator) render(now time.Time) {
	elapsed := now.Sub(p.started)
	clearLine(p.w)
	fmt.Fprintf(p.w, "  waiting %s/%s  %s  %s / %s",
		p.handle.Vendor, p.handle.TaskID, renderBar(elapsed, p.budget),
		elapsed.Round(time.Second), p.budget)
}

// renderBar draws [=====>.....] for the spent fraction of total.
func renderBar(spent, total time.Duration) string {
	pct := 0.0
	if total > 0 {
		pct = float64(spent) / float64(total)
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}

	filled := int(pct * float64(barWidth))
	empty := barWidth - filled

	var bar string
	switch {
	case filled == barWidth:
		bar = strings.Repeat("=", filled)
	case filled > 0:
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	default:
		bar = strings.Repeat(".", barWidth)
	}
	return "[" + bar + "]"
}

func clearLine(w io.Writer) {
	fmt.Fprint(w, "\r\033[K")
}
