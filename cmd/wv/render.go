package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/wavebuild/wavebuild/internal/events"
)

// renderer prints a build's event stream to stderr: a wave progress bar
// plus one colored status line per target completion. The bar is created
// once, sized from BuildStarted's target count; targets added mid-build by
// dynamic discovery do not grow its total. Follows cie's index command — a progress bar owned by
// the CLI layer, driven entirely off callback/event data rather than
// polling engine state — generalized from one phase-keyed bar to the
// Executor's flat event stream.
type renderer struct {
	color bool
	bar   *progressbar.ProgressBar
	total int
	done  chan struct{}
}

// newRenderer subscribes to pub and starts printing until the returned
// stop func is called. noColor forces plain output regardless of
// terminal detection; otherwise color is enabled only when stderr is a
// real terminal, matching go-isatty's usual guard against corrupting
// piped/redirected output with escape codes.
func newRenderer(pub *events.Publisher, noColor bool) (stop func()) {
	ch, unsubscribe := pub.Subscribe()
	r := &renderer{
		color: !noColor && isatty.IsTerminal(os.Stderr.Fd()),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		for ev := range ch {
			r.handle(ev)
		}
	}()

	return func() {
		unsubscribe()
		<-r.done
	}
}

func (r *renderer) handle(ev events.Event) {
	switch ev.Kind {
	case events.KindBuildStarted:
		r.total = ev.TotalTargets
		r.bar = progressbar.NewOptions(r.total,
			progressbar.OptionSetDescription("building"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	case events.KindTargetStarted:
		// no line printed on start; the completion line carries the outcome
	case events.KindTargetCompleted:
		r.advance()
		r.line(color.FgGreen, "ok", "%s (%s, %s)", ev.Target, ev.Duration.Round(time.Millisecond), humanize.Bytes(uint64(ev.OutputSize)))
	case events.KindTargetCached:
		r.advance()
		r.line(color.FgCyan, "cached", "%s", ev.Target)
	case events.KindTargetFailed:
		r.advance()
		r.line(color.FgRed, "fail", "%s: %s", ev.Target, ev.Reason)
	case events.KindTargetProgress:
		// sub-target fractional progress has no separate line; the bar
		// only advances on terminal per-target events.
	case events.KindBuildCompleted:
		if r.bar != nil {
			_ = r.bar.Finish()
		}
		r.line(color.FgWhite, "done", "%d built, %d cached, %d failed in %s",
			ev.Built, ev.Cached, ev.Failed, ev.Duration.Round(time.Millisecond))
	case events.KindMessage:
		r.line(color.FgYellow, ev.Level, "%s", ev.Text)
	}
}

func (r *renderer) advance() {
	if r.bar != nil {
		_ = r.bar.Add(1)
	}
}

func (r *renderer) line(c color.Attribute, tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.color {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.New(c, color.Bold).Sprintf("[%s]", tag), msg)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] %s\n", tag, msg)
}
