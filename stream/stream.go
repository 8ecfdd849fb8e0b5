// Package stream renders run events to a terminal: assistant tokens are
// written as they arrive, tool activity is shown as short status lines, and
// errors are highlighted. The writer is injectable so output can be captured
// in tests.
package stream

import (
	"fmt"
	"io"
	"sync"

	"github.com/contoso/salesagent/core"
)

// ANSI escape sequences used for terminal output.
const (
	ansiReset = "\x1b[0m"
	ansiCyan  = "\x1b[36m"
	ansiRed   = "\x1b[31m"
	ansiDim   = "\x1b[2m"
)

// Options configures the terminal handler.
type Options struct {
	// Color toggles ANSI escapes. Disable when writing to a file or pipe.
	Color bool
	// ShowToolStatus toggles the tool call / tool result status lines.
	ShowToolStatus bool
}

// Handler consumes core.Event values from a run and renders them. It is safe
// for use from a single consumer goroutine per run; the mutex only guards
// interleaving across runs sharing a writer.
type Handler struct {
	w              io.Writer
	color          bool
	showToolStatus bool

	mu         sync.Mutex
	sawPartial bool
}

// New creates a terminal stream handler writing to w.
func New(w io.Writer, optFns ...func(o *Options)) *Handler {
	opts := Options{
		Color:          true,
		ShowToolStatus: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handler{
		w:              w,
		color:          opts.Color,
		showToolStatus: opts.ShowToolStatus,
	}
}

// HandleEvent renders a single event.
func (h *Handler) HandleEvent(ev core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.ErrorMessage != nil {
		h.writeColored(ansiRed, fmt.Sprintf("\nerror: %s\n", *ev.ErrorMessage))
		h.sawPartial = false
		return
	}

	if ev.Content == nil {
		return
	}

	if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
		if h.showToolStatus && !ev.IsPartial() {
			for _, fc := range fnCalls {
				h.writeColored(ansiCyan, fmt.Sprintf("\n[tool] %s %s\n", fc.Name, fc.Arguments))
			}
		}
		return
	}

	if fnResponses := ev.GetFunctionResponses(); len(fnResponses) > 0 {
		if h.showToolStatus {
			for _, fr := range fnResponses {
				if fr.Error != "" {
					h.writeColored(ansiRed, fmt.Sprintf("[tool] %s failed: %s\n", fr.Name, fr.Error))
				} else {
					h.writeColored(ansiDim, fmt.Sprintf("[tool] %s done\n", fr.Name))
				}
			}
		}
		return
	}

	text := ev.Content.Text()
	if text == "" {
		return
	}

	if ev.IsPartial() {
		fmt.Fprint(h.w, text)
		h.sawPartial = true
		return
	}

	// Final event repeats the accumulated text when tokens were already
	// streamed; only terminate the line in that case.
	if h.sawPartial {
		fmt.Fprintln(h.w)
		h.sawPartial = false
		return
	}
	fmt.Fprintln(h.w, text)
}

// Consume drains an event channel, rendering every event until it closes.
func (h *Handler) Consume(events <-chan core.Event) {
	for ev := range events {
		h.HandleEvent(ev)
	}
}

func (h *Handler) writeColored(code, text string) {
	if h.color {
		fmt.Fprint(h.w, code, text, ansiReset)
		return
	}
	fmt.Fprint(h.w, text)
}
