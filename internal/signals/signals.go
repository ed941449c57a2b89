// Package signals decodes OS signals into interactive focus events.
package signals

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"pkt.systems/pslog"

	"github.com/Dicklesworthstone/dwatch/internal/focus"
)

// Handler receives decoded events.
type Handler interface {
	Handle(focus.Event)
}

// Watched lists the signals Listen subscribes to.
var Watched = []os.Signal{
	unix.SIGINT,
	unix.SIGTERM,
	unix.SIGHUP,
	unix.SIGTSTP,
	unix.SIGQUIT,
	unix.SIGWINCH,
}

// Decode maps a signal to its event. Unknown signals report false.
func Decode(sig os.Signal) (focus.Event, bool) {
	switch sig {
	case unix.SIGINT, unix.SIGTERM, unix.SIGHUP:
		return focus.Terminate, true
	case unix.SIGTSTP:
		return focus.CycleFocus, true
	case unix.SIGQUIT:
		return focus.CycleStyle, true
	case unix.SIGWINCH:
		return focus.Redraw, true
	default:
		return 0, false
	}
}

// Listen subscribes to Watched and forwards decoded events to h until ctx is
// done. Cancellation of ctx is itself forwarded as Terminate. Listen returns
// once the subscription is active; decoding happens on its own goroutine.
func Listen(ctx context.Context, h Handler) {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, Watched...)
	go run(ctx, ch, h)
}

func run(ctx context.Context, ch chan os.Signal, h Handler) {
	defer signal.Stop(ch)
	log := pslog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			h.Handle(focus.Terminate)
			return
		case sig := <-ch:
			ev, ok := Decode(sig)
			if !ok {
				continue
			}
			log.Trace("signal", "signal", sig.String(), "event", ev.String())
			h.Handle(ev)
			if ev == focus.Terminate {
				return
			}
		}
	}
}
