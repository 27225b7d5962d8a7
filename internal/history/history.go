package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
)

// Sink is a destination for emitted alerts (audit/analytics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, a alert.Alert) error
}

// SendTimeout bounds a single sink write so a slow backend cannot stall the
// alert path.
const SendTimeout = 5 * time.Second

// Listener adapts a Sink to the alert.Listener interface. Writes happen on
// their own goroutine; a failed write is logged, never surfaced to the
// emitting component.
func Listener(s Sink) alert.Listener {
	return alert.ListenerFunc(func(a alert.Alert) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
			defer cancel()
			if err := s.Send(ctx, a); err != nil {
				slog.Warn("alert history write failed", "type", a.Type, "error", err)
			}
		}()
	})
}
