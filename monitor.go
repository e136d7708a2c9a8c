package serialmon

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DefaultPollInterval is the pause between polls of the receive queue.
// Short enough to feel real-time, long enough not to spin the CPU.
const DefaultPollInterval = 10 * time.Millisecond

// Monitor drives a Conn in a poll/read/print loop, writing each received
// non-blank line to out as its own line with no added framing.
type Monitor struct {
	conn     *Conn
	out      io.Writer
	interval time.Duration
}

// NewMonitor returns a Monitor printing to out at the default poll interval.
func NewMonitor(conn *Conn, out io.Writer) *Monitor {
	return &Monitor{conn: conn, out: out, interval: DefaultPollInterval}
}

// Run polls the connection until ctx is cancelled or the transport fails.
// Cancellation is the normal exit and returns nil; any connection error
// aborts the loop and is returned. The connection is not closed here —
// ownership stays with the caller so release pairs with Open.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := m.conn.Pending()
		if err != nil {
			return err
		}
		if n > 0 {
			raw, err := m.conn.ReadLine()
			if err != nil {
				return err
			}
			if line := decodeLine(raw); line != "" {
				if _, err := fmt.Fprintln(m.out, line); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.interval):
		}
	}
}
