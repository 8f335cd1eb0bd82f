package chat

import (
	"bufio"
	"net"
)

// StartOutboundWriter drains out onto conn until out is closed. A failed
// write closes conn so the session's reader notices and cleans up. The
// returned channel is closed when the writer has stopped.
func StartOutboundWriter(conn net.Conn, out <-chan string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w := bufio.NewWriter(conn)
		for msg := range out {
			if _, err := w.WriteString(msg + "\n"); err != nil {
				_ = conn.Close()
				return
			}
			// Flush only once the queue is empty so bursts share a write.
			if len(out) > 0 {
				continue
			}
			if err := w.Flush(); err != nil {
				_ = conn.Close()
				return
			}
		}
		_ = w.Flush()
	}()
	return done
}
