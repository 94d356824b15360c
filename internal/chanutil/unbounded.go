// Package chanutil provides a channel primitive the standard library
// doesn't: an MPSC queue that never blocks its senders. trade_bus and
// oracle_out both need this shape so a slow PositionTracker can never
// make the OrderBook or the Oracle stall on a send. No third-party
// library in the retrieved pack implements this narrow piece of
// infrastructure, so it is built directly on stdlib channels and a
// goroutine-owned growable queue.
package chanutil

// Unbounded is an MPSC queue backed by a single forwarding goroutine.
// Senders write to In and never block on a full buffer; the internal
// queue grows to hold whatever has not yet been read from Out.
type Unbounded[T any] struct {
	In  chan<- T
	Out <-chan T
}

// NewUnbounded starts the forwarding goroutine and returns the send and
// receive ends. Closing the returned In channel drains any buffered
// items before Out closes.
func NewUnbounded[T any]() *Unbounded[T] {
	in := make(chan T)
	out := make(chan T)

	go func() {
		defer close(out)

		var queue []T
		for {
			if len(queue) == 0 {
				v, ok := <-in
				if !ok {
					return
				}
				queue = append(queue, v)
				continue
			}

			select {
			case v, ok := <-in:
				if !ok {
					// Drain what remains before exiting.
					for _, q := range queue {
						out <- q
					}
					return
				}
				queue = append(queue, v)
			case out <- queue[0]:
				queue = queue[1:]
			}
		}
	}()

	return &Unbounded[T]{In: in, Out: out}
}
