// Package channel wraps Go channels that several goroutines may close, such
// as a relay member's outbound frames or a client's delivery wake signal.
package channel

// Receiver is the consuming side. Receive yields values until Close.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender is the producing side. Sends after Close are discarded.
type Sender[T any] interface {
	Send(T)
	// TrySend reports false instead of waiting for room.
	TrySend(T) bool
}

// Channel is owned by whoever may close it.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
