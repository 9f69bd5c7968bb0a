package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffered_SendReceive(t *testing.T) {
	b := NewBuffered[string](2)
	b.Send("a")
	assert.True(t, b.TrySend("b"))
	assert.False(t, b.TrySend("c"), "buffer full")
	assert.Equal(t, 2, b.Len())

	assert.Equal(t, "a", <-b.Receive())
	assert.Equal(t, "b", <-b.Receive())
}

func TestBuffered_CloseTwice(t *testing.T) {
	b := NewBuffered[int](1)
	b.Close()
	b.Close()

	assert.False(t, b.TrySend(1))
	b.Send(1)

	_, ok := <-b.Receive()
	assert.False(t, ok)
}

func TestBuffered_RangeEndsOnClose(t *testing.T) {
	b := NewBuffered[int](4)
	for i := range 3 {
		b.Send(i)
	}
	b.Close()

	var got []int
	for v := range b.Receive() {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}
