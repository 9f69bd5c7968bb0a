package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProperties_Merge(t *testing.T) {
	p := Properties{"a": 1, "b": 2}
	p.Merge(Properties{"b": nil, "c": 3})

	assert.Equal(t, Properties{"a": 1, "c": 3}, p)
}

func TestListeners_NotifyAndUnsubscribe(t *testing.T) {
	var ls Listeners
	var order []string

	unsubA := ls.Subscribe(func(changed Properties) { order = append(order, "a") })
	ls.Subscribe(func(changed Properties) {
		changed["mutated"] = true
		order = append(order, "b")
	})

	in := Properties{"k": "v"}
	ls.Notify(in)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.NotContains(t, in, "mutated", "each listener gets a copy")

	unsubA()
	unsubA()
	order = nil
	ls.Notify(in)
	assert.Equal(t, []string{"b"}, order)
	assert.Equal(t, 1, ls.Len())
}
