package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestAddEventListenerIsIdempotent(t *testing.T) {
	target := NewTarget()
	calls := 0
	l := NewListener(func(Event) { calls++ })

	assert.True(t, target.AddEventListener(EventNewConnection, l))
	assert.False(t, target.AddEventListener(EventNewConnection, l))
	assert.Equal(t, 1, target.ListenerCount(EventNewConnection))

	target.Dispatch(Event{Type: EventNewConnection})
	assert.Equal(t, 1, calls)
}

func TestRemoveEventListenerByIdentity(t *testing.T) {
	target := NewTarget()
	var got []string
	a := NewListener(func(Event) { got = append(got, "a") })
	b := NewListener(func(Event) { got = append(got, "b") })

	target.AddEventListener(EventNewConnection, a)
	target.AddEventListener(EventNewConnection, b)

	assert.True(t, target.RemoveEventListener(EventNewConnection, a))
	assert.False(t, target.RemoveEventListener(EventNewConnection, a))
	assert.False(t, target.HasEventListener(EventNewConnection, a))
	assert.True(t, target.HasEventListener(EventNewConnection, b))

	target.Dispatch(Event{Type: EventNewConnection})
	assert.Equal(t, []string{"b"}, got)
}

func TestDispatchFiltersByType(t *testing.T) {
	target := NewTarget()
	calls := 0
	target.AddEventListener(EventNewConnection, NewListener(func(Event) { calls++ }))

	target.Dispatch(Event{Type: "disconnect"})
	assert.Equal(t, 0, calls)
}

func TestListenerMayRemoveItselfDuringDispatch(t *testing.T) {
	target := NewTarget()
	calls := 0
	var self *Listener
	self = NewListener(func(Event) {
		calls++
		target.RemoveEventListener(EventNewConnection, self)
		target.AddEventListener(EventNewConnection, self)
	})
	target.AddEventListener(EventNewConnection, self)

	target.Dispatch(Event{Type: EventNewConnection})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, target.ListenerCount(EventNewConnection))
}

func TestResolveSlot(t *testing.T) {
	target := NewTarget()
	assert.False(t, target.Resolve("foo"))

	var got string
	target.SetResolve(func(name string) bool {
		if got != "" {
			return false
		}
		got = name
		return true
	})
	assert.True(t, target.HasResolve())
	assert.True(t, target.Resolve("foo"))
	assert.False(t, target.Resolve("bar"))
	assert.Equal(t, "foo", got)

	target.ClearResolve()
	assert.False(t, target.HasResolve())
	assert.False(t, target.Resolve("baz"))
}

func TestEventProject(t *testing.T) {
	name, ok := Event{ProjectName: strPtr("foo")}.Project()
	assert.True(t, ok)
	assert.Equal(t, "foo", name)

	_, ok = Event{}.Project()
	assert.False(t, ok)
}
