package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsOnline("user-1"))

	// Two tabs for the same user: only the first add and the last remove
	// change presence.
	assert.True(t, r.Add("user-1", "conn-a"))
	assert.False(t, r.Add("user-1", "conn-b"))
	assert.True(t, r.IsOnline("user-1"))

	assert.False(t, r.Remove("user-1", "conn-a"))
	assert.True(t, r.IsOnline("user-1"))

	assert.True(t, r.Remove("user-1", "conn-b"))
	assert.False(t, r.IsOnline("user-1"))
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Remove("user-1", "conn-a"))

	r.Add("user-1", "conn-a")
	assert.False(t, r.Remove("user-1", "conn-b"))
	assert.True(t, r.IsOnline("user-1"))
}

func TestRegistry_OnlineUsers(t *testing.T) {
	r := NewRegistry()

	assert.Empty(t, r.OnlineUsers())

	r.Add("user-1", "conn-a")
	r.Add("user-1", "conn-b")
	r.Add("user-2", "conn-c")

	assert.ElementsMatch(t, []string{"user-1", "user-2"}, r.OnlineUsers())

	r.Remove("user-2", "conn-c")
	assert.ElementsMatch(t, []string{"user-1"}, r.OnlineUsers())
}
