package ws

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastAndClose(t *testing.T) {
	h := NewHub()
	a := NewClient("a", 1)
	b := NewClient("b", 1)
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.ClientCount())

	assert.Equal(t, 2, h.Broadcast([]byte("one")))
	assert.Equal(t, "one", string(<-a.Send))

	// b's buffer is still full; the message is dropped for b only.
	assert.Equal(t, 1, h.Broadcast([]byte("two")))
	assert.Equal(t, "two", string(<-a.Send))

	b.Close()
	b.Close()
	assert.Equal(t, 1, h.ClientCount())
	assert.Equal(t, 1, h.Broadcast([]byte("three")))
}

func TestHub_CloseAllWithoutConn(t *testing.T) {
	h := NewHub()
	c := NewClient("a", 1)
	h.Register(c)
	h.CloseAll()
	assert.Zero(t, h.ClientCount())
	_, ok := <-c.Send
	assert.False(t, ok)
}

func TestHub_BroadcastEvent(t *testing.T) {
	h := NewHub()
	c := NewClient("a", 1)
	h.Register(c)

	n, err := h.BroadcastEvent("online-users", []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var env Envelope
	require.NoError(t, json.Unmarshal(<-c.Send, &env))
	assert.Equal(t, "online-users", env.Event)
	assert.JSONEq(t, `["alice"]`, string(env.Data))

	_, err = h.BroadcastEvent("bad", make(chan int))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"event":"join","data":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, "join", env.Event)
	name, err := env.Text()
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	env, err = Decode([]byte(`{"event":"join","data":{"x":1}}`))
	require.NoError(t, err)
	_, err = env.Text()
	assert.True(t, errors.Is(err, ErrMalformedFrame))

	for _, frame := range []string{`not json`, `{"data":1}`, `{"event":""}`} {
		_, err := Decode([]byte(frame))
		assert.True(t, errors.Is(err, ErrMalformedFrame), frame)
	}
}
