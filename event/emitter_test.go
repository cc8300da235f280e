package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_InvokeFiresAllNames(t *testing.T) {
	e := NewEmitter()

	var got []string
	e.On("onSuccess", func(args ...interface{}) {
		got = append(got, "generic:"+args[0].(string))
	})
	e.On("order-created", func(args ...interface{}) {
		got = append(got, "specific:"+args[0].(string))
	})

	e.Invoke([]string{"onSuccess", "order-created"}, "call-1")

	assert.Equal(t, []string{"generic:call-1", "specific:call-1"}, got)
}

func TestEmitter_MultipleHandlersPerEvent(t *testing.T) {
	e := NewEmitter()

	count := 0
	e.On("tick", func(...interface{}) { count++ })
	e.On("tick", func(...interface{}) { count++ })

	e.Invoke([]string{"tick"})
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, e.HandlerCount("tick"))
}

func TestEmitter_Unbind(t *testing.T) {
	e := NewEmitter()

	fired := false
	e.On("tick", func(...interface{}) { fired = true })
	e.Unbind("tick")

	e.Invoke([]string{"tick"})
	assert.False(t, fired)
	assert.Zero(t, e.HandlerCount("tick"))
}

func TestEmitter_UnknownEventIsNoOp(t *testing.T) {
	e := NewEmitter()
	assert.NotPanics(t, func() {
		e.Invoke([]string{"nobody-listens"}, 1, 2, 3)
	})
}
