package mapwidget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joeblew999/plat-termit/internal/mapwidget"
	"github.com/joeblew999/plat-termit/internal/mapwidget/fake"
)

func TestRuntimeQueuesUntilReady(t *testing.T) {
	rt := mapwidget.NewRuntime()
	assert.False(t, rt.Ready())

	var order []int
	rt.WhenReady(func(mapwidget.Engine) { order = append(order, 1) })
	rt.WhenReady(func(mapwidget.Engine) { order = append(order, 2) })
	assert.Equal(t, 2, rt.Pending())
	assert.Empty(t, order)

	eng := &fake.Engine{}
	rt.MarkReady(eng)
	assert.Equal(t, []int{1, 2}, order)
	assert.Zero(t, rt.Pending())

	got, ok := rt.Engine()
	assert.True(t, ok)
	assert.Same(t, eng, got)

	rt.WhenReady(func(mapwidget.Engine) { order = append(order, 3) })
	assert.Equal(t, []int{1, 2, 3}, order, "runs immediately once ready")
}

func TestRuntimeMarkReadyTwiceRunsNothing(t *testing.T) {
	rt := mapwidget.NewRuntime()
	rt.MarkReady(&fake.Engine{})

	runs := 0
	rt.WhenReady(func(mapwidget.Engine) { runs++ })
	rt.MarkReady(&fake.Engine{})
	assert.Equal(t, 1, runs)
}

func TestRuntimeReset(t *testing.T) {
	rt := mapwidget.NewRuntime()
	rt.WhenReady(func(mapwidget.Engine) { t.Fatal("dropped waiter must not run") })
	rt.Reset()
	rt.MarkReady(&fake.Engine{})
	assert.True(t, rt.Ready())

	rt.Reset()
	assert.False(t, rt.Ready())
}
