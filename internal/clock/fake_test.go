package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFake_NowAndAdvance(t *testing.T) {
	c := NewFake(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), c.Now())
}

func TestFake_AfterFuncFiresInOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []string

	c.AfterFunc(20*time.Second, func() { order = append(order, "late") })
	c.AfterFunc(10*time.Second, func() { order = append(order, "early") })
	require.Equal(t, 2, c.Pending())

	c.Advance(9 * time.Second)
	assert.Empty(t, order)

	c.Advance(30 * time.Second)
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Zero(t, c.Pending())
}

func TestFake_StopCancels(t *testing.T) {
	c := NewFake(epoch)
	fired := false

	timer := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFake_StopAfterFire(t *testing.T) {
	c := NewFake(epoch)
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := Real().Now()
	assert.False(t, got.Before(before))
}
