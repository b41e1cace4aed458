package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_RunsInDeadlineOrder(t *testing.T) {
	c := NewFake(epoch)
	var got []string
	c.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	c.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })

	c.Advance(15 * time.Millisecond)
	require.Equal(t, []string{"a"}, got)
	require.Equal(t, epoch.Add(15*time.Millisecond), c.Now())

	c.Advance(time.Second)
	require.Equal(t, []string{"a", "b", "c"}, got)
	require.Equal(t, 0, c.Pending())
}

func TestFake_StopPreventsCallback(t *testing.T) {
	c := NewFake(epoch)
	ran := false
	tm := c.AfterFunc(time.Millisecond, func() { ran = true })

	require.True(t, tm.Stop())
	require.False(t, tm.Stop())
	c.Advance(time.Second)
	require.False(t, ran)
}

func TestFake_CallbackSchedulesWithinWindow(t *testing.T) {
	c := NewFake(epoch)
	var at []time.Duration
	c.AfterFunc(10*time.Millisecond, func() {
		at = append(at, c.Now().Sub(epoch))
		c.AfterFunc(10*time.Millisecond, func() {
			at = append(at, c.Now().Sub(epoch))
		})
	})

	c.Advance(25 * time.Millisecond)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, at)
}

func TestFake_StopAfterFireReturnsFalse(t *testing.T) {
	c := NewFake(epoch)
	tm := c.AfterFunc(time.Millisecond, func() {})
	c.Advance(time.Millisecond)
	require.False(t, tm.Stop())
}

func TestFunc_PostsCallbacks(t *testing.T) {
	posted := make(chan func(), 1)
	c := Func(func(f func()) { posted <- f })

	ran := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(ran) })

	f := <-posted
	select {
	case <-ran:
		t.Fatal("callback ran before the owner executed it")
	default:
	}
	f()
	<-ran
}

func TestFunc_StopBeforeOwnerRuns(t *testing.T) {
	posted := make(chan func(), 1)
	c := Func(func(f func()) { posted <- f })

	ran := false
	tm := c.AfterFunc(time.Millisecond, func() { ran = true })
	f := <-posted
	require.True(t, tm.Stop())
	f()
	require.False(t, ran)
}
