// Package clock abstracts time for the debounce and scroll-guard logic so it can be driven deterministically in tests.
//
// The engine is single-goroutine. Real's callbacks run on timer goroutines; callers that own an event loop should wrap it (see Func) so callbacks are delivered
// on the loop's goroutine.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock reports the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the callback already ran or was already stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Func adapts a real clock so that every callback is handed to post instead of being run on the timer goroutine. post is expected to enqueue the callback on the
// owner's event loop.
//
// A Timer returned by Func's clock still reports Stop correctly if it is stopped after post was called but before the loop ran the callback: the callback then
// becomes a no-op.
func Func(post func(func())) Clock {
	return postingClock{post: post}
}

type postingClock struct {
	post func(func())
}

func (c postingClock) Now() time.Time { return time.Now() }

func (c postingClock) AfterFunc(d time.Duration, f func()) Timer {
	pt := &postedTimer{}
	pt.timer = time.AfterFunc(d, func() {
		c.post(func() {
			pt.mu.Lock()
			if pt.stopped {
				pt.mu.Unlock()
				return
			}
			pt.fired = true
			pt.mu.Unlock()
			f()
		})
	})
	return pt
}

type postedTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	fired   bool
}

func (t *postedTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// Fake is a manually advanced Clock. Callbacks run synchronously inside Advance, in deadline order (ties in scheduling order).
type Fake struct {
	now    time.Time
	seq    int
	timers []*fakeTimer
}

// NewFake returns a Fake whose current time is start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	seq      int
	f        func()
	done     bool
}

func (t *fakeTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	t.clock.remove(t)
	return true
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	return c.now
}

// AfterFunc schedules f to run when the fake time reaches Now()+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.seq++
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, running every callback whose deadline is reached. Callbacks scheduled by callbacks also run if they fall within the window.
func (c *Fake) Advance(d time.Duration) {
	end := c.now.Add(d)
	for {
		next := c.nextDue(end)
		if next == nil {
			break
		}
		c.now = next.deadline
		next.done = true
		c.remove(next)
		next.f()
	}
	c.now = end
}

// Pending returns the number of scheduled callbacks that have not run or been stopped.
func (c *Fake) Pending() int {
	return len(c.timers)
}

func (c *Fake) nextDue(end time.Time) *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sorted := append([]*fakeTimer(nil), c.timers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].deadline.Equal(sorted[j].deadline) {
			return sorted[i].seq < sorted[j].seq
		}
		return sorted[i].deadline.Before(sorted[j].deadline)
	})
	if sorted[0].deadline.After(end) {
		return nil
	}
	return sorted[0]
}

func (c *Fake) remove(t *fakeTimer) {
	for i, x := range c.timers {
		if x == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}
