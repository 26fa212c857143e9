package ring_test

import (
	"callnotify/ring"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

const wait = 200 * time.Millisecond

func fired(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(wait):
		return false
	}
}

func TestTimer(t *testing.T) {
	t.Run("given started timer when duration elapses then fire once", func(t *testing.T) {
		mock := clock.NewMock()
		timer := ring.New(mock, 30*time.Second)
		ch := make(chan struct{}, 2)
		timer.Start(func() { ch <- struct{}{} })
		assert.True(t, timer.Active())

		mock.Add(29 * time.Second)
		assert.False(t, fired(ch))

		mock.Add(time.Second)
		assert.True(t, fired(ch))
		assert.False(t, timer.Active())

		mock.Add(time.Minute)
		assert.False(t, fired(ch))
	})

	t.Run("given stopped timer when duration elapses then never fire", func(t *testing.T) {
		mock := clock.NewMock()
		timer := ring.New(mock, 30*time.Second)
		ch := make(chan struct{}, 1)
		timer.Start(func() { ch <- struct{}{} })

		assert.True(t, timer.Stop())
		assert.False(t, timer.Stop())

		mock.Add(time.Minute)
		assert.False(t, fired(ch))
	})

	t.Run("given restarted timer when old deadline passes then wait for new deadline", func(t *testing.T) {
		mock := clock.NewMock()
		timer := ring.New(mock, 30*time.Second)
		ch := make(chan int, 2)
		timer.Start(func() { ch <- 1 })

		mock.Add(20 * time.Second)
		timer.Start(func() { ch <- 2 })

		mock.Add(10 * time.Second)
		select {
		case <-ch:
			t.Fatal("timer fired at the replaced deadline")
		case <-time.After(wait):
		}

		mock.Add(20 * time.Second)
		select {
		case got := <-ch:
			assert.Equal(t, 2, got)
		case <-time.After(wait):
			t.Fatal("timer did not fire")
		}
	})

	t.Run("given non-positive duration when created then use default", func(t *testing.T) {
		timer := ring.New(clock.NewMock(), 0)
		assert.Equal(t, ring.DefaultDuration, timer.Duration())
	})
}
