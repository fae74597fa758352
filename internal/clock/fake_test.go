package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFiresOnlyWhenDeadlinePassed(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(5 * time.Second)

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired too early")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(5*time.Second), got)
	default:
		t.Fatal("expected After to fire")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_AfterNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("expected immediate fire")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_TickerReschedulesAndStops(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(30 * time.Second)

	c.Advance(30 * time.Second)
	<-tk.C
	c.Advance(30 * time.Second)
	<-tk.C
	assert.Equal(t, 1, c.PendingCount())

	tk.Stop()
	assert.Equal(t, 0, c.PendingCount())
	c.Advance(time.Minute)
	select {
	case <-tk.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFake_WaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "goroutine was not released")
	}
}

func TestFake_NewTickerPanicsOnZero(t *testing.T) {
	require.Panics(t, func() { Fake(epoch).NewTicker(0) })
}

func TestFake_TimerStopRemovesWaiter(t *testing.T) {
	c := Fake(epoch)
	tm := c.NewTimer(5 * time.Second)
	assert.Equal(t, 1, c.PendingCount())

	tm.Stop()
	tm.Stop()
	assert.Equal(t, 0, c.PendingCount())

	c.Advance(10 * time.Second)
	select {
	case <-tm.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFake_TimerFiresOnce(t *testing.T) {
	c := Fake(epoch)
	tm := c.NewTimer(time.Second)

	c.Advance(time.Second)
	<-tm.C
	assert.Equal(t, 0, c.PendingCount())
}
