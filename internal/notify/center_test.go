package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/facility-workbench/internal/models"
)

func ids(ns []models.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestNotify_UniqueIDsInInsertionOrder(t *testing.T) {
	c := NewCenter(time.Minute)
	defer c.Close()

	a := c.Success("saved")
	b := c.Error("failed")
	d := c.Info("gone already")

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, b.ID, d.ID)
	assert.Equal(t, []string{a.ID, b.ID, d.ID}, ids(c.List()))
	assert.Less(t, a.ID, b.ID, "ULIDs issued in the same instant stay ordered")
	assert.Equal(t, models.NotifyError, c.List()[1].Kind)
}

func TestNotify_DefaultTTL(t *testing.T) {
	c := NewCenter(0)
	defer c.Close()
	assert.Equal(t, 3*time.Second, c.TTL())
}

func TestNotify_ExpiresIndependently(t *testing.T) {
	ttl := 200 * time.Millisecond
	c := NewCenter(ttl)
	defer c.Close()

	first := c.Success("first")
	time.Sleep(100 * time.Millisecond)
	second := c.Success("second")

	require.Eventually(t, func() bool {
		for _, n := range c.List() {
			if n.ID == first.ID {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{second.ID}, ids(c.List()), "second must outlive first")

	require.Eventually(t, func() bool { return len(c.List()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestNotify_GoneAfterTTL(t *testing.T) {
	ttl := 30 * time.Millisecond
	c := NewCenter(ttl)
	defer c.Close()

	c.Success("short lived")
	time.Sleep(ttl + 50*time.Millisecond)
	assert.Empty(t, c.List())
}

func TestDismiss(t *testing.T) {
	c := NewCenter(time.Minute)
	defer c.Close()

	n := c.Success("x")
	assert.True(t, c.Dismiss(n.ID))
	assert.False(t, c.Dismiss(n.ID))
	assert.Empty(t, c.List())
}

func TestSubscribe_ReceivesAddedAndExpired(t *testing.T) {
	c := NewCenter(20 * time.Millisecond)
	defer c.Close()

	events, cancel := c.Subscribe(8)
	defer cancel()

	n := c.Error("boom")

	select {
	case ev := <-events:
		assert.Equal(t, EventAdded, ev.Kind)
		assert.Equal(t, n.ID, ev.Notification.ID)
	case <-time.After(time.Second):
		t.Fatal("no added event")
	}
	select {
	case ev := <-events:
		assert.Equal(t, EventExpired, ev.Kind)
		assert.Equal(t, n.ID, ev.Notification.ID)
	case <-time.After(time.Second):
		t.Fatal("no expired event")
	}
}

func TestClose_StopsEverything(t *testing.T) {
	c := NewCenter(time.Minute)
	events, _ := c.Subscribe(1)
	c.Success("pending")
	<-events

	c.Close()
	assert.Empty(t, c.List())
	_, open := <-events
	assert.False(t, open)

	c.Success("after close")
	assert.Empty(t, c.List())
}
