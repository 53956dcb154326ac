package usecase

import (
	"context"
	"testing"
	"time"

	"KlinePull/internal/domain/models"
)

const testReconnectDelay = 20 * time.Millisecond

func TestFeedDeliversUpdates(t *testing.T) {
	dialer := &fakeDialer{}
	f := NewFeed(dialer, newFakeMetrics(), newTestLogger(t), testReconnectDelay)
	defer f.Teardown()

	f.Open(context.Background(), testKey)
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedLive })

	dialer.lastConn().push(upd(testKey, 1000, 50))
	select {
	case u := <-f.Updates():
		if u.Bar.OpenTime != 1000 {
			t.Fatalf("got open time %d, want 1000", u.Bar.OpenTime)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
}

func TestFeedReconnectsAfterDisconnect(t *testing.T) {
	dialer := &fakeDialer{}
	metrics := newFakeMetrics()
	f := NewFeed(dialer, metrics, newTestLogger(t), testReconnectDelay)
	defer f.Teardown()

	f.Open(context.Background(), testKey)
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedLive })

	// Kill the socket from the upstream side: one reconnect, same key.
	dialer.lastConn().Close()
	waitFor(t, time.Second, func() bool { return dialer.dialCount() == 2 })
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedLive })

	if got := dialer.lastDialed(); got != testKey {
		t.Fatalf("reconnected with key %s, want %s", got, testKey)
	}
	if metrics.reconnectCount() != 1 {
		t.Fatalf("reconnects=%d, want 1", metrics.reconnectCount())
	}
}

func TestFeedReconnectTargetsCurrentKey(t *testing.T) {
	dialer := &fakeDialer{failNext: true}
	f := NewFeed(dialer, newFakeMetrics(), newTestLogger(t), 50*time.Millisecond)
	defer f.Teardown()

	// First dial fails, a reconnect gets scheduled.
	f.Open(context.Background(), testKey)
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedReconnecting })

	// The user switches before the timer fires: the pending reconnect for
	// the old key must be cancelled, not redirected.
	other := models.SubscriptionKey{Market: models.MarketSpot, Symbol: "ETHUSDT", Interval: "1m"}
	f.Open(context.Background(), other)
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedLive })

	time.Sleep(150 * time.Millisecond) // past the old timer's deadline
	if n := dialer.dialCount(); n != 2 {
		t.Fatalf("dials=%d, want 2 (failed old key + new key)", n)
	}
	if got := dialer.lastDialed(); got != other {
		t.Fatalf("last dial %s, want %s", got, other)
	}
}

func TestFeedTeardownStopsReconnects(t *testing.T) {
	dialer := &fakeDialer{failNext: true}
	f := NewFeed(dialer, newFakeMetrics(), newTestLogger(t), 20*time.Millisecond)

	f.Open(context.Background(), testKey)
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedReconnecting })

	f.Teardown()
	if f.Status() != models.FeedIdle {
		t.Fatalf("status %s after teardown, want idle", f.Status())
	}

	dials := dialer.dialCount()
	time.Sleep(100 * time.Millisecond)
	if dialer.dialCount() != dials {
		t.Fatal("reconnect fired after teardown")
	}
}

func TestFeedOpenSupersedesOpenConnection(t *testing.T) {
	dialer := &fakeDialer{}
	f := NewFeed(dialer, newFakeMetrics(), newTestLogger(t), testReconnectDelay)
	defer f.Teardown()

	f.Open(context.Background(), testKey)
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedLive })
	first := dialer.lastConn()

	other := models.SubscriptionKey{Market: models.MarketFutures, Symbol: "ETHUSDT", Interval: "5m"}
	f.Open(context.Background(), other)
	waitFor(t, time.Second, func() bool { return dialer.dialCount() == 2 })
	waitFor(t, time.Second, func() bool { return f.Status() == models.FeedLive })

	// The first socket was closed by the switch; its read error must not
	// push the feed out of Live or trigger a third dial.
	select {
	case <-first.done:
	case <-time.After(time.Second):
		t.Fatal("previous connection not closed on switch")
	}
	time.Sleep(100 * time.Millisecond)
	if dialer.dialCount() != 2 {
		t.Fatalf("dials=%d after switch, want 2", dialer.dialCount())
	}
	if f.Status() != models.FeedLive {
		t.Fatalf("status %s, want live", f.Status())
	}
}
