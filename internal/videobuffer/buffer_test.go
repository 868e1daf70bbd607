package videobuffer

import (
	"sync"
	"testing"
)

func TestOfferThenTakeSeesLatestFrame(t *testing.T) {
	b := New()
	var available, skipped int
	b.SetConsumerCallbacks(Callbacks{
		OnFrameAvailable: func(any) { available++ },
		OnFrameSkipped:   func(any) { skipped++ },
	}, nil)

	b.Producer().PTS = 1000
	b.OfferFrame()
	b.Producer().PTS = 2000
	b.OfferFrame()
	b.Producer().PTS = 3000
	b.OfferFrame()

	if skipped != 2 {
		t.Fatalf("expected 2 skipped offers, got %d", skipped)
	}
	if available != 1 {
		t.Fatalf("expected 1 available offer, got %d", available)
	}

	f := b.TakeFrame()
	if f.PTS != 3000 {
		t.Fatalf("expected consumer to see latest offered frame (3000), got %d", f.PTS)
	}
}

func TestFirstOfferFiresAvailableNotSkipped(t *testing.T) {
	b := New()
	var available, skipped int
	b.SetConsumerCallbacks(Callbacks{
		OnFrameAvailable: func(any) { available++ },
		OnFrameSkipped:   func(any) { skipped++ },
	}, nil)

	b.Producer().PTS = 42
	b.OfferFrame()

	if available != 1 || skipped != 0 {
		t.Fatalf("expected first offer to fire available only, got available=%d skipped=%d", available, skipped)
	}
	f := b.TakeFrame()
	if f.PTS != 42 {
		t.Fatalf("unexpected pts: %d", f.PTS)
	}
}

func TestTakeFramePanicsWithoutPendingFrame(t *testing.T) {
	b := New()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic when taking with nothing pending")
		}
	}()
	b.TakeFrame()
}

func TestOfferWithTakeInCallbackNotifiesEveryOffer(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var takenCount int
	b.SetConsumerCallbacks(Callbacks{
		OnFrameAvailable: func(any) {
			mu.Lock()
			takenCount++
			mu.Unlock()
			b.TakeFrame()
		},
		OnFrameSkipped: func(any) {
			mu.Lock()
			takenCount++
			mu.Unlock()
			b.TakeFrame()
		},
	}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Producer().PTS = int64(i)
			b.OfferFrame()
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if takenCount != 1000 {
		t.Fatalf("expected 1000 notifications, got %d", takenCount)
	}
}
