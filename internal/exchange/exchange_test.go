package exchange

import (
	"sync"
	"testing"
	"time"
)

func TestExchange_Accounting(t *testing.T) {
	t.Run("CountersNeverNegative", func(t *testing.T) {
		x := New()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				x.OnNewFrame()
				if i%7 == 0 {
					x.OnNewPreroll()
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 1500; i++ {
				x.Claim(i%2 == 0, 4)
				x.SkipOne()
				s := x.Stats()
				if s.QueuedFrames < 0 || s.QueuedPrerolls < 0 {
					t.Errorf("negative counters at i=%d: %+v", i, s)
					return
				}
			}
		}()
		wg.Wait()

		s := x.Stats()
		if s.QueuedFrames < 0 || s.QueuedPrerolls < 0 {
			t.Fatalf("negative counters after run: %+v", s)
		}
		t.Logf("✅ counters stayed non-negative: %+v", s)
	})

	t.Run("ClaimClampsToQueueCapacity", func(t *testing.T) {
		x := New()
		for i := 0; i < 10; i++ {
			x.OnNewFrame()
		}
		x.Claim(true, 3)
		if got := x.Pending(); got != 2 {
			t.Errorf("Pending() = %d, want 2 (clamped to 3, minus one claimed)", got)
		}

		x.Claim(true, 0)
		if got := x.Pending(); got != 1 {
			t.Errorf("Pending() = %d, want 1 with unlimited capacity", got)
		}
		t.Logf("✅ claim clamps to sink capacity")
	})

	t.Run("ClaimResetsPrerolls", func(t *testing.T) {
		x := New()
		x.OnNewPreroll()
		x.OnNewPreroll()
		x.OnNewFrame()

		x.Claim(true, 0)
		if x.Available(false) {
			t.Error("prerolls still available after claim")
		}
		if x.Available(true) {
			t.Error("frame still available after claiming the only one")
		}
	})

	t.Run("SkipOnlyWhatIsQueued", func(t *testing.T) {
		x := New()
		x.OnNewFrame()
		x.OnNewFrame()

		skipped := 0
		for x.SkipOne() {
			skipped++
		}
		if skipped != 2 {
			t.Errorf("skipped %d, want 2", skipped)
		}
		if x.Stats().TotalSkipped != 2 {
			t.Errorf("TotalSkipped = %d, want 2", x.Stats().TotalSkipped)
		}
	})
}

func TestExchange_Wait(t *testing.T) {
	tests := []struct {
		name     string
		playback bool
		produce  func(x *Exchange)
		want     bool
	}{
		{"frame_arrives", true, (*Exchange).OnNewFrame, true},
		{"preroll_arrives", false, (*Exchange).OnNewPreroll, true},
		{"wrong_kind_times_out", true, (*Exchange).OnNewPreroll, false},
		{"nothing_times_out", false, func(*Exchange) {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := New()
			go func() {
				time.Sleep(10 * time.Millisecond)
				tt.produce(x)
			}()

			start := time.Now()
			got := x.Wait(tt.playback, 200*time.Millisecond)
			elapsed := time.Since(start)

			if got != tt.want {
				t.Errorf("Wait() = %v, want %v", got, tt.want)
			}
			if elapsed > time.Second {
				t.Errorf("Wait() blocked %v, expected bounded wait", elapsed)
			}
			t.Logf("✅ %s: returned %v after %v", tt.name, got, elapsed)
		})
	}
}

func TestExchange_WaitReturnsImmediatelyWhenAvailable(t *testing.T) {
	x := New()
	x.OnNewFrame()

	start := time.Now()
	if !x.Wait(true, time.Hour) {
		t.Fatal("Wait() = false with a queued frame")
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("Wait() took %v with a queued frame", time.Since(start))
	}
}

func TestExchange_CloseWakesWaiter(t *testing.T) {
	x := New()
	done := make(chan bool)
	go func() {
		done <- x.Wait(true, time.Hour)
	}()

	time.Sleep(10 * time.Millisecond)
	x.Close()

	select {
	case got := <-done:
		if got {
			t.Error("Wait() = true after Close with nothing queued")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiter")
	}
}

func TestExchange_Reset(t *testing.T) {
	x := New()
	x.OnNewFrame()
	x.OnNewPreroll()
	x.OnEndOfStream()
	x.Reset()

	if x.Available(true) || x.Available(false) {
		t.Error("counters not zero after Reset")
	}
	if x.Stats().TotalFrames != 1 {
		t.Error("Reset must not clear lifetime totals")
	}
}
