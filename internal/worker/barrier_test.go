package worker

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrierReleasesAllParties(t *testing.T) {
	const parties = 4
	b := NewBarrier(parties)
	var released atomic.Int32
	for i := 0; i < parties-1; i++ {
		go func() {
			b.Wait()
			released.Add(1)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	if n := released.Load(); n != 0 {
		t.Fatalf("barrier released %d parties before the last arrival", n)
	}
	b.Wait()
	deadline := time.Now().Add(2 * time.Second)
	for released.Load() != parties-1 {
		if time.Now().After(deadline) {
			t.Fatalf("barrier released %d of %d parties", released.Load(), parties-1)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBarrierIsReusable(t *testing.T) {
	b := NewBarrier(2)
	done := make(chan struct{})
	go func() {
		b.Wait()
		b.Wait()
		close(done)
	}()
	b.Wait()
	b.Wait()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second generation never released")
	}
}
