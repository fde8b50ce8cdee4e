package throttle

import (
	"context"
	"testing"
	"time"
)

func TestLocalThrottleWindow(t *testing.T) {
	thr := NewLocal()
	ctx := context.Background()

	ok, err := thr.Allow(ctx, "rebuild:100", time.Hour)
	if err != nil || !ok {
		t.Fatalf("first call: ok=%v err=%v", ok, err)
	}
	ok, err = thr.Allow(ctx, "rebuild:100", time.Hour)
	if err != nil || ok {
		t.Fatalf("second call inside window: ok=%v err=%v", ok, err)
	}

	// Other keys are unaffected.
	ok, err = thr.Allow(ctx, "rebuild:200", time.Hour)
	if err != nil || !ok {
		t.Fatalf("different key: ok=%v err=%v", ok, err)
	}
}

func TestLocalThrottleWindowLapses(t *testing.T) {
	thr := NewLocal()
	ctx := context.Background()

	if ok, _ := thr.Allow(ctx, "k", 10*time.Millisecond); !ok {
		t.Fatal("first call must pass")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := thr.Allow(ctx, "k", 10*time.Millisecond); !ok {
		t.Fatal("call after window lapse must pass")
	}
}
