package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(Config{RPM: 10, Multiplier: 1.0, Enabled: true})
	defer l.Stop()

	for i := 0; i < 10; i++ {
		res := l.Allow("1.2.3.4")
		if !res.Allowed {
			t.Fatalf("request %d unexpectedly denied", i)
		}
	}
	res := l.Allow("1.2.3.4")
	if res.Allowed {
		t.Fatalf("expected 11th request to be denied with burst=10")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry-after, got %v", res.RetryAfter)
	}
}

func TestWindowResetsAfter60s(t *testing.T) {
	l := New(Config{RPM: 1, Multiplier: 1.0, Enabled: true})
	defer l.Stop()

	fakeNow := time.Now()
	l.now = func() time.Time { return fakeNow }

	if !l.Allow("ip").Allowed {
		t.Fatalf("first request should be allowed")
	}
	if l.Allow("ip").Allowed {
		t.Fatalf("second request within window should be denied")
	}

	fakeNow = fakeNow.Add(61 * time.Second)
	if !l.Allow("ip").Allowed {
		t.Fatalf("request after window reset should be allowed")
	}
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	l := New(Config{RPM: 1, Multiplier: 1.0, Enabled: false})
	defer l.Stop()
	for i := 0; i < 100; i++ {
		if !l.Allow("ip").Allowed {
			t.Fatalf("disabled limiter must always allow")
		}
	}
}

func TestBurstMultiplier(t *testing.T) {
	l := New(Config{RPM: 10, Multiplier: 2.5, Enabled: true})
	defer l.Stop()
	if l.burst != 25 {
		t.Fatalf("expected burst 25, got %d", l.burst)
	}
}
