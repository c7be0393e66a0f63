package connlimit

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLimiterAllowsBurstThenDeniesPerIP(t *testing.T) {
	l := New(Config{IPBurst: 2, IPRate: 0.0001, GlobalBurst: 100, GlobalRate: 1000}, zerolog.Nop())
	defer l.Stop()

	if !l.Allow("1.1.1.1") {
		t.Fatal("first connection from a fresh IP should be allowed")
	}
	if !l.Allow("1.1.1.1") {
		t.Fatal("second connection within burst should be allowed")
	}
	if l.Allow("1.1.1.1") {
		t.Fatal("third connection should exceed the per-IP burst and be denied")
	}
}

func TestLimiterTracksPerIPIndependently(t *testing.T) {
	l := New(Config{IPBurst: 1, IPRate: 0.0001, GlobalBurst: 100, GlobalRate: 1000}, zerolog.Nop())
	defer l.Stop()

	if !l.Allow("2.2.2.2") {
		t.Fatal("first IP should be allowed its burst")
	}
	if !l.Allow("3.3.3.3") {
		t.Fatal("a different IP should have its own independent burst")
	}
	if l.Allow("2.2.2.2") {
		t.Fatal("first IP should be exhausted after its burst")
	}
}

func TestLimiterGlobalCapTakesPrecedence(t *testing.T) {
	l := New(Config{IPBurst: 100, IPRate: 1000, GlobalBurst: 1, GlobalRate: 0.0001}, zerolog.Nop())
	defer l.Stop()

	var rejectedReason string
	l.OnRejected = func(reason string) { rejectedReason = reason }

	if !l.Allow("4.4.4.4") {
		t.Fatal("first connection should consume the single global token")
	}
	if l.Allow("5.5.5.5") {
		t.Fatal("second connection from a different IP should still be denied by the global cap")
	}
	if rejectedReason != "global" {
		t.Fatalf("OnRejected reason = %q, want %q", rejectedReason, "global")
	}
}
