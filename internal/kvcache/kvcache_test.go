package kvcache

import (
	"testing"

	"github.com/embodios/forge/internal/fixedpoint"
)

func row(kvDim int, fill int) []fixedpoint.Fixed {
	r := make([]fixedpoint.Fixed, kvDim)
	for i := range r {
		r[i] = fixedpoint.FromInt(fill)
	}
	return r
}

func TestSlidingWindowAfterTwelveStores(t *testing.T) {
	l, err := NewLayer(8, 4, 2, EvictionSlidingWindow)
	if err != nil {
		t.Fatal(err)
	}
	for p := 0; p < 12; p++ {
		if err := l.Store(p, row(2, p), row(2, p)); err != nil {
			t.Fatalf("store(%d): %v", p, err)
		}
	}
	if l.SeqLen() != 4 {
		t.Errorf("SeqLen() = %d, want 4", l.SeqLen())
	}
	if l.StartPos() != 8 {
		t.Errorf("StartPos() = %d, want 8", l.StartPos())
	}
	// With start_pos=8 and seq_len=4, the retained window is [8,12): per
	// spec.md §3 "a position p is valid iff start_pos <= p < start_pos +
	// seq_len", position 7 is outside it and position 11 (the most
	// recently stored) is inside it.
	if _, err := l.GetKeys(11, 12); err != nil {
		t.Errorf("GetKeys(11,12) should succeed, got %v", err)
	}
	if _, err := l.GetKeys(7, 8); err == nil {
		t.Error("GetKeys(7,8) should fail: position 7 is out of window")
	}
	if _, err := l.GetKeys(3, 4); err == nil {
		t.Error("GetKeys(3,4) should fail: position 3 is out of window")
	}
}

func TestRingPolicyEquivalentWindow(t *testing.T) {
	l, err := NewLayer(8, 4, 2, EvictionRing)
	if err != nil {
		t.Fatal(err)
	}
	for p := 0; p < 12; p++ {
		if err := l.Store(p, row(2, p), row(2, p)); err != nil {
			t.Fatalf("store(%d): %v", p, err)
		}
	}
	if l.SeqLen() != 4 {
		t.Errorf("SeqLen() = %d, want 4", l.SeqLen())
	}
	if l.StartPos() != 8 {
		t.Errorf("StartPos() = %d, want 8", l.StartPos())
	}
	got, err := l.GetKeys(11, 12)
	if err != nil {
		t.Fatalf("GetKeys(11,12): %v", err)
	}
	if fixedpoint.ToInt(got[0]) != 11 {
		t.Errorf("GetKeys(11,12)[0] = %v, want 11", fixedpoint.ToInt(got[0]))
	}
}

func TestEvictionNoneOverflowErrors(t *testing.T) {
	l, err := NewLayer(4, 4, 2, EvictionNone)
	if err != nil {
		t.Fatal(err)
	}
	for p := 0; p < 4; p++ {
		if err := l.Store(p, row(2, p), row(2, p)); err != nil {
			t.Fatalf("store(%d): %v", p, err)
		}
	}
	if err := l.Store(4, row(2, 4), row(2, 4)); err == nil {
		t.Error("expected overflow error with EvictionNone at position == max_seq_len")
	}
}

func TestStatsCountStoresHitsEvictions(t *testing.T) {
	l, err := NewLayer(4, 2, 2, EvictionSlidingWindow)
	if err != nil {
		t.Fatal(err)
	}
	for p := 0; p < 6; p++ {
		l.Store(p, row(2, p), row(2, p))
	}
	l.GetKeys(l.StartPos(), l.StartPos()+l.SeqLen())

	s := l.Stats()
	if s.Stores != 6 {
		t.Errorf("Stores = %d, want 6", s.Stores)
	}
	if s.Evictions == 0 {
		t.Error("expected nonzero evictions after overflow")
	}
	if s.Hits == 0 {
		t.Error("expected nonzero hits after GetKeys")
	}
}

func TestDisabledCacheSkipsStore(t *testing.T) {
	l, err := NewLayer(4, 4, 2, EvictionSlidingWindow)
	if err != nil {
		t.Fatal(err)
	}
	l.Enable(false)
	if err := l.Store(0, row(2, 1), row(2, 1)); err != nil {
		t.Fatal(err)
	}
	if l.SeqLen() != 0 {
		t.Errorf("SeqLen() = %d, want 0 when disabled", l.SeqLen())
	}
}

func TestCacheResetClearsAllLayers(t *testing.T) {
	c, err := New(3, 8, 4, 2, EvictionSlidingWindow)
	if err != nil {
		t.Fatal(err)
	}
	for l := 0; l < 3; l++ {
		c.Layer(l).Store(0, row(2, 1), row(2, 1))
	}
	c.Reset()
	for l := 0; l < 3; l++ {
		if c.Layer(l).SeqLen() != 0 {
			t.Errorf("layer %d SeqLen() = %d after Reset, want 0", l, c.Layer(l).SeqLen())
		}
	}
}
