package alloc

import "testing"

func TestAllocRoundsUpToPage(t *testing.T) {
	h := NewHost()
	buf, err := h.Alloc(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf)%h.pageSize != 0 {
		t.Errorf("len(buf) = %d not a multiple of page size", len(buf))
	}
	if len(buf) < 1 {
		t.Errorf("len(buf) = %d, want at least 1", len(buf))
	}
}

func TestAllocRejectsNonPositive(t *testing.T) {
	h := NewHost()
	if _, err := h.Alloc(0); err == nil {
		t.Error("Alloc(0) should error")
	}
	if _, err := h.Alloc(-5); err == nil {
		t.Error("Alloc(-5) should error")
	}
}
