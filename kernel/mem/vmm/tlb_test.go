package vmm

import "testing"

func TestInvalidate(t *testing.T) {
	m, mmu := newTestManager(t, 8)
	active := newTestPDT(t, m)
	inactive := newTestPDT(t, m)

	m.Activate(active)
	if exp, got := active.Address(), mmu.ActivePDT(); got != exp {
		t.Fatalf("expected active directory 0x%x; got 0x%x", exp, got)
	}

	m.Invalidate(inactive, 0x1000)
	if mmu.FlushCount != 0 {
		t.Fatalf("expected no flush for an inactive address space; got %d", mmu.FlushCount)
	}

	m.Invalidate(active, 0x2000)
	if mmu.FlushCount != 1 || mmu.LastFlushed != 0x2000 {
		t.Fatalf("expected a single flush of 0x2000; got %d flushes, last 0x%x", mmu.FlushCount, mmu.LastFlushed)
	}

	m.Activate(inactive)
	m.Invalidate(active, 0x3000)
	if mmu.FlushCount != 1 {
		t.Fatalf("expected no flush after switching address spaces; got %d", mmu.FlushCount)
	}
}
