package cpu

import (
	"gophermm/kernel/mem"
	"testing"
)

func TestSoftMMU(t *testing.T) {
	var mmu SoftMMU

	if got := mmu.ActivePDT(); got != 0 {
		t.Fatalf("expected initial active PDT to be 0; got 0x%x", got)
	}

	mmu.SwitchPDT(mem.PhysAddr(0x3000))
	if exp, got := mem.PhysAddr(0x3000), mmu.ActivePDT(); got != exp {
		t.Fatalf("expected active PDT to be 0x%x; got 0x%x", exp, got)
	}

	mmu.FlushTLBEntry(mem.VirtAddr(0xdeadb000))
	mmu.FlushTLBEntry(mem.VirtAddr(0x800000))

	if exp := 2; mmu.FlushCount != exp {
		t.Errorf("expected FlushTLBEntry to be called %d times; got %d", exp, mmu.FlushCount)
	}

	if exp := mem.VirtAddr(0x800000); mmu.LastFlushed != exp {
		t.Errorf("expected last flushed address to be 0x%x; got 0x%x", exp, mmu.LastFlushed)
	}
}
