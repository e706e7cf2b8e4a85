package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
	"testing"
)

func TestMapMMIORegion(t *testing.T) {
	m, _ := newTestManager(t, 1024)

	if _, err := m.MapMMIORegion(0xfee00000, mem.PageSize); err != errNoKernelPDT {
		t.Fatalf("expected error %v; got %v", errNoKernelPDT, err)
	}

	pdt := setupKernelPDT(t, m)

	specs := []struct {
		physAddr mem.PhysAddr
		size     mem.Size
		expAddr  mem.VirtAddr
	}{
		{0xfee00000, mem.PageSize, mem.MMIOBase},
		{0xfec00123, 0x10, mem.MMIOBase + 0x1123},
		// straddles a page boundary so two pages get mapped
		{0xfeb00ff0, 0x20, mem.MMIOBase + 0x2ff0},
		{0xfe000000, 0, mem.MMIOBase + 0x4000},
	}

	for specIndex, spec := range specs {
		virtAddr, err := m.MapMMIORegion(spec.physAddr, spec.size)
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if virtAddr != spec.expAddr {
			t.Errorf("[spec %d] expected virtual address 0x%x; got 0x%x", specIndex, spec.expAddr, virtAddr)
		}

		if spec.size == 0 {
			continue
		}

		physAddr, err := m.Translate(pdt, virtAddr)
		if err != nil || physAddr != spec.physAddr {
			t.Errorf("[spec %d] expected 0x%x to map to 0x%x; got 0x%x, %v", specIndex, virtAddr, spec.physAddr, physAddr, err)
		}

		entry, _ := m.Walk(pdt, virtAddr, false)
		if exp := FlagPresent | FlagRW | FlagDoNotCache | FlagWriteThroughCaching; entry.Load().Flags() != exp {
			t.Errorf("[spec %d] expected entry flags 0x%x; got 0x%x", specIndex, exp, entry.Load().Flags())
		}
	}

	if _, err := m.Translate(pdt, mem.MMIOBase+0x2000+0x1000); err != nil {
		t.Fatalf("expected straddling region to map its second page; got %v", err)
	}

	if err := m.CheckKernelPDT(pdt, testKernelStack); err != nil {
		t.Fatalf("expected MMIO mappings to pass the kernel directory check; got %v", err)
	}

	_, err := m.MapMMIORegion(0, mem.PTSize)
	if err != ErrMMIOOverflow {
		t.Fatalf("expected error %v; got %v", ErrMMIOOverflow, err)
	}

	if !kernel.IsFatal(err) {
		t.Fatal("expected MMIO overflow to be fatal")
	}

	// the remaining space can still be used
	if _, err = m.MapMMIORegion(0, mem.PTSize-4*mem.PageSize); err != nil {
		t.Fatal(err)
	}

	if _, err = m.MapMMIORegion(0, 1); err != ErrMMIOOverflow {
		t.Fatalf("expected error %v; got %v", ErrMMIOOverflow, err)
	}
}
