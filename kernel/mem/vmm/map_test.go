package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/pmm"
	"testing"
)

func TestInsertLookupRemoveScenario(t *testing.T) {
	m, _ := newTestManager(t, 8192)

	frame0, err := m.alloc.Alloc(0)
	if err != nil {
		t.Fatal(err)
	}

	if frame0 != 0 {
		t.Fatalf("expected first allocation to return frame 0; got %d", frame0)
	}

	pdt := newTestPDT(t, m)
	virtAddr := mem.VirtAddr(0xdeadbeef).RoundDown()

	if err = m.Insert(pdt, frame0, virtAddr, FlagRW); err != nil {
		t.Fatal(err)
	}

	frame, entry, err := m.Lookup(pdt, virtAddr)
	if err != nil {
		t.Fatal(err)
	}

	if frame != frame0 {
		t.Fatalf("expected Lookup to return frame %d; got %d", frame0, frame)
	}

	if !entry.Load().HasFlags(FlagPresent | FlagRW) {
		t.Fatalf("expected entry to be present and writable; got 0x%x", uint32(entry.Load()))
	}

	if got := refCount(t, m, frame0); got != 1 {
		t.Fatalf("expected refcount 1; got %d", got)
	}

	if err = m.Remove(pdt, virtAddr); err != nil {
		t.Fatal(err)
	}

	if got := refCount(t, m, frame0); got != 0 {
		t.Fatalf("expected refcount 0; got %d", got)
	}

	if entry.Load() != 0 {
		t.Fatalf("expected Remove to clear the entry; got 0x%x", uint32(entry.Load()))
	}

	if _, _, err = m.Lookup(pdt, virtAddr); err != ErrInvalidMapping {
		t.Fatalf("expected error %v; got %v", ErrInvalidMapping, err)
	}

	if !m.alloc.IsFree(frame0) {
		t.Fatal("expected frame 0 to re-enter the free list")
	}

	if err = m.alloc.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestInsert(t *testing.T) {
	const virtAddr = mem.VirtAddr(0x800000)

	t.Run("re-insert updates flags only", func(t *testing.T) {
		m, mmu := newTestManager(t, 16)
		pdt := newTestPDT(t, m)
		m.Activate(pdt)
		frame, _ := m.alloc.Alloc(0)

		for i, flags := range []PageTableEntryFlag{FlagRW, FlagUserAccessible, FlagRW | FlagUserAccessible} {
			if err := m.Insert(pdt, frame, virtAddr+0x123, flags); err != nil {
				t.Fatal(err)
			}

			got, entry, err := m.Lookup(pdt, virtAddr)
			if err != nil {
				t.Fatal(err)
			}

			if got != frame {
				t.Fatalf("[insert %d] expected frame %d; got %d", i, frame, got)
			}

			if exp := flags | FlagPresent; entry.Load().Flags() != exp {
				t.Fatalf("[insert %d] expected flags 0x%x; got 0x%x", i, exp, entry.Load().Flags())
			}

			if got := refCount(t, m, frame); got != 1 {
				t.Fatalf("[insert %d] expected refcount 1; got %d", i, got)
			}

			if exp := i + 1; mmu.FlushCount != exp {
				t.Fatalf("[insert %d] expected %d TLB flushes; got %d", i, exp, mmu.FlushCount)
			}
		}

		if exp := virtAddr + 0x123; mmu.LastFlushed != exp {
			t.Fatalf("expected last flushed address 0x%x; got 0x%x", exp, mmu.LastFlushed)
		}
	})

	t.Run("replace mapping", func(t *testing.T) {
		m, _ := newTestManager(t, 16)
		pdt := newTestPDT(t, m)
		oldFrame, _ := m.alloc.Alloc(0)
		newFrame, _ := m.alloc.Alloc(0)

		if err := m.Insert(pdt, oldFrame, virtAddr, FlagRW); err != nil {
			t.Fatal(err)
		}

		if err := m.Insert(pdt, newFrame, virtAddr, FlagRW); err != nil {
			t.Fatal(err)
		}

		if got, _, _ := m.Lookup(pdt, virtAddr); got != newFrame {
			t.Fatalf("expected frame %d to be mapped; got %d", newFrame, got)
		}

		if !m.alloc.IsFree(oldFrame) {
			t.Fatal("expected replaced frame to be released")
		}

		if got := refCount(t, m, newFrame); got != 1 {
			t.Fatalf("expected refcount 1; got %d", got)
		}
	})

	t.Run("same frame at multiple addresses", func(t *testing.T) {
		m, _ := newTestManager(t, 16)
		pdt := newTestPDT(t, m)
		frame, _ := m.alloc.Alloc(0)

		for _, addr := range []mem.VirtAddr{virtAddr, virtAddr + 0x1000, 0x1000000} {
			if err := m.Insert(pdt, frame, addr, FlagRW); err != nil {
				t.Fatal(err)
			}
		}

		if got := refCount(t, m, frame); got != 3 {
			t.Fatalf("expected refcount 3; got %d", got)
		}

		_ = m.Remove(pdt, virtAddr)
		_ = m.Remove(pdt, 0x1000000)

		if got := refCount(t, m, frame); got != 1 || m.alloc.IsFree(frame) {
			t.Fatalf("expected frame to stay allocated with refcount 1; got %d", got)
		}
	})

	t.Run("table allocation failure", func(t *testing.T) {
		m, _ := newTestManager(t, 3)
		pdt := newTestPDT(t, m)
		frame, _ := m.alloc.Alloc(0)
		_, _ = m.alloc.Alloc(0)

		err := m.Insert(pdt, frame, virtAddr, FlagRW)
		if err != pmm.ErrOutOfMemory {
			t.Fatalf("expected error %v; got %v", pmm.ErrOutOfMemory, err)
		}

		if kernel.IsFatal(err) {
			t.Fatal("expected table allocation failure to be recoverable")
		}

		if got := refCount(t, m, frame); got != 0 {
			t.Fatalf("expected refcount 0; got %d", got)
		}
	})

	t.Run("invalid frame", func(t *testing.T) {
		m, _ := newTestManager(t, 8)
		pdt := newTestPDT(t, m)

		if err := m.Insert(pdt, 8, virtAddr, FlagRW); err != pmm.ErrInvalidFrame {
			t.Fatalf("expected error %v; got %v", pmm.ErrInvalidFrame, err)
		}

		if _, _, err := m.Lookup(pdt, virtAddr); err != ErrInvalidMapping {
			t.Fatalf("expected error %v; got %v", ErrInvalidMapping, err)
		}
	})

	t.Run("frame on the free list", func(t *testing.T) {
		m, _ := newTestManager(t, 8)
		pdt := newTestPDT(t, m)

		// make sure the page table exists so that no allocation happens
		// during the insert below
		mapped, _ := m.alloc.Alloc(0)
		if err := m.Insert(pdt, mapped, virtAddr, FlagRW); err != nil {
			t.Fatal(err)
		}

		freed, _ := m.alloc.Alloc(0)
		if err := m.alloc.Free(freed); err != nil {
			t.Fatal(err)
		}

		err := m.Insert(pdt, freed, virtAddr+0x1000, FlagRW)
		if err != pmm.ErrIncrefFreeFrame {
			t.Fatalf("expected error %v; got %v", pmm.ErrIncrefFreeFrame, err)
		}

		if !kernel.IsFatal(err) {
			t.Fatal("expected error to be fatal")
		}

		if _, _, err = m.Lookup(pdt, virtAddr+0x1000); err != ErrInvalidMapping {
			t.Fatalf("expected error %v; got %v", ErrInvalidMapping, err)
		}

		if got := refCount(t, m, freed); got != 0 || !m.alloc.IsFree(freed) {
			t.Fatalf("expected frame to stay on the free list with refcount 0; got %d", got)
		}

		if err = m.alloc.Check(); err != nil {
			t.Fatal(err)
		}

		if got, _ := m.alloc.Alloc(0); got != freed {
			t.Fatalf("expected frame %d to be handed out again; got %d", freed, got)
		}
	})

	t.Run("previous mapping cannot be removed", func(t *testing.T) {
		m, _ := newTestManager(t, 8)
		pdt := newTestPDT(t, m)

		entry, err := m.Walk(pdt, virtAddr, true)
		if err != nil {
			t.Fatal(err)
		}
		corrupted := makeEntry(0x100000, FlagRW)
		entry.Store(corrupted)

		frame, _ := m.alloc.Alloc(0)
		if err = m.Insert(pdt, frame, virtAddr, FlagRW); err != pmm.ErrInvalidPhysAddr {
			t.Fatalf("expected error %v; got %v", pmm.ErrInvalidPhysAddr, err)
		}

		if got := refCount(t, m, frame); got != 0 || m.alloc.IsFree(frame) {
			t.Fatalf("expected the reference to the new frame to be rolled back; got refcount %d", got)
		}

		if got := entry.Load(); got != corrupted {
			t.Fatalf("expected entry 0x%x to be left untouched; got 0x%x", uint32(corrupted), uint32(got))
		}
	})
}

func TestRemove(t *testing.T) {
	m, mmu := newTestManager(t, 8)
	pdt := newTestPDT(t, m)
	m.Activate(pdt)

	t.Run("unmapped address", func(t *testing.T) {
		freeBefore := m.alloc.FreeCount()

		// missing page table
		if err := m.Remove(pdt, 0x400000); err != nil {
			t.Fatal(err)
		}

		frame, _ := m.alloc.Alloc(0)
		if err := m.Insert(pdt, frame, 0x400000, FlagRW); err != nil {
			t.Fatal(err)
		}
		flushes := mmu.FlushCount

		// table present, entry absent
		if err := m.Remove(pdt, 0x401000); err != nil {
			t.Fatal(err)
		}

		if mmu.FlushCount != flushes {
			t.Fatal("expected removal of an unmapped address not to flush the TLB")
		}

		if err := m.Remove(pdt, 0x400000); err != nil {
			t.Fatal(err)
		}

		// the page table stays allocated
		if exp, got := freeBefore-1, m.alloc.FreeCount(); got != exp {
			t.Fatalf("expected free count %d; got %d", exp, got)
		}
	})

	t.Run("entry pointing outside the frame registry", func(t *testing.T) {
		entry, err := m.Walk(pdt, 0x400000, true)
		if err != nil {
			t.Fatal(err)
		}
		entry.Store(makeEntry(0x100000, FlagRW))

		err = m.Remove(pdt, 0x400000)
		if err != pmm.ErrInvalidPhysAddr {
			t.Fatalf("expected error %v; got %v", pmm.ErrInvalidPhysAddr, err)
		}

		if !kernel.IsFatal(err) {
			t.Fatal("expected error to be fatal")
		}
	})
}

func TestTranslate(t *testing.T) {
	m, _ := newTestManager(t, 8)
	pdt := newTestPDT(t, m)
	frame, _ := m.alloc.Alloc(0)

	if _, err := m.Translate(pdt, 0x400123); err != ErrInvalidMapping {
		t.Fatalf("expected error %v; got %v", ErrInvalidMapping, err)
	}

	if err := m.Insert(pdt, frame, 0x400000, FlagRW); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Translate(pdt, 0x401000); err != ErrInvalidMapping {
		t.Fatalf("expected error %v; got %v", ErrInvalidMapping, err)
	}

	physAddr, err := m.Translate(pdt, 0x400abc)
	if err != nil {
		t.Fatal(err)
	}

	if exp := frame.Address() + 0xabc; physAddr != exp {
		t.Fatalf("expected physical address 0x%x; got 0x%x", exp, physAddr)
	}
}

func TestBootMapRegion(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m, mmu := newTestManager(t, 16)
		pdt := newTestPDT(t, m)
		m.Activate(pdt)

		// crosses a page table boundary
		virtAddr := mem.VirtAddr(0x3fe000)
		if err := m.BootMapRegion(pdt, virtAddr, 4*mem.PageSize, 0xa000, FlagRW); err != nil {
			t.Fatal(err)
		}

		for page := mem.VirtAddr(0); page < 4; page++ {
			physAddr, err := m.Translate(pdt, virtAddr+page<<mem.PageShift+0x10)
			if err != nil {
				t.Fatal(err)
			}

			if exp := mem.PhysAddr(0xa000+page<<mem.PageShift) + 0x10; physAddr != exp {
				t.Errorf("expected page %d to map to 0x%x; got 0x%x", page, exp, physAddr)
			}
		}

		// boot mappings are neither reference counted nor flushed
		if got := refCount(t, m, 0xa); got != 0 {
			t.Fatalf("expected boot mapped frame refcount to stay 0; got %d", got)
		}

		if mmu.FlushCount != 0 {
			t.Fatalf("expected no TLB flushes; got %d", mmu.FlushCount)
		}
	})

	t.Run("end of address space", func(t *testing.T) {
		m, _ := newTestManager(t, 8)
		pdt := newTestPDT(t, m)

		if err := m.BootMapRegion(pdt, 0xffffe000, 2*mem.PageSize, 0, FlagRW); err != nil {
			t.Fatal(err)
		}

		if physAddr, err := m.Translate(pdt, 0xffffffff); err != nil || physAddr != 0x1fff {
			t.Fatalf("expected 0xffffffff to map to 0x1fff; got 0x%x, %v", physAddr, err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		m, _ := newTestManager(t, 8)
		pdt := newTestPDT(t, m)

		specs := []struct {
			virtAddr mem.VirtAddr
			size     mem.Size
			physAddr mem.PhysAddr
		}{
			{0x1001, mem.PageSize, 0},
			{0x1000, mem.PageSize, 0x10},
			{0x1000, mem.PageSize + 1, 0},
			{0xfffff000, 2 * mem.PageSize, 0},
			{0x1000, 2 * mem.PageSize, 0xfffff000},
		}

		for specIndex, spec := range specs {
			if err := m.BootMapRegion(pdt, spec.virtAddr, spec.size, spec.physAddr, FlagRW); err != errUnalignedRegion {
				t.Errorf("[spec %d] expected error %v; got %v", specIndex, errUnalignedRegion, err)
			}
		}
	})
}
