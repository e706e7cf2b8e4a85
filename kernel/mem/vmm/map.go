package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/pmm"
)

var (
	errUnalignedRegion = &kernel.Error{Module: "vmm", Message: "region must be page-aligned and fit in the 32-bit address space", Fatal: true}
)

// Insert maps frame at the page containing virtAddr in pdt with the supplied
// permission flags. Missing page tables are created on demand.
//
// Each distinct (frame, page) binding holds exactly one reference to frame:
// inserting a frame at a page where it is already mapped only rewrites the
// entry flags. Any other frame previously mapped at the page is removed. If a
// page table cannot be allocated the existing mappings are not touched. The
// frame must have been handed out by the allocator; inserting a frame that is
// on the free list is a fatal error.
func (m *Manager) Insert(pdt PageDirectoryTable, frame pmm.Frame, virtAddr mem.VirtAddr, flags PageTableEntryFlag) *kernel.Error {
	entry, err := m.Walk(pdt, virtAddr, true)
	if err != nil {
		return err
	}

	if pte := entry.Load(); pte.HasFlags(FlagPresent) && pte.Frame() == frame {
		pte.ClearFlags(PageTableEntryFlag(pteFlagMask))
		pte.SetFlags(FlagPresent | flags)
		entry.Store(pte)
		m.Invalidate(pdt, virtAddr)
		return nil
	}

	// The reference to the new frame must be taken before dropping the
	// previous mapping. A frame on the free list is rejected here.
	if err = m.alloc.Incref(frame); err != nil {
		return err
	}

	if err = m.Remove(pdt, virtAddr); err != nil {
		_ = m.alloc.Unref(frame)
		return err
	}

	var pte PageTableEntry
	pte.SetFrame(frame)
	pte.SetFlags(FlagPresent | flags)
	entry.Store(pte)
	m.Invalidate(pdt, virtAddr)
	return nil
}

// Remove unmaps the page containing virtAddr from pdt and drops the reference
// to the frame that backed it; the frame returns to the free list once no
// references remain. Removing an unmapped page is a no-op.
func (m *Manager) Remove(pdt PageDirectoryTable, virtAddr mem.VirtAddr) *kernel.Error {
	frame, entry, err := m.Lookup(pdt, virtAddr)
	switch {
	case err == ErrInvalidMapping:
		return nil
	case err != nil:
		return err
	}

	if err = m.alloc.Decref(frame); err != nil {
		return err
	}

	entry.Store(0)
	m.Invalidate(pdt, virtAddr)
	return nil
}

// Lookup returns the frame mapped at the page containing virtAddr together
// with a reference to its page table entry. It returns ErrInvalidMapping if no
// mapping exists. Lookup never allocates.
func (m *Manager) Lookup(pdt PageDirectoryTable, virtAddr mem.VirtAddr) (pmm.Frame, EntryRef, *kernel.Error) {
	entry, err := m.Walk(pdt, virtAddr, false)
	if err != nil {
		return pmm.InvalidFrame, EntryRef{}, err
	}

	pte := entry.Load()
	if !pte.HasFlags(FlagPresent) {
		return pmm.InvalidFrame, EntryRef{}, ErrInvalidMapping
	}

	frame, err := m.alloc.FrameFromAddress(pte.Address())
	if err != nil {
		return pmm.InvalidFrame, EntryRef{}, err
	}

	return frame, entry, nil
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func (m *Manager) Translate(pdt PageDirectoryTable, virtAddr mem.VirtAddr) (mem.PhysAddr, *kernel.Error) {
	entry, err := m.Walk(pdt, virtAddr, false)
	if err != nil {
		return 0, err
	}

	pte := entry.Load()
	if !pte.HasFlags(FlagPresent) {
		return 0, ErrInvalidMapping
	}

	return pte.Address() + mem.PhysAddr(virtAddr.PageOffset()), nil
}

// BootMapRegion maps the size bytes starting at virtAddr to the physical
// range starting at physAddr. All arguments must be page-aligned; a region
// may extend up to the end of the address space.
//
// Boot mappings are static: the mapped frames are not reference counted and
// TLB entries are not invalidated. It is only meant for setting up the
// kernel's portion of the address space above UTop.
func (m *Manager) BootMapRegion(pdt PageDirectoryTable, virtAddr mem.VirtAddr, size mem.Size, physAddr mem.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	if virtAddr.PageOffset() != 0 || physAddr.PageOffset() != 0 || size%mem.PageSize != 0 ||
		uint64(virtAddr)+uint64(size) > 1<<32 || uint64(physAddr)+uint64(size) > 1<<32 {
		return errUnalignedRegion
	}

	for page := uint32(0); page < size.Pages(); page++ {
		offset := page << mem.PageShift

		entry, err := m.Walk(pdt, virtAddr+mem.VirtAddr(offset), true)
		if err != nil {
			return err
		}

		entry.Store(makeEntry(physAddr+mem.PhysAddr(offset), flags))
	}

	return nil
}
