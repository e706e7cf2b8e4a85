package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/pmm"
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrNoHugePageSupport is returned when a page directory entry maps a
	// 4Mb page instead of pointing to a page table.
	ErrNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint32

// PageTableEntry describes a page directory or page table entry. The low 12
// bits hold flags and bits 12-31 hold the physical frame number.
type PageTableEntry uint32

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) == uint32(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint32(*pte) | (uint32(flags) & pteFlagMask))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint32(*pte) &^ (uint32(flags) & pteFlagMask))
}

// Flags returns the flag bits of this entry.
func (pte PageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint32(pte) & pteFlagMask)
}

// Frame returns the physical page frame that this page table entry points to.
func (pte PageTableEntry) Frame() pmm.Frame {
	return pmm.Frame((uint32(pte) & ptePhysPageMask) >> mem.PageShift)
}

// Address returns the physical address of the frame this entry points to.
func (pte PageTableEntry) Address() mem.PhysAddr {
	return mem.PhysAddr(uint32(pte) & ptePhysPageMask)
}

// SetFrame updates the page table entry to point the the given physical frame.
func (pte *PageTableEntry) SetFrame(frame pmm.Frame) {
	pte.setAddress(frame.Address())
}

func (pte *PageTableEntry) setAddress(physAddr mem.PhysAddr) {
	*pte = (PageTableEntry)((uint32(*pte) &^ ptePhysPageMask) | (uint32(physAddr) & ptePhysPageMask))
}

// makeEntry returns a present entry for physAddr with the supplied flags.
func makeEntry(physAddr mem.PhysAddr, flags PageTableEntryFlag) PageTableEntry {
	var pte PageTableEntry
	pte.setAddress(physAddr)
	pte.SetFlags(FlagPresent | flags)
	return pte
}
