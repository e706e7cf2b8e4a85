package vmm

import "gophermm/kernel/mem"

const (
	// pageLevels indicates the number of page levels supported by the
	// 32-bit (non-PAE) paging scheme.
	pageLevels = 2

	// ptePhysPageMask is a mask that allows us to extract the physical
	// memory address pointed to by a page table entry.
	ptePhysPageMask = uint32(0xfffff000)

	// pteFlagMask selects the flag bits of a page table entry.
	pteFlagMask = ^ptePhysPageMask
)

var (
	// pageLevelBits defines the number of virtual address bits that
	// correspond to each page level. Level 0 is the page directory.
	pageLevelBits = [pageLevels]uint8{
		mem.PTShift - mem.PageShift,
		mem.PageShift - mem.PointerShift,
	}

	// pageLevelShifts defines the shift required to access each page table
	// component of a virtual address.
	pageLevelShifts = [pageLevels]uint8{
		mem.PTShift,
		mem.PageShift,
	}
)

const (
	// FlagPresent is set when the page is available in memory and not swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set when using 4Mb pages instead of 4K pages.
	FlagHugePage

	// FlagGlobal if set, prevents the TLB from flushing the cached memory address
	// for this page when the swapping page tables by updating the CR3 register.
	FlagGlobal
)

// tableIndex extracts the index into the table at the given page level that
// corresponds to virtAddr.
func tableIndex(virtAddr mem.VirtAddr, level uint8) uint32 {
	return (uint32(virtAddr) >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
}
