package pmm

import (
	"gophermm/kernel"
	"gophermm/kernel/kfmt"
	"gophermm/kernel/mem"
)

var (
	// ErrBootAllocSealed is returned by BootMemAllocator.Alloc once the
	// page allocator has taken over.
	ErrBootAllocSealed = &kernel.Error{Module: "boot_mem_alloc", Message: "boot allocator used after the page allocator was initialized", Fatal: true}

	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory", Fatal: true}
)

// BootMemAllocator implements a rudimentary physical memory allocator which is
// used to bootstrap the kernel before the frame registry exists.
//
// The allocator hands out page-aligned chunks of physical memory starting at
// the first page past the loaded kernel image. Allocations cannot be freed;
// once the page allocator is initialized, Seal reports the end of the used
// region so that it can be reserved and any further use is rejected.
type BootMemAllocator struct {
	// nextFree is the first unused, page-aligned physical address.
	nextFree mem.PhysAddr

	// limit is the first physical address past usable memory.
	limit mem.PhysAddr

	// allocCount tracks the total number of allocated frames.
	allocCount uint32

	sealed bool
}

// NewBootMemAllocator returns a boot allocator that serves memory from the
// first page at or after kernelEnd up to limit.
func NewBootMemAllocator(kernelEnd, limit mem.PhysAddr) (*BootMemAllocator, *kernel.Error) {
	nextFree, ok := kernelEnd.RoundUp()
	if !ok || nextFree > limit {
		return nil, errBootAllocOutOfMemory
	}

	return &BootMemAllocator{nextFree: nextFree, limit: limit}, nil
}

// Alloc reserves enough pages to hold size bytes and returns the physical
// address of the first one. Calling Alloc with a zero size returns the next
// free address without reserving anything. Memory contents are not cleared.
func (alloc *BootMemAllocator) Alloc(size mem.Size) (mem.PhysAddr, *kernel.Error) {
	if alloc.sealed {
		return 0, ErrBootAllocSealed
	}

	pages := size.Pages()
	if uint64(alloc.nextFree)+uint64(pages)<<mem.PageShift > uint64(alloc.limit) {
		return 0, errBootAllocOutOfMemory
	}

	addr := alloc.nextFree
	alloc.nextFree += mem.PhysAddr(pages) << mem.PageShift
	alloc.allocCount += pages
	return addr, nil
}

// Seal disables the allocator and returns the first physical address that was
// never handed out.
func (alloc *BootMemAllocator) Seal() mem.PhysAddr {
	alloc.sealed = true
	kfmt.Printf("[boot_mem_alloc] reserved %d frames, boot allocations end at 0x%08x\n", alloc.allocCount, uint32(alloc.nextFree))
	return alloc.nextFree
}

// BootReservations returns the physical regions that must never be handed out
// by the page allocator: the null page (real-mode IDT and BIOS data), the
// legacy I/O hole, and the kernel image together with every boot allocation,
// which end at bootEnd.
func BootReservations(bootEnd mem.PhysAddr) []mem.Region {
	regions := []mem.Region{
		{Start: 0, Length: uint64(mem.PageSize)},
		{Start: uint64(mem.IOPhysMem), Length: uint64(mem.ExtPhysMem - mem.IOPhysMem)},
	}

	if bootEnd > mem.ExtPhysMem {
		regions = append(regions, mem.Region{Start: uint64(mem.ExtPhysMem), Length: uint64(bootEnd - mem.ExtPhysMem)})
	}

	return regions
}
