package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/kfmt"
	"gophermm/kernel/mem"
)

var (
	// ErrMMIOOverflow is returned when the MMIO region is exhausted.
	ErrMMIOOverflow = &kernel.Error{Module: "vmm", Message: "MMIO mapping would overflow MMIOLim", Fatal: true}

	errNoKernelPDT = &kernel.Error{Module: "vmm", Message: "kernel page directory has not been set up", Fatal: true}
)

// MapMMIORegion reserves the next chunk of [MMIOBase, MMIOLim) and maps the
// pages covering [physAddr, physAddr+size) into it with caching disabled. It
// returns the virtual address that corresponds to physAddr. Reservations are
// never released.
func (m *Manager) MapMMIORegion(physAddr mem.PhysAddr, size mem.Size) (mem.VirtAddr, *kernel.Error) {
	kernelPDT, ok := m.KernelPDT()
	if !ok {
		return 0, errNoKernelPDT
	}

	var (
		start   = uint64(physAddr.RoundDown())
		end     = (uint64(physAddr) + uint64(size) + uint64(mem.PageSize-1)) &^ uint64(mem.PageSize-1)
		mapSize = mem.Size(end - start)
	)

	if end > 1<<32 || uint64(m.mmioNext)+uint64(mapSize) > uint64(mem.MMIOLim) {
		return 0, ErrMMIOOverflow
	}

	base := m.mmioNext
	if err := m.BootMapRegion(kernelPDT, base, mapSize, mem.PhysAddr(start), FlagDoNotCache|FlagWriteThroughCaching|FlagRW); err != nil {
		return 0, err
	}
	m.mmioNext += mem.VirtAddr(mapSize)

	kfmt.Printf("[vmm] mmio: mapped 0x%08x-0x%08x at 0x%08x\n", uint32(start), end, uint32(base))
	return base + mem.VirtAddr(physAddr.PageOffset()), nil
}
