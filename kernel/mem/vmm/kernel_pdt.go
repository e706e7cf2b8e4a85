package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/kfmt"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/physmem"
	"gophermm/kernel/mem/pmm"
)

var (
	// ErrKernelPDTCheck is returned by CheckKernelPDT when the kernel
	// address space does not match the expected layout.
	ErrKernelPDTCheck = &kernel.Error{Module: "vmm", Message: "kernel page directory does not match the expected layout", Fatal: true}
)

// SetupKernelPDT builds the kernel address space in pdtFrame, a frame that
// the caller has already reserved:
//   - the page directory is mapped read-only at UVPT for both kernel and user
//     code;
//   - [KStackTop-KStkSize, KStackTop) is mapped RW to the kernel stack at
//     kstack. The KStkGap bytes below it stay unmapped to catch overflows;
//   - [KernBase, 2^32) is mapped RW to physical memory starting at 0.
//
// Page directories created afterwards by NewPageDirectoryTable share the
// kernel mappings, and MapMMIORegion maps into this address space.
func (m *Manager) SetupKernelPDT(pdtFrame pmm.Frame, kstack mem.PhysAddr) (PageDirectoryTable, *kernel.Error) {
	pdt := PageDirectoryTableAt(pdtFrame)

	dir, err := m.tableAt(pdtFrame)
	if err != nil {
		return pdt, err
	}
	physmem.Memset(dir.data, 0)

	dir.setEntry(tableIndex(mem.UVPT, 0), makeEntry(pdt.Address(), FlagUserAccessible))

	if err = m.BootMapRegion(pdt, mem.KStackTop-mem.VirtAddr(mem.KStkSize), mem.KStkSize, kstack, FlagRW); err != nil {
		return pdt, err
	}

	if err = m.BootMapRegion(pdt, mem.KernBase, mem.MaxPhysMem, 0, FlagRW); err != nil {
		return pdt, err
	}

	m.kernelPDT, m.hasKernelPDT = pdt, true
	kfmt.Printf("[vmm] kernel page directory at 0x%08x\n", uint32(pdt.Address()))
	return pdt, nil
}

// KernelPDT returns the kernel address space. The second return value is
// false if SetupKernelPDT has not been called yet.
func (m *Manager) KernelPDT() (PageDirectoryTable, bool) {
	return m.kernelPDT, m.hasKernelPDT
}

// CheckKernelPDT verifies the mappings installed by SetupKernelPDT: every
// frame tracked by the allocator is visible through the KernBase window, the
// kernel stack is backed by kstack with an unmapped guard below it, UVPT
// points back to the directory and no directory entries exist below UTop.
func (m *Manager) CheckKernelPDT(pdt PageDirectoryTable, kstack mem.PhysAddr) *kernel.Error {
	for frame := pmm.Frame(0); uint32(frame) < m.alloc.FrameCount(); frame++ {
		if !m.translatesTo(pdt, mem.KernBase+mem.VirtAddr(frame.Address()), frame.Address()) {
			return ErrKernelPDTCheck
		}
	}

	stackBottom := mem.KStackTop - mem.VirtAddr(mem.KStkSize)
	for offset := mem.Size(0); offset < mem.KStkSize; offset += mem.PageSize {
		if !m.translatesTo(pdt, stackBottom+mem.VirtAddr(offset), kstack+mem.PhysAddr(offset)) {
			return ErrKernelPDTCheck
		}
	}

	for virtAddr := mem.KStackTop - mem.VirtAddr(mem.PTSize); virtAddr < stackBottom; virtAddr += mem.VirtAddr(mem.PageSize) {
		if _, err := m.Translate(pdt, virtAddr); err != ErrInvalidMapping {
			return ErrKernelPDTCheck
		}
	}

	dir, err := m.tableAt(pdt.pdtFrame)
	if err != nil {
		return err
	}

	for index := uint32(0); index < mem.EntriesPerTable; index++ {
		pde := dir.entry(index)

		switch index {
		case tableIndex(mem.UVPT, 0):
			if pde.Frame() != pdt.pdtFrame || !pde.HasFlags(FlagPresent|FlagUserAccessible) || pde.HasAnyFlag(FlagRW) {
				return ErrKernelPDTCheck
			}
		case tableIndex(mem.KStackTop-1, 0), tableIndex(mem.MMIOBase, 0):
			// stack always mapped; MMIO only when a device was mapped
		default:
			if index >= tableIndex(mem.KernBase, 0) {
				if !pde.HasFlags(FlagPresent | FlagRW) {
					return ErrKernelPDTCheck
				}
				continue
			}

			if pde != 0 {
				return ErrKernelPDTCheck
			}
		}
	}

	kfmt.Printf("[vmm] kernel page directory check succeeded\n")
	return nil
}

func (m *Manager) translatesTo(pdt PageDirectoryTable, virtAddr mem.VirtAddr, physAddr mem.PhysAddr) bool {
	got, err := m.Translate(pdt, virtAddr)
	return err == nil && got == physAddr
}
