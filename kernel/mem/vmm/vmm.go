// Package vmm builds and mutates two-level 32-bit page tables. All table
// accesses go through bounds-checked views of the frames owned by a
// pmm.Allocator, so the same code works against the machine's memory and
// against a hosted physmem.Memory.
package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/pmm"
)

// Manager implements the page table walker and the mapping operations on top
// of a physical frame allocator. Page tables created by the walker are
// allocated from alloc and reference counted like any other frame.
type Manager struct {
	alloc *pmm.Allocator
	mmu   MMU

	// kernelPDT is the kernel's address space once SetupKernelPDT has run.
	kernelPDT    PageDirectoryTable
	hasKernelPDT bool

	// mmioNext is the next unused address in [MMIOBase, MMIOLim).
	mmioNext mem.VirtAddr
}

// NewManager returns a Manager that allocates page tables from alloc and uses
// mmu to load page directories and invalidate TLB entries.
func NewManager(alloc *pmm.Allocator, mmu MMU) *Manager {
	return &Manager{
		alloc:    alloc,
		mmu:      mmu,
		mmioNext: mem.MMIOBase,
	}
}

// Allocator returns the frame allocator used by this Manager.
func (m *Manager) Allocator() *pmm.Allocator {
	return m.alloc
}

// PageDirectoryTable describes the top-most table in the two-level paging
// scheme. An address space is identified by the frame holding its directory.
type PageDirectoryTable struct {
	pdtFrame pmm.Frame
}

// PageDirectoryTableAt returns the address space whose directory is stored
// in frame.
func PageDirectoryTableAt(frame pmm.Frame) PageDirectoryTable {
	return PageDirectoryTable{pdtFrame: frame}
}

// Frame returns the frame that holds the page directory.
func (pdt PageDirectoryTable) Frame() pmm.Frame {
	return pdt.pdtFrame
}

// Address returns the physical address of the page directory; this is the
// value loaded into the MMU root register.
func (pdt PageDirectoryTable) Address() mem.PhysAddr {
	return pdt.pdtFrame.Address()
}

// NewPageDirectoryTable allocates and references a cleared page directory.
// If the kernel address space has been set up, its entries above UTop are
// shared with the new directory and the UVPT slot is pointed back at the new
// directory itself. Tearing the directory down is the caller's
// responsibility.
func (m *Manager) NewPageDirectoryTable() (PageDirectoryTable, *kernel.Error) {
	frame, err := m.alloc.Alloc(pmm.AllocZero)
	if err != nil {
		return PageDirectoryTable{}, err
	}

	if err = m.alloc.Incref(frame); err != nil {
		_ = m.alloc.Free(frame)
		return PageDirectoryTable{}, err
	}

	pdt := PageDirectoryTableAt(frame)
	if !m.hasKernelPDT {
		return pdt, nil
	}

	dir, err := m.tableAt(frame)
	if err != nil {
		return pdt, err
	}

	kernelDir, err := m.tableAt(m.kernelPDT.pdtFrame)
	if err != nil {
		return pdt, err
	}

	for index := tableIndex(mem.UTop, 0); index < mem.EntriesPerTable; index++ {
		dir.setEntry(index, kernelDir.entry(index))
	}
	dir.setEntry(tableIndex(mem.UVPT, 0), makeEntry(pdt.Address(), FlagUserAccessible))

	return pdt, nil
}

// tableAt returns a view of the page table stored in frame.
func (m *Manager) tableAt(frame pmm.Frame) (pageTable, *kernel.Error) {
	data, err := m.alloc.FrameData(frame)
	if err != nil {
		return pageTable{}, err
	}

	return pageTable{frame: frame, data: data}, nil
}
