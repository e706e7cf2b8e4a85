package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/pmm"
)

// Walk returns a reference to the page table entry that governs virtAddr in
// the address space pdt.
//
// If the page table covering virtAddr does not exist, Walk returns
// ErrInvalidMapping unless create is set. In that case a cleared frame is
// allocated for the table, referenced once by the directory entry and
// installed with present, RW and user-accessible flags; permissions are only
// restricted at the page table entry level. If the allocation fails, the
// allocator error is returned and the directory is left untouched.
func (m *Manager) Walk(pdt PageDirectoryTable, virtAddr mem.VirtAddr, create bool) (EntryRef, *kernel.Error) {
	dir, err := m.tableAt(pdt.pdtFrame)
	if err != nil {
		return EntryRef{}, err
	}

	pdIndex := tableIndex(virtAddr, 0)
	pde := dir.entry(pdIndex)

	switch {
	case pde.HasFlags(FlagPresent | FlagHugePage):
		return EntryRef{}, ErrNoHugePageSupport
	case !pde.HasFlags(FlagPresent):
		if !create {
			return EntryRef{}, ErrInvalidMapping
		}

		if pde, err = m.allocTable(); err != nil {
			return EntryRef{}, err
		}
		dir.setEntry(pdIndex, pde)
	}

	table, err := m.tableAt(pde.Frame())
	if err != nil {
		return EntryRef{}, err
	}

	return EntryRef{table: table, index: tableIndex(virtAddr, 1)}, nil
}

// allocTable allocates a cleared page table and returns the directory entry
// that points to it.
func (m *Manager) allocTable() (PageTableEntry, *kernel.Error) {
	frame, err := m.alloc.Alloc(pmm.AllocZero)
	if err != nil {
		return 0, err
	}

	if err = m.alloc.Incref(frame); err != nil {
		_ = m.alloc.Free(frame)
		return 0, err
	}

	return makeEntry(frame.Address(), FlagRW|FlagUserAccessible), nil
}
