package vmm

import "gophermm/kernel/mem"

// MMU is implemented by the paging hardware backends in the cpu package.
type MMU interface {
	// ActivePDT returns the physical address of the active page directory.
	ActivePDT() mem.PhysAddr

	// SwitchPDT loads the page directory at pdtPhysAddr and flushes the TLB.
	SwitchPDT(pdtPhysAddr mem.PhysAddr)

	// FlushTLBEntry flushes the TLB entry for a particular virtual address.
	FlushTLBEntry(virtAddr mem.VirtAddr)
}

// Invalidate flushes the TLB entry for virtAddr if pdt is the address space
// that is currently active. Entries of inactive address spaces cannot be
// cached so no action is required for them.
func (m *Manager) Invalidate(pdt PageDirectoryTable, virtAddr mem.VirtAddr) {
	if m.mmu.ActivePDT() == pdt.Address() {
		m.mmu.FlushTLBEntry(virtAddr)
	}
}

// Activate enables this page directory table and flushes the TLB.
func (m *Manager) Activate(pdt PageDirectoryTable) {
	m.mmu.SwitchPDT(pdt.Address())
}
