// Package cpu exposes the processor operations needed by the memory manager:
// loading the paging root register, invalidating single TLB entries and
// halting the CPU.
package cpu

import "gophermm/kernel/mem"

// SoftMMU is a software stand-in for the paging hardware. It keeps track of
// the currently loaded page directory and counts TLB invalidation requests but
// performs no hardware action. It is used whenever the kernel runs hosted
// (tests, simulation) where the privileged instructions are not available.
type SoftMMU struct {
	activePDT mem.PhysAddr

	// FlushCount tracks the number of single-entry TLB invalidations.
	FlushCount int

	// LastFlushed is the virtual address passed to the last FlushTLBEntry call.
	LastFlushed mem.VirtAddr
}

// ActivePDT returns the physical address of the currently active page directory.
func (m *SoftMMU) ActivePDT() mem.PhysAddr {
	return m.activePDT
}

// SwitchPDT records pdtPhysAddr as the active page directory.
func (m *SoftMMU) SwitchPDT(pdtPhysAddr mem.PhysAddr) {
	m.activePDT = pdtPhysAddr
}

// FlushTLBEntry records an invalidation request for virtAddr.
func (m *SoftMMU) FlushTLBEntry(virtAddr mem.VirtAddr) {
	m.FlushCount++
	m.LastFlushed = virtAddr
}
