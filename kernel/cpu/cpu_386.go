package cpu

import "gophermm/kernel/mem"

// Halt stops instruction execution.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uint32)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uint32)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uint32

// HardwareMMU drives the paging hardware of the executing core directly. It
// must only be used when running in ring 0; any call from user-mode faults.
type HardwareMMU struct{}

// ActivePDT returns the contents of CR3.
func (HardwareMMU) ActivePDT() mem.PhysAddr {
	return mem.PhysAddr(ActivePDT())
}

// SwitchPDT loads pdtPhysAddr into CR3.
func (HardwareMMU) SwitchPDT(pdtPhysAddr mem.PhysAddr) {
	SwitchPDT(uint32(pdtPhysAddr))
}

// FlushTLBEntry issues INVLPG for virtAddr.
func (HardwareMMU) FlushTLBEntry(virtAddr mem.VirtAddr) {
	FlushTLBEntry(uint32(virtAddr))
}
