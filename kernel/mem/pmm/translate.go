package pmm

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
)

var (
	// ErrInvalidKernelAddr is returned when converting a virtual address
	// below mem.KernBase to a physical address.
	ErrInvalidKernelAddr = &kernel.Error{Module: "pmm", Message: "kernel virtual address below KernBase", Fatal: true}

	// ErrInvalidPhysAddr is returned when a physical address lies past the
	// last frame tracked by the frame registry.
	ErrInvalidPhysAddr = &kernel.Error{Module: "pmm", Message: "physical address outside of the frame registry", Fatal: true}
)

// PhysicalAddr converts a kernel virtual address from the KernBase window to
// its physical address.
func PhysicalAddr(kernelVirtAddr mem.VirtAddr) (mem.PhysAddr, *kernel.Error) {
	if kernelVirtAddr < mem.KernBase {
		return 0, ErrInvalidKernelAddr
	}

	return mem.PhysAddr(kernelVirtAddr - mem.KernBase), nil
}

// KernelAddr converts a physical address to the kernel virtual address where
// it is visible through the KernBase window.
func (alloc *Allocator) KernelAddr(physAddr mem.PhysAddr) (mem.VirtAddr, *kernel.Error) {
	if uint64(frameFromAddress(physAddr)) >= uint64(len(alloc.pages)) {
		return 0, ErrInvalidPhysAddr
	}

	return mem.VirtAddr(physAddr) + mem.KernBase, nil
}

// FrameFromAddress returns the frame descriptor identity for the frame that
// contains physAddr.
func (alloc *Allocator) FrameFromAddress(physAddr mem.PhysAddr) (Frame, *kernel.Error) {
	frame := frameFromAddress(physAddr)
	if uint64(frame) >= uint64(len(alloc.pages)) {
		return InvalidFrame, ErrInvalidPhysAddr
	}

	return frame, nil
}

// FrameKernelAddr returns the kernel virtual address of the first byte of frame.
func (alloc *Allocator) FrameKernelAddr(frame Frame) (mem.VirtAddr, *kernel.Error) {
	if uint64(frame) >= uint64(len(alloc.pages)) {
		return 0, ErrInvalidPhysAddr
	}

	return alloc.KernelAddr(frame.Address())
}
