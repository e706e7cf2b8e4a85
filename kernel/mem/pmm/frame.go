// Package pmm contains code that manages physical memory frame allocations.
package pmm

import (
	"gophermm/kernel/mem"
	"math"
)

// Frame describes a physical memory page index. A Frame is also the identity
// of the frame's descriptor inside the allocator's frame registry.
type Frame uint32

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint32)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() mem.PhysAddr {
	return mem.PhysAddr(f) << mem.PageShift
}

// frameFromAddress returns the Frame that contains physAddr without checking
// it against the frame registry.
func frameFromAddress(physAddr mem.PhysAddr) Frame {
	return Frame(physAddr >> mem.PageShift)
}
