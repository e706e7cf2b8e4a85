package mem

// PhysAddr is a 32-bit physical memory address.
type PhysAddr uint32

// VirtAddr is a 32-bit virtual memory address.
type VirtAddr uint32

// PageOffset returns the offset of this address within its page.
func (a PhysAddr) PageOffset() uint32 {
	return uint32(a) & uint32(PageSize-1)
}

// PageOffset returns the offset of this address within its page.
func (a VirtAddr) PageOffset() uint32 {
	return uint32(a) & uint32(PageSize-1)
}

// RoundDown returns the address of the page that contains a.
func (a VirtAddr) RoundDown() VirtAddr {
	return a &^ VirtAddr(PageSize-1)
}

// RoundDown returns the address of the frame that contains a.
func (a PhysAddr) RoundDown() PhysAddr {
	return a &^ PhysAddr(PageSize-1)
}

// RoundUp rounds a up to the next page boundary. The second return value is
// false if the rounded address does not fit in 32 bits.
func (a PhysAddr) RoundUp() (PhysAddr, bool) {
	rounded := (uint64(a) + uint64(PageSize-1)) &^ uint64(PageSize-1)
	return PhysAddr(rounded), rounded <= 1<<32-1
}

// Region describes a physical memory range [Start, Start+Length).
type Region struct {
	Start  uint64
	Length uint64
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Start + r.Length
}

// Overlaps returns true if the frame starting at the page-aligned physical
// address frameAddr shares at least one byte with the region.
func (r Region) Overlaps(frameAddr uint64) bool {
	return r.Length != 0 && frameAddr < r.End() && r.Start < frameAddr+uint64(PageSize)
}
