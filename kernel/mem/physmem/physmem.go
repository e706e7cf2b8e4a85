// Package physmem provides the backing store that stands in for the machine's
// physical memory. Every frame managed by the page allocator and every page
// table walked by the vmm package lives inside a Memory instance; all accesses
// are bounds-checked slices rather than raw pointers.
package physmem

import (
	"gophermm/kernel"
	"gophermm/kernel/mem"
)

var (
	// ErrOutOfRange is returned when a physical address falls outside
	// the backing store.
	ErrOutOfRange = &kernel.Error{Module: "physmem", Message: "physical address outside of backing memory", Fatal: true}

	errInvalidSize = &kernel.Error{Module: "physmem", Message: "memory size must be a non-zero multiple of the page size"}
)

// Memory is a contiguous range of physical memory starting at physical
// address 0.
type Memory struct {
	data    []byte
	release func([]byte) error
}

// New allocates a heap-backed Memory of the requested size.
func New(size mem.Size) (*Memory, *kernel.Error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}

	return &Memory{data: make([]byte, size)}, nil
}

// NewMapped returns a Memory backed by an anonymous memory mapping obtained
// from the host. On hosts without mmap support it falls back to New.
func NewMapped(size mem.Size) (*Memory, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}

	data, release, err := mapAnonymous(int(size))
	if err != nil {
		return nil, err
	}

	return &Memory{data: data, release: release}, nil
}

func validateSize(size mem.Size) *kernel.Error {
	if size == 0 || size%mem.PageSize != 0 || size > mem.Size(1<<32) {
		return errInvalidSize
	}

	return nil
}

// Size returns the size of the backing store in bytes.
func (m *Memory) Size() mem.Size {
	return mem.Size(len(m.data))
}

// FrameCount returns the number of page frames in the backing store.
func (m *Memory) FrameCount() uint32 {
	return uint32(len(m.data) >> mem.PageShift)
}

// Frame returns a PageSize-long view of the frame containing physAddr.
func (m *Memory) Frame(physAddr mem.PhysAddr) ([]byte, *kernel.Error) {
	start := uint64(physAddr.RoundDown())
	if start+uint64(mem.PageSize) > uint64(len(m.data)) {
		return nil, ErrOutOfRange
	}

	return m.data[start : start+uint64(mem.PageSize) : start+uint64(mem.PageSize)], nil
}

// Close releases the backing store. The Memory must not be used afterwards.
func (m *Memory) Close() error {
	var err error
	if m.release != nil && m.data != nil {
		err = m.release(m.data)
	}

	m.data = nil
	return err
}

// Memset sets every byte of buf to value using log2(len(buf)) copy calls.
func Memset(buf []byte, value byte) {
	if len(buf) == 0 {
		return
	}

	buf[0] = value
	for index := 1; index < len(buf); index *= 2 {
		copy(buf[index:], buf[:index])
	}
}
