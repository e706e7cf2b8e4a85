package pmm

import (
	"gophermm/kernel"
	"gophermm/kernel/kfmt"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/physmem"
	"gophermm/kernel/sync"
	"math"
)

var (
	// ErrOutOfMemory is returned by Alloc when the free list is empty.
	// Callers are expected to propagate it.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	// ErrFreeReferencedFrame is returned when Free is invoked for a frame
	// that is still referenced by at least one mapping.
	ErrFreeReferencedFrame = &kernel.Error{Module: "pmm", Message: "attempt to free a frame with a non-zero reference count", Fatal: true}

	// ErrDoubleFree is returned when Free is invoked for a frame that is
	// already on the free list.
	ErrDoubleFree = &kernel.Error{Module: "pmm", Message: "frame is already on the free list", Fatal: true}

	// ErrRefCountUnderflow is returned by Decref for an unreferenced frame.
	ErrRefCountUnderflow = &kernel.Error{Module: "pmm", Message: "reference count underflow", Fatal: true}

	// ErrRefCountOverflow is returned by Incref when the reference count
	// cannot be incremented any further.
	ErrRefCountOverflow = &kernel.Error{Module: "pmm", Message: "reference count overflow", Fatal: true}

	// ErrIncrefFreeFrame is returned by Incref for a frame that is still on
	// the free list. Only frames handed out by Alloc may gain references.
	ErrIncrefFreeFrame = &kernel.Error{Module: "pmm", Message: "attempt to reference a frame on the free list", Fatal: true}

	// ErrInvalidFrame is returned for frames outside the frame registry.
	ErrInvalidFrame = &kernel.Error{Module: "pmm", Message: "frame outside of the frame registry", Fatal: true}

	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = &kernel.Error{Module: "pmm", Message: "allocator already initialized", Fatal: true}

	// ErrCorruptedFreeList is returned by Check when the free list and the
	// frame registry disagree.
	ErrCorruptedFreeList = &kernel.Error{Module: "pmm", Message: "free list corrupted", Fatal: true}

	errInvalidFrameCount = &kernel.Error{Module: "pmm", Message: "frame count must be non-zero and fit both the backing memory and the KernBase window", Fatal: true}
)

// AllocFlag modifies the behavior of Alloc.
type AllocFlag uint8

const (
	// AllocZero requests the contents of the allocated frame to be cleared.
	AllocZero AllocFlag = 1 << iota
)

// PageInfo is the descriptor kept for each physical frame.
type PageInfo struct {
	// next links free frames together. It is only meaningful while the
	// frame is on the free list.
	next Frame

	onFreeList bool

	// refCount is the number of live page table entries pointing at this
	// frame.
	refCount uint16
}

// Allocator owns the frame registry and the free list. Frames on the free list
// always have a zero reference count; frames overlapping a reserved region are
// pinned with a reference count of one and never reach the free list.
//
// A frame handed out by Alloc has a zero reference count and is not on the free
// list until it is either mapped (Incref) or returned via Free.
type Allocator struct {
	lock sync.Spinlock

	memory *physmem.Memory

	// pages is the frame registry. Its length is fixed by Init.
	pages []PageInfo

	freeHead  Frame
	freeCount uint32
}

// Init sizes the frame registry for frameCount frames backed by memory. Frames
// that overlap any of the reserved regions are pinned; all other frames are
// added to the free list in ascending address order so that the lowest free
// frame is handed out first.
//
// Init must be called exactly once, before any other allocator method.
func (alloc *Allocator) Init(memory *physmem.Memory, frameCount uint32, reserved []mem.Region) *kernel.Error {
	if alloc.pages != nil {
		return ErrAlreadyInitialized
	}

	if frameCount == 0 || memory == nil || frameCount > memory.FrameCount() ||
		mem.Size(frameCount)<<mem.PageShift > mem.MaxPhysMem {
		return errInvalidFrameCount
	}

	alloc.memory = memory
	alloc.pages = make([]PageInfo, frameCount)
	alloc.freeHead = InvalidFrame
	alloc.freeCount = 0

	var (
		tail          = InvalidFrame
		reservedCount uint32
	)

	for frame := Frame(0); uint32(frame) < frameCount; frame++ {
		page := &alloc.pages[frame]
		page.next = InvalidFrame

		if isReserved(frame, reserved) {
			page.refCount = 1
			reservedCount++
			continue
		}

		page.onFreeList = true
		if tail == InvalidFrame {
			alloc.freeHead = frame
		} else {
			alloc.pages[tail].next = frame
		}
		tail = frame
		alloc.freeCount++
	}

	kfmt.Printf("[pmm] frame registry: %d frames, %d free, %d reserved\n", frameCount, alloc.freeCount, reservedCount)
	return nil
}

func isReserved(frame Frame, reserved []mem.Region) bool {
	frameAddr := uint64(frame.Address())
	for _, region := range reserved {
		if region.Overlaps(frameAddr) {
			return true
		}
	}

	return false
}

// Alloc removes the frame at the head of the free list and returns it. If
// flags contains AllocZero the frame contents are cleared. Alloc returns
// ErrOutOfMemory if no free frames are available.
//
// The returned frame has a zero reference count; callers that map it are
// responsible for incrementing it.
func (alloc *Allocator) Alloc(flags AllocFlag) (Frame, *kernel.Error) {
	alloc.lock.Acquire()
	frame := alloc.freeHead
	if !frame.Valid() {
		alloc.lock.Release()
		return InvalidFrame, ErrOutOfMemory
	}

	page := &alloc.pages[frame]
	alloc.freeHead = page.next
	alloc.freeCount--
	page.next = InvalidFrame
	page.onFreeList = false
	alloc.lock.Release()

	if flags&AllocZero != 0 {
		data, err := alloc.memory.Frame(frame.Address())
		if err != nil {
			_ = alloc.Free(frame)
			return InvalidFrame, err
		}
		physmem.Memset(data, 0)
	}

	return frame, nil
}

// Free returns frame to the head of the free list. The frame must not be
// referenced by any mapping and must not already be free.
func (alloc *Allocator) Free(frame Frame) *kernel.Error {
	page, err := alloc.pageInfo(frame)
	if err != nil {
		return err
	}

	switch {
	case page.refCount != 0:
		return ErrFreeReferencedFrame
	case page.onFreeList:
		return ErrDoubleFree
	}

	alloc.lock.Acquire()
	page.next = alloc.freeHead
	page.onFreeList = true
	alloc.freeHead = frame
	alloc.freeCount++
	alloc.lock.Release()

	return nil
}

// Incref records a new reference to frame.
func (alloc *Allocator) Incref(frame Frame) *kernel.Error {
	page, err := alloc.pageInfo(frame)
	if err != nil {
		return err
	}

	switch {
	case page.onFreeList:
		return ErrIncrefFreeFrame
	case page.refCount == math.MaxUint16:
		return ErrRefCountOverflow
	}

	page.refCount++
	return nil
}

// Decref drops a reference to frame and frees it once no references remain.
// This is the only path through which a mapped frame returns to the free list.
func (alloc *Allocator) Decref(frame Frame) *kernel.Error {
	page, err := alloc.pageInfo(frame)
	if err != nil {
		return err
	}

	if page.refCount == 0 {
		return ErrRefCountUnderflow
	}

	if page.refCount--; page.refCount == 0 {
		return alloc.Free(frame)
	}

	return nil
}

// Unref drops a reference taken by Incref without freeing the frame, leaving
// it in the state it had before the matching Incref. It is used to roll back
// a mapping that could not be completed.
func (alloc *Allocator) Unref(frame Frame) *kernel.Error {
	page, err := alloc.pageInfo(frame)
	if err != nil {
		return err
	}

	if page.refCount == 0 {
		return ErrRefCountUnderflow
	}

	page.refCount--
	return nil
}

// RefCount returns the number of references to frame.
func (alloc *Allocator) RefCount(frame Frame) (uint16, *kernel.Error) {
	page, err := alloc.pageInfo(frame)
	if err != nil {
		return 0, err
	}

	return page.refCount, nil
}

// IsFree returns true if frame is currently on the free list.
func (alloc *Allocator) IsFree(frame Frame) bool {
	page, err := alloc.pageInfo(frame)
	return err == nil && page.onFreeList
}

// FreeCount returns the length of the free list.
func (alloc *Allocator) FreeCount() uint32 {
	return alloc.freeCount
}

// FrameCount returns the number of frames in the frame registry.
func (alloc *Allocator) FrameCount() uint32 {
	return uint32(len(alloc.pages))
}

// Memory returns the physical memory managed by this allocator.
func (alloc *Allocator) Memory() *physmem.Memory {
	return alloc.memory
}

// FrameData returns a view of the contents of frame.
func (alloc *Allocator) FrameData(frame Frame) ([]byte, *kernel.Error) {
	if _, err := alloc.pageInfo(frame); err != nil {
		return nil, err
	}

	return alloc.memory.Frame(frame.Address())
}

// Check verifies that the free list and the frame registry agree: the list
// must be acyclic, contain every frame flagged as free exactly once, and every
// listed frame must be unreferenced.
func (alloc *Allocator) Check() *kernel.Error {
	var (
		seen   = make([]uint64, (len(alloc.pages)+63)>>6)
		listed uint32
	)

	for frame := alloc.freeHead; frame != InvalidFrame; frame = alloc.pages[frame].next {
		if uint64(frame) >= uint64(len(alloc.pages)) || listed == alloc.FrameCount() {
			return ErrCorruptedFreeList
		}

		block, mask := frame>>6, uint64(1)<<(frame&63)
		if seen[block]&mask != 0 {
			return ErrCorruptedFreeList
		}
		seen[block] |= mask

		if page := alloc.pages[frame]; !page.onFreeList || page.refCount != 0 {
			return ErrCorruptedFreeList
		}
		listed++
	}

	if listed != alloc.freeCount {
		return ErrCorruptedFreeList
	}

	for frame := range alloc.pages {
		if alloc.pages[frame].onFreeList && seen[frame>>6]&(uint64(1)<<(frame&63)) == 0 {
			return ErrCorruptedFreeList
		}
	}

	return nil
}

func (alloc *Allocator) pageInfo(frame Frame) (*PageInfo, *kernel.Error) {
	if uint64(frame) >= uint64(len(alloc.pages)) {
		return nil, ErrInvalidFrame
	}

	return &alloc.pages[frame], nil
}
