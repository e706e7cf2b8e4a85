package vmm

import (
	"encoding/binary"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/pmm"
)

// pageTable is a view of a page directory or page table stored in a physical
// frame: mem.EntriesPerTable little-endian entries.
type pageTable struct {
	frame pmm.Frame
	data  []byte
}

func (t pageTable) entry(index uint32) PageTableEntry {
	return PageTableEntry(binary.LittleEndian.Uint32(t.data[index<<mem.PointerShift:]))
}

func (t pageTable) setEntry(index uint32, pte PageTableEntry) {
	binary.LittleEndian.PutUint32(t.data[index<<mem.PointerShift:], uint32(pte))
}

// EntryRef points to a single slot of a page table. It is returned by Walk and
// Lookup so that privileged callers can inspect or modify an entry in place.
type EntryRef struct {
	table pageTable
	index uint32
}

// Load returns the current contents of the referenced entry.
func (ref EntryRef) Load() PageTableEntry {
	return ref.table.entry(ref.index)
}

// Store overwrites the referenced entry. Callers that change a live mapping
// are responsible for invalidating the TLB entry of the affected address.
func (ref EntryRef) Store(pte PageTableEntry) {
	ref.table.setEntry(ref.index, pte)
}

// Address returns the physical address of the referenced slot.
func (ref EntryRef) Address() mem.PhysAddr {
	return ref.table.frame.Address() + mem.PhysAddr(ref.index<<mem.PointerShift)
}
