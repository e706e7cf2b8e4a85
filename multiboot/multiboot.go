// Package multiboot parses the multiboot2 information blob that the boot
// loader hands over to the kernel.
package multiboot

import (
	"encoding/binary"
	"gophermm/kernel"
	"strings"
)

var (
	infoData  []byte
	cmdLineKV map[string]string

	errInfoTruncated = &kernel.Error{Module: "multiboot", Message: "multiboot info data is truncated", Fatal: true}
	errTagTruncated  = &kernel.Error{Module: "multiboot", Message: "multiboot tag extends past the end of the info data", Fatal: true}
)

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
)

const (
	// infoHeaderSize is the size of the fixed header (total size and a
	// reserved dword) that precedes the first tag.
	infoHeaderSize = 8

	// tagHeaderSize is the size of the type and size fields of each tag.
	tagHeaderSize = 8

	// mmapHeaderSize is the size of the entry size and entry version fields
	// that precede the memory map entries.
	mmapHeaderSize = 8

	// mmapEntrySize is the size of a version 0 memory map entry.
	mmapEntrySize = 24
)

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown will be mapped to MemReserved.
	memUnknown
)

// MemRegionVisitor defies a visitor function that gets invoked by VisitMemRegions
// for each memory region provided by the boot loader. The visitor must return true
// to continue or false to abort the scan.
type MemRegionVisitor func(*MemoryMapEntry) bool

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// SetInfo validates the multiboot info blob and makes it the source for all
// other functions exported by this package. It must be invoked before any of
// them.
func SetInfo(data []byte) *kernel.Error {
	if len(data) < infoHeaderSize {
		return errInfoTruncated
	}

	totalSize := binary.LittleEndian.Uint32(data)
	if totalSize < infoHeaderSize || uint64(totalSize) > uint64(len(data)) {
		return errInfoTruncated
	}
	data = data[:totalSize]

	// Make sure that every tag, including the end tag, is in bounds so
	// that the lookups below need no further checks.
	for offset := uint64(infoHeaderSize); ; {
		if offset+tagHeaderSize > uint64(len(data)) {
			return errTagTruncated
		}

		tag := tagType(binary.LittleEndian.Uint32(data[offset:]))
		size := uint64(binary.LittleEndian.Uint32(data[offset+4:]))
		if size < tagHeaderSize || offset+size > uint64(len(data)) {
			return errTagTruncated
		}

		if tag == tagMbSectionEnd {
			break
		}

		// Tags are aligned at 8-byte aligned addresses
		offset += (size + 7) &^ 7
	}

	infoData = data
	cmdLineKV = nil
	return nil
}

// VisitMemRegions will invoke the supplied visitor for each memory region that
// is defined by the multiboot info data that we received from the bootloader.
func VisitMemRegions(visitor MemRegionVisitor) {
	payload := findTagByType(tagMemoryMap)
	if len(payload) < mmapHeaderSize {
		return
	}

	entrySize := int(binary.LittleEndian.Uint32(payload))
	if entrySize < mmapEntrySize {
		return
	}

	var entry MemoryMapEntry
	for cur := payload[mmapHeaderSize:]; len(cur) >= entrySize; cur = cur[entrySize:] {
		entry.PhysAddress = binary.LittleEndian.Uint64(cur)
		entry.Length = binary.LittleEndian.Uint64(cur[8:])
		entry.Type = MemoryEntryType(binary.LittleEndian.Uint32(cur[16:]))

		// Mark unknown entry types as reserved
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return
		}
	}
}

// GetBootCmdLine returns the command line key-value pairs passed to the
// kernel.
func GetBootCmdLine() map[string]string {
	if cmdLineKV != nil {
		return cmdLineKV
	}

	cmdLineKV = make(map[string]string)

	if payload := findTagByType(tagBootCmdLine); len(payload) != 0 {
		// The command line is a C-style NULL-terminated string
		if end := strings.IndexByte(string(payload), 0); end != -1 {
			payload = payload[:end]
		}

		pairs := strings.Fields(string(payload))
		for _, pair := range pairs {
			kv := strings.Split(pair, "=")
			switch len(kv) {
			case 2: // foo=bar
				cmdLineKV[kv[0]] = kv[1]
			case 1: // nofoo
				cmdLineKV[kv[0]] = kv[0]
			}
		}
	}

	return cmdLineKV
}

// findTagByType scans the multiboot info data looking for the first tag of
// the specified type and returns its contents excluding the tag header. It
// returns nil if the tag is not present.
func findTagByType(tagType tagType) []byte {
	if infoData == nil {
		return nil
	}

	for offset := uint32(infoHeaderSize); ; {
		curTag := binary.LittleEndian.Uint32(infoData[offset:])
		size := binary.LittleEndian.Uint32(infoData[offset+4:])

		switch curTag {
		case uint32(tagMbSectionEnd):
			return nil
		case uint32(tagType):
			return infoData[offset+tagHeaderSize : offset+size]
		}

		offset += (size + 7) &^ 7
	}
}
