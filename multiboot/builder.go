package multiboot

import "encoding/binary"

// Builder assembles a multiboot2 info blob. It is used to hand a boot
// environment to the kernel when no boot loader is involved, e.g. when the
// kernel runs hosted.
type Builder struct {
	cmdLine string
	regions []MemoryMapEntry
}

// SetCmdLine sets the contents of the boot command line tag.
func (b *Builder) SetCmdLine(cmdLine string) *Builder {
	b.cmdLine = cmdLine
	return b
}

// AddMemRegion appends an entry to the memory map tag.
func (b *Builder) AddMemRegion(physAddr, length uint64, entryType MemoryEntryType) *Builder {
	b.regions = append(b.regions, MemoryMapEntry{PhysAddress: physAddr, Length: length, Type: entryType})
	return b
}

// Build returns the encoded info blob.
func (b *Builder) Build() []byte {
	data := make([]byte, infoHeaderSize)

	if b.cmdLine != "" {
		payload := append([]byte(b.cmdLine), 0)
		data = appendTag(data, tagBootCmdLine, payload)
	}

	if len(b.regions) != 0 {
		payload := make([]byte, mmapHeaderSize, mmapHeaderSize+len(b.regions)*mmapEntrySize)
		binary.LittleEndian.PutUint32(payload, mmapEntrySize)
		for _, region := range b.regions {
			var entry [mmapEntrySize]byte
			binary.LittleEndian.PutUint64(entry[0:], region.PhysAddress)
			binary.LittleEndian.PutUint64(entry[8:], region.Length)
			binary.LittleEndian.PutUint32(entry[16:], uint32(region.Type))
			payload = append(payload, entry[:]...)
		}
		data = appendTag(data, tagMemoryMap, payload)
	}

	data = appendTag(data, tagMbSectionEnd, nil)
	binary.LittleEndian.PutUint32(data, uint32(len(data)))
	return data
}

func appendTag(data []byte, tag tagType, payload []byte) []byte {
	var header [tagHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:], uint32(tag))
	binary.LittleEndian.PutUint32(header[4:], uint32(tagHeaderSize+len(payload)))

	data = append(data, header[:]...)
	data = append(data, payload...)
	for len(data)%8 != 0 {
		data = append(data, 0)
	}

	return data
}
