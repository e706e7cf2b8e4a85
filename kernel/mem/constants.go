package mem

const (
	// PointerShift is equal to log2(size of a page table entry). Each page
	// directory and page table holds (PageSize >> PointerShift) entries.
	PointerShift = 2

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// EntriesPerTable is the number of entries in a page directory or a
	// page table.
	EntriesPerTable = 1 << (PageShift - PointerShift)

	// PTShift is equal to log2(PTSize).
	PTShift = 22

	// PTSize is the number of bytes mapped by a single page directory entry.
	PTSize = Size(1 << PTShift)
)
