package mem

// Virtual memory layout of the kernel:
//
//	4 Gig -------->  +------------------------------+
//	                 |  remapped physical memory    |  RW/--
//	KernBase,  ----> +------------------------------+ 0xf0000000
//	KStackTop        |  kernel stack (KStkSize)     |  RW/--
//	                 |  invalid memory (guard)      |  --/--
//	MMIOLim ------>  +------------------------------+ 0xefc00000
//	                 |  memory-mapped I/O           |  RW/--
//	ULim, MMIOBase > +------------------------------+ 0xef800000
//	                 |  page table view (UVPT)      |  R-/R-
//	UVPT      ---->  +------------------------------+ 0xef400000
//	                 |  read-only pages             |  R-/R-
//	UPages    ---->  +------------------------------+ 0xef000000
//	                 |  read-only environments      |  R-/R-
//	UTop, UEnvs -->  +------------------------------+ 0xeec00000
//	                 |  user memory                 |  RW/RW
//	0 ------------>  +------------------------------+
const (
	// KernBase is the virtual address where all of physical memory is
	// mapped in the kernel's address space.
	KernBase = VirtAddr(0xf0000000)

	// KStackTop is the top of the kernel stack.
	KStackTop = KernBase

	// KStkSize is the size of the kernel stack.
	KStkSize = 8 * PageSize

	// KStkGap is the size of the unmapped guard region below the stack.
	KStkGap = 8 * PageSize

	// MMIOLim is the end of the memory-mapped I/O region.
	MMIOLim = KStackTop - VirtAddr(PTSize)

	// MMIOBase is the start of the memory-mapped I/O region.
	MMIOBase = MMIOLim - VirtAddr(PTSize)

	// ULim is the boundary between user-accessible and kernel-only
	// virtual addresses.
	ULim = MMIOBase

	// UVPT is the user read-only virtual page table view.
	UVPT = ULim - VirtAddr(PTSize)

	// UPages is the read-only copy of the frame registry.
	UPages = UVPT - VirtAddr(PTSize)

	// UEnvs is the read-only copy of the environment table.
	UEnvs = UPages - VirtAddr(PTSize)

	// UTop is the top of user-writable memory.
	UTop = UEnvs

	// IOPhysMem is the start of the legacy I/O hole (VGA, BIOS and option ROMs).
	IOPhysMem = PhysAddr(0x0a0000)

	// ExtPhysMem is the start of extended memory, where the kernel is loaded.
	ExtPhysMem = PhysAddr(0x100000)

	// MaxPhysMem is the largest amount of physical memory that can be
	// remapped at KernBase.
	MaxPhysMem = Size(1<<32) - Size(KernBase)
)
