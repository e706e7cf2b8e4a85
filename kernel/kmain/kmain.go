// Package kmain contains the kernel's boot sequence for the memory manager.
package kmain

import (
	"gophermm/kernel"
	"gophermm/kernel/cpu"
	"gophermm/kernel/hal"
	"gophermm/kernel/kfmt"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/physmem"
	"gophermm/kernel/mem/pmm"
	"gophermm/kernel/mem/vmm"
	"gophermm/multiboot"
	"io"
	"sort"
	"strconv"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	// newMemoryFn allocates the memory that backs physical addresses.
	newMemoryFn = physmem.NewMapped

	// newMMUFn returns the MMU backend that loads page directories.
	newMMUFn = func() vmm.MMU { return new(cpu.SoftMMU) }

	errNoUsableMemory = &kernel.Error{Module: "kmain", Message: "boot loader memory map reports no usable memory", Fatal: true}
)

// Kernel groups the memory management state built by Kmain.
type Kernel struct {
	// Memory backs all physical addresses below FrameCount * PageSize.
	Memory *physmem.Memory

	// Allocator owns every physical frame.
	Allocator *pmm.Allocator

	// VMM builds and mutates address spaces.
	VMM *vmm.Manager

	// PDT is the kernel address space; it is active when Kmain returns.
	PDT vmm.PageDirectoryTable

	// KernelStack is the physical address of the kernel stack mapped below
	// KStackTop.
	KernelStack mem.PhysAddr
}

// Kmain initializes physical and virtual memory management from the
// multiboot info blob handed over by the boot loader and the physical bounds
// of the loaded kernel image. Command line options:
//
//	mem=<KiB>  limit usable physical memory
//
// Any error is fatal and is passed to kfmt.Panic; Kmain returns nil in that
// case.
func Kmain(multibootInfo []byte, kernelStart, kernelEnd uintptr) *Kernel {
	k, err := boot(multibootInfo, kernelStart, kernelEnd)
	if err != nil {
		panicFn(err)
		return nil
	}

	return k
}

func boot(multibootInfo []byte, kernelStart, kernelEnd uintptr) (*Kernel, error) {
	if err := multiboot.SetInfo(multibootInfo); err != nil {
		return nil, err
	}

	frameCount, reserved := detectMemory()
	if frameCount == 0 {
		return nil, errNoUsableMemory
	}

	memory, err := newMemoryFn(mem.Size(frameCount) << mem.PageShift)
	if err != nil {
		return nil, err
	}

	attachTerminal(memory)
	kfmt.Printf("[kmain] physical memory: %d KiB available, %d frames\n", uint64(frameCount)<<mem.PageShift>>10, frameCount)
	kfmt.Printf("[kmain] kernel image: 0x%08x-0x%08x\n", kernelStart, kernelEnd)

	k := &Kernel{Memory: memory, Allocator: new(pmm.Allocator)}

	// Boot allocations start past the kernel image but never inside the
	// legacy region below ExtPhysMem.
	bootStart := mem.PhysAddr(kernelEnd)
	if uint64(kernelEnd) < uint64(mem.ExtPhysMem) || uint64(kernelEnd) > 1<<32-1 {
		bootStart = mem.ExtPhysMem
	}

	bootAlloc, kErr := pmm.NewBootMemAllocator(bootStart, pmm.Frame(frameCount).Address())
	if kErr != nil {
		return nil, kErr
	}

	pdtAddr, kErr := bootAlloc.Alloc(mem.PageSize)
	if kErr != nil {
		return nil, kErr
	}

	if k.KernelStack, kErr = bootAlloc.Alloc(mem.KStkSize); kErr != nil {
		return nil, kErr
	}

	reserved = append(pmm.BootReservations(bootAlloc.Seal()), reserved...)
	if kErr = k.Allocator.Init(memory, frameCount, reserved); kErr != nil {
		return nil, kErr
	}

	if kErr = k.Allocator.Check(); kErr != nil {
		return nil, kErr
	}

	pdtFrame, kErr := k.Allocator.FrameFromAddress(pdtAddr)
	if kErr != nil {
		return nil, kErr
	}

	k.VMM = vmm.NewManager(k.Allocator, newMMUFn())
	if k.PDT, kErr = k.VMM.SetupKernelPDT(pdtFrame, k.KernelStack); kErr != nil {
		return nil, kErr
	}

	if kErr = k.VMM.CheckKernelPDT(k.PDT, k.KernelStack); kErr != nil {
		return nil, kErr
	}

	k.VMM.Activate(k.PDT)

	if kErr = k.Allocator.Check(); kErr != nil {
		return nil, kErr
	}

	kfmt.Printf("[kmain] memory manager initialized: %d/%d frames free\n", k.Allocator.FreeCount(), k.Allocator.FrameCount())
	return k, nil
}

// detectMemory returns the number of frames to manage and the regions that
// must not be handed out: those the boot loader reports as unusable and any
// range below the top of memory that the memory map does not list at all. The
// frame count covers memory up to the end of the highest available region,
// capped by the mem= command line option and by the size of the KernBase
// window.
func detectMemory() (uint32, []mem.Region) {
	var (
		top      uint64
		listed   []mem.Region
		reserved []mem.Region
	)

	multiboot.VisitMemRegions(func(entry *multiboot.MemoryMapEntry) bool {
		kfmt.Printf("[kmain] memory map: 0x%010x - 0x%010x (%s)\n", entry.PhysAddress, entry.PhysAddress+entry.Length, entry.Type)
		listed = append(listed, mem.Region{Start: entry.PhysAddress, Length: entry.Length})

		if entry.Type != multiboot.MemAvailable {
			reserved = append(reserved, mem.Region{Start: entry.PhysAddress, Length: entry.Length})
			return true
		}

		if end := entry.PhysAddress + entry.Length; end > top {
			top = end
		}
		return true
	})

	if value, ok := multiboot.GetBootCmdLine()["mem"]; ok {
		limitKiB, err := strconv.ParseUint(value, 10, 32)
		switch {
		case err != nil:
			kfmt.Printf("[kmain] ignoring invalid mem option %q\n", value)
		case limitKiB<<10 < top:
			kfmt.Printf("[kmain] mem option limits physical memory to %d KiB\n", limitKiB)
			top = limitKiB << 10
		}
	}

	if top > uint64(mem.MaxPhysMem) {
		top = uint64(mem.MaxPhysMem)
	}

	for _, hole := range unlistedRegions(listed, top) {
		kfmt.Printf("[kmain] memory map: 0x%010x - 0x%010x (unlisted)\n", hole.Start, hole.End())
		reserved = append(reserved, hole)
	}

	return uint32(top >> mem.PageShift), reserved
}

// unlistedRegions returns the ranges in [0, top) that are not covered by any
// of the listed regions.
func unlistedRegions(listed []mem.Region, top uint64) []mem.Region {
	sort.Slice(listed, func(i, j int) bool { return listed[i].Start < listed[j].Start })

	var (
		holes  []mem.Region
		cursor uint64
	)

	for _, region := range listed {
		if cursor >= top {
			break
		}

		if region.Start > cursor {
			end := region.Start
			if end > top {
				end = top
			}
			holes = append(holes, mem.Region{Start: cursor, Length: end - cursor})
		}

		if region.End() > cursor {
			cursor = region.End()
		}
	}

	if cursor < top {
		holes = append(holes, mem.Region{Start: cursor, Length: top - cursor})
	}

	return holes
}

// attachTerminal routes kernel output to the console in addition to any
// sink that is already attached.
func attachTerminal(memory *physmem.Memory) {
	if err := hal.InitTerminal(memory); err != nil {
		kfmt.Printf("[kmain] no console available: %s\n", err.Error())
		return
	}

	if sink := kfmt.GetOutputSink(); sink != nil && sink != io.Writer(hal.ActiveTerminal) {
		kfmt.SetOutputSink(io.MultiWriter(sink, hal.ActiveTerminal))
		return
	}

	kfmt.SetOutputSink(hal.ActiveTerminal)
}
