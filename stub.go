package main

import (
	"gophermm/kernel/kfmt"
	"gophermm/kernel/kmain"
	"gophermm/kernel/mem"
	"gophermm/multiboot"
	"os"
)

// Physical bounds of the kernel image as laid out by the boot loader.
const (
	kernelStart = uintptr(mem.ExtPhysMem)
	kernelEnd   = kernelStart + uintptr(mem.Mb)
)

// main boots the memory manager on a PC-like memory map with 32 MiB of RAM
// and echoes the kernel's console output to stdout. Arguments are passed to
// the kernel as its command line, e.g. "mem=16384".
func main() {
	var cmdLine string
	if len(os.Args) > 1 {
		cmdLine = os.Args[1]
	}

	info := new(multiboot.Builder).
		SetCmdLine(cmdLine).
		AddMemRegion(0, 0x9fc00, multiboot.MemAvailable).
		AddMemRegion(0x9fc00, 0x400, multiboot.MemReserved).
		AddMemRegion(0xf0000, 0x10000, multiboot.MemReserved).
		AddMemRegion(uint64(mem.ExtPhysMem), uint64(32*mem.Mb-mem.Size(mem.ExtPhysMem)), multiboot.MemAvailable).
		Build()

	kfmt.SetOutputSink(&kfmt.PrefixWriter{Sink: os.Stdout, Prefix: []byte("kernel: ")})

	k := kmain.Kmain(info, kernelStart, kernelEnd)
	if k == nil {
		os.Exit(1)
	}

	// The console renders into the backing memory, so kernel output must
	// not be routed through kfmt once it is released.
	if err := k.Memory.Close(); err != nil {
		kfmt.Fprintf(os.Stderr, "releasing physical memory: %s\n", err.Error())
		os.Exit(1)
	}
}
