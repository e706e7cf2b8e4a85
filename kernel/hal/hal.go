// Package hal sets up the kernel's output devices.
package hal

import (
	"gophermm/kernel"
	"gophermm/kernel/driver/tty"
	"gophermm/kernel/driver/video/console"
	"gophermm/kernel/mem/physmem"
)

var (
	egaConsole = &console.Ega{}

	// ActiveTerminal points to the currently active terminal.
	ActiveTerminal = &tty.Vt{}
)

// InitTerminal provides a basic terminal to allow the kernel to emit some
// output. The terminal renders into the EGA text framebuffer inside the
// legacy I/O hole of memory.
func InitTerminal(memory *physmem.Memory) *kernel.Error {
	fb, err := memory.Frame(console.EgaFramebufferAddr)
	if err != nil {
		return err
	}

	if err = egaConsole.Init(console.EgaWidth, console.EgaHeight, fb); err != nil {
		return err
	}

	ActiveTerminal.AttachTo(egaConsole)
	ActiveTerminal.Clear()
	return nil
}
