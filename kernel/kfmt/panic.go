package kfmt

import (
	"gophermm/kernel"
	"gophermm/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt
)

// runtimeModule is reported for panics that do not carry a *kernel.Error.
const runtimeModule = "rt"

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. It is the single place where a fatal memory-management error turns
// into a system halt; lower layers only ever return *kernel.Error values.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		err = &kernel.Error{Module: runtimeModule, Message: t, Fatal: true}
	case error:
		err = &kernel.Error{Module: runtimeModule, Message: t.Error(), Fatal: true}
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
