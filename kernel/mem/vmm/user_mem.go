package vmm

import (
	"gophermm/kernel"
	"gophermm/kernel/kfmt"
	"gophermm/kernel/mem"
)

var (
	// ErrUserMemFault is returned when a user-supplied memory range is not
	// accessible with the requested permissions.
	ErrUserMemFault = &kernel.Error{Module: "vmm", Message: "user memory access fault"}
)

// Env is the execution context whose memory is validated by UserMemAssert.
type Env interface {
	// ID returns the identifier of the environment.
	ID() uint32

	// PageDirectory returns the address space of the environment.
	PageDirectory() PageDirectoryTable

	// Destroy terminates the environment.
	Destroy()
}

// UserMemCheck checks that every page in [virtAddr, virtAddr+length) lies
// below ULim and is mapped in pdt with at least the flags in flags plus
// FlagPresent.
//
// On failure it returns ErrUserMemFault together with the first offending
// address: virtAddr itself if the first page fails, the start of the failing
// page otherwise. UserMemCheck never allocates or modifies any table.
func (m *Manager) UserMemCheck(pdt PageDirectoryTable, virtAddr mem.VirtAddr, length uint32, flags PageTableEntryFlag) (mem.VirtAddr, *kernel.Error) {
	if length == 0 {
		return 0, nil
	}

	var (
		pageSize = uint64(mem.PageSize)
		start    = uint64(virtAddr.RoundDown())
		end      = (uint64(virtAddr) + uint64(length) + pageSize - 1) &^ (pageSize - 1)
	)

	flags |= FlagPresent
	for page := start; page < end; page += pageSize {
		faultAddr := mem.VirtAddr(page)
		if page < uint64(virtAddr) {
			faultAddr = virtAddr
		}

		// Any range that wraps around the end of the address space
		// crosses ULim first.
		if page >= uint64(mem.ULim) {
			return faultAddr, ErrUserMemFault
		}

		entry, err := m.Walk(pdt, mem.VirtAddr(page), false)
		switch {
		case err != nil && err.Fatal:
			return faultAddr, err
		case err != nil, !entry.Load().HasFlags(flags):
			return faultAddr, ErrUserMemFault
		}
	}

	return 0, nil
}

// UserMemAssert runs UserMemCheck against the address space of env. If the
// check fails, env is destroyed and the error is returned so that the caller
// can abandon any work it was doing on behalf of env. The rest of the system
// is unaffected.
func (m *Manager) UserMemAssert(env Env, virtAddr mem.VirtAddr, length uint32, flags PageTableEntryFlag) *kernel.Error {
	faultAddr, err := m.UserMemCheck(env.PageDirectory(), virtAddr, length, flags)
	if err == nil {
		return nil
	}

	if err == ErrUserMemFault {
		kfmt.Printf("[%08x] user_mem_check assertion failure for va %08x\n", env.ID(), uint32(faultAddr))
		env.Destroy()
	}

	return err
}
