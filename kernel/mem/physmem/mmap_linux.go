package physmem

import "golang.org/x/sys/unix"

// mapAnonymous reserves size bytes of zero-filled private memory from the
// host kernel.
func mapAnonymous(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	return data, unix.Munmap, nil
}
