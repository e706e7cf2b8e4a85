//go:build !386

package cpu

import "os"

// Halt stops the hosted kernel. Without access to the HLT instruction the
// closest equivalent is terminating the process.
func Halt() {
	os.Exit(1)
}
