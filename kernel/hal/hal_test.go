package hal

import (
	"gophermm/kernel/driver/video/console"
	"gophermm/kernel/mem"
	"gophermm/kernel/mem/physmem"
	"testing"
)

func TestInitTerminal(t *testing.T) {
	t.Run("framebuffer in memory", func(t *testing.T) {
		memory, err := physmem.New(mem.Mb)
		if err != nil {
			t.Fatal(err)
		}

		if err = InitTerminal(memory); err != nil {
			t.Fatal(err)
		}

		if w, h := ActiveTerminal.Dimensions(); w != console.EgaWidth || h != console.EgaHeight {
			t.Fatalf("expected terminal dimensions to be %dx%d; got %dx%d", console.EgaWidth, console.EgaHeight, w, h)
		}

		if _, err := ActiveTerminal.Write([]byte("ok")); err != nil {
			t.Fatal(err)
		}

		fb, _ := memory.Frame(console.EgaFramebufferAddr)
		if fb[0] != 'o' || fb[2] != 'k' {
			t.Fatalf("expected terminal output to reach the framebuffer; got %v", fb[:4])
		}
	})

	t.Run("framebuffer outside memory", func(t *testing.T) {
		memory, err := physmem.New(64 * mem.Kb)
		if err != nil {
			t.Fatal(err)
		}

		if err = InitTerminal(memory); err != physmem.ErrOutOfRange {
			t.Fatalf("expected error %v; got %v", physmem.ErrOutOfRange, err)
		}
	})
}
