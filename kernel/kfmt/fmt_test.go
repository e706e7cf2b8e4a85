package kfmt

import (
	"bytes"
	"testing"
)

func TestPrintfToSink(t *testing.T) {
	defer SetOutputSink(nil)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if GetOutputSink() != &buf {
		t.Fatal("expected GetOutputSink to return the attached sink")
	}

	Printf("[%s] frame %d at 0x%08x", "pmm", 3, 0x3000)

	if exp, got := "[pmm] frame 3 at 0x00003000", buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrintfEarlyBuffer(t *testing.T) {
	defer func() {
		SetOutputSink(nil)
		earlyPrintBuffer = ringBuffer{}
	}()

	SetOutputSink(nil)
	earlyPrintBuffer = ringBuffer{}

	Printf("[kmain] %s\n", "booting")
	Fprintf(nil, "[kmain] %d frames\n", 8192)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp, got := "[kmain] booting\n[kmain] 8192 frames\n", buf.String(); got != exp {
		t.Fatalf("expected early output to be replayed as:\n%q\ngot:\n%q", exp, got)
	}

	// The buffer should now be drained
	buf.Reset()
	SetOutputSink(&buf)
	if got := buf.Len(); got != 0 {
		t.Fatalf("expected early buffer to be drained; got %d bytes", got)
	}
}
