package console

import (
	"encoding/binary"
	"gophermm/kernel"
)

const (
	clearColor = Black
	clearChar  = byte(' ')

	// EgaFramebufferAddr is the physical address of the EGA text-mode
	// framebuffer inside the legacy I/O hole.
	EgaFramebufferAddr = 0xb8000

	// EgaWidth and EgaHeight are the dimensions of the default text mode.
	EgaWidth, EgaHeight = 80, 25
)

var (
	errFramebufferTooSmall = &kernel.Error{Module: "console", Message: "framebuffer too small for the requested dimensions"}
)

// Ega implements an EGA-compatible text console. Each character cell is a
// little-endian uint16 holding the character in the low byte and its color
// attribute in the high byte. The framebuffer is normally a view of the
// physical memory at EgaFramebufferAddr.
type Ega struct {
	width  uint16
	height uint16

	fb []byte
}

// Init sets up the console to use fb as its framebuffer.
func (cons *Ega) Init(width, height uint16, fb []byte) *kernel.Error {
	if len(fb) < int(width)*int(height)*2 {
		return errFramebufferTooSmall
	}

	cons.width = width
	cons.height = height
	cons.fb = fb[:int(width)*int(height)*2]
	return nil
}

func (cons *Ega) cell(offset uint16) uint16 {
	return binary.LittleEndian.Uint16(cons.fb[int(offset)<<1:])
}

func (cons *Ega) setCell(offset, value uint16) {
	binary.LittleEndian.PutUint16(cons.fb[int(offset)<<1:], value)
}

// Clear clears the specified rectangular region
func (cons *Ega) Clear(x, y, width, height uint16) {
	var (
		attr                 = uint16((clearColor << 4) | clearColor)
		clr                  = attr | uint16(clearChar)
		rowOffset, colOffset uint16
	)

	// clip rectangle
	if x >= cons.width {
		x = cons.width
	}
	if y >= cons.height {
		y = cons.height
	}

	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	rowOffset = (y * cons.width) + x
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.setCell(colOffset, clr)
		}
	}
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Scroll a particular number of lines to the specified direction.
func (cons *Ega) Scroll(dir ScrollDir, lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := int(lines*cons.width) << 1

	switch dir {
	case Up:
		copy(cons.fb, cons.fb[offset:])
	case Down:
		copy(cons.fb[offset:], cons.fb)
	}
}

// Write a char to the specified location.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.setCell((y*cons.width)+x, (uint16(attr)<<8)|uint16(ch))
}
