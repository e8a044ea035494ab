// Package ulp drives the ultra-low-power co-processor: it loads a program image into RTC slow
// memory, hands the program its blink count and puts the main processor to sleep.
package ulp

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

const (
	// RTCSlowMemBase is the address of the first byte of RTC slow memory.
	RTCSlowMemBase uint32 = 0x5000_0000
	// RTCSlowMemSize is the amount of RTC slow memory available to programs.
	RTCSlowMemSize = 8 * 1024

	// DefaultBlinkCycles is the cycles word compiled into the blink program.
	DefaultBlinkCycles uint32 = 10
	// DefaultBlinkPeriod is one full on/off cycle of the blink program.
	DefaultBlinkPeriod = 500 * time.Millisecond

	headerSize = 12
)

var programMagic = []byte{'u', 'l', 'p', 0}

// opBlink is the only instruction the emulator understands. Its operands are the address of the
// cycles word and the blink period in milliseconds, both little-endian uint32.
var opBlink = []byte{'B', 'L', 'N', 'K'}

// ErrBadImage is returned for images without a valid header.
var ErrBadImage = errors.New("invalid ulp program image")

// Program is a loadable co-processor image. On disk an image is a 12 byte header (magic "ulp\0",
// then little-endian uint16 text offset, text size, data size and bss size) followed by the text
// and data sections.
type Program struct {
	Text    []byte
	Data    []byte
	BSSSize uint16
}

// ParseProgram decodes an image.
func ParseProgram(image []byte) (*Program, error) {
	if len(image) < headerSize || !bytes.Equal(image[:4], programMagic) {
		return nil, ErrBadImage
	}
	textOffset := int(binary.LittleEndian.Uint16(image[4:]))
	textSize := int(binary.LittleEndian.Uint16(image[6:]))
	dataSize := int(binary.LittleEndian.Uint16(image[8:]))
	bssSize := binary.LittleEndian.Uint16(image[10:])

	if textOffset < headerSize || textOffset+textSize+dataSize > len(image) {
		return nil, errors.Wrapf(ErrBadImage, "sections overrun image of %d bytes", len(image))
	}
	p := &Program{
		Text:    append([]byte(nil), image[textOffset:textOffset+textSize]...),
		Data:    append([]byte(nil), image[textOffset+textSize:textOffset+textSize+dataSize]...),
		BSSSize: bssSize,
	}
	if p.LoadSize() > RTCSlowMemSize {
		return nil, errors.Errorf("program needs %d bytes, RTC slow memory has %d", p.LoadSize(), RTCSlowMemSize)
	}
	return p, nil
}

// Bytes encodes the program as an image.
func (p *Program) Bytes() []byte {
	out := make([]byte, headerSize, headerSize+len(p.Text)+len(p.Data))
	copy(out, programMagic)
	binary.LittleEndian.PutUint16(out[4:], headerSize)
	binary.LittleEndian.PutUint16(out[6:], uint16(len(p.Text)))
	binary.LittleEndian.PutUint16(out[8:], uint16(len(p.Data)))
	binary.LittleEndian.PutUint16(out[10:], p.BSSSize)
	out = append(out, p.Text...)
	return append(out, p.Data...)
}

// LoadSize is the number of bytes of RTC slow memory the program occupies once loaded.
func (p *Program) LoadSize() int {
	return len(p.Text) + len(p.Data) + int(p.BSSSize)
}

// BlinkProgram builds the LED blink program with `cycles` as its default count. The count lives
// in the first word of the data section, see BlinkCyclesAddr.
func BlinkProgram(cycles uint32, period time.Duration) *Program {
	text := make([]byte, 12)
	copy(text, opBlink)
	binary.LittleEndian.PutUint32(text[4:], BlinkCyclesAddr)
	binary.LittleEndian.PutUint32(text[8:], uint32(period.Milliseconds()))

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, cycles)
	return &Program{Text: text, Data: data}
}

// BlinkCyclesAddr is the address of the blink program's cycles word once loaded.
const BlinkCyclesAddr = RTCSlowMemBase + 12

// decodeBlink reads the blink instruction at the start of text.
func decodeBlink(text []byte) (cyclesAddr uint32, period time.Duration, err error) {
	if len(text) < 12 || !bytes.Equal(text[:4], opBlink) {
		return 0, 0, errors.New("loaded program does not start with a blink instruction")
	}
	cyclesAddr = binary.LittleEndian.Uint32(text[4:])
	period = time.Duration(binary.LittleEndian.Uint32(text[8:])) * time.Millisecond
	return cyclesAddr, period, nil
}
