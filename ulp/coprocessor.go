package ulp

// A Coprocessor is a low-power core that keeps running while the main processor sleeps. Word
// addresses are absolute, starting at RTCSlowMemBase.
type Coprocessor interface {
	// LoadBinary parses an image and copies it into RTC slow memory.
	LoadBinary(image []byte) error
	// EnableTimer turns the periodic re-run of the program on or off.
	EnableTimer(enabled bool)
	ReadWord(addr uint32) (uint32, error)
	WriteWord(addr, value uint32) error
	// Run starts the loaded program. It does not wait for the program to finish.
	Run() error
	// EnableWakeup lets the program wake the main processor when it finishes.
	EnableWakeup() error
	// Wakeup is closed when the program signals the main processor.
	Wakeup() <-chan struct{}
}
