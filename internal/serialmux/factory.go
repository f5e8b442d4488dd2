package serialmux

import (
	"fmt"
)

// NewRealSerialMux creates a SerialMux backed by the hardware serial port at
// path using the provided options.
func NewRealSerialMux(path string, opts PortOptions, initCommands ...string) (*SerialMux[SerialPorter], error) {
	return OpenSerialMux(RealPortFactory{}, path, opts, initCommands...)
}

// OpenSerialMux opens path through factory and wraps it in a SerialMux.
func OpenSerialMux(factory SerialPortFactory, path string, opts PortOptions, initCommands ...string) (*SerialMux[SerialPorter], error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	port, err := factory.Open(path, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewSerialMux[SerialPorter](port, initCommands...), nil
}
