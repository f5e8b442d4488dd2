package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_NormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, opts)
	assert.Equal(t, "115200 8N1", PortOptions{}.String())
}

func TestPortOptions_NormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
			assert.Contains(t, tt.opts.String(), "invalid")
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, Parity: "even", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 57600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
}

func TestPortOptions_Equal(t *testing.T) {
	assert.True(t, PortOptions{}.Equal(PortOptions{BaudRate: 115200, Parity: "none"}))
	assert.False(t, PortOptions{}.Equal(PortOptions{BaudRate: 9600}))
	assert.False(t, PortOptions{DataBits: 2}.Equal(PortOptions{DataBits: 2}))
}

func TestOpenSerialMux(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	mux, err := OpenSerialMux(factory, "/dev/ttyIMU0", PortOptions{BaudRate: 230400}, "FMT=CSV")
	require.NoError(t, err)
	require.NotNil(t, mux)

	call := factory.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "/dev/ttyIMU0", call.Path)
	assert.Equal(t, PortOptions{BaudRate: 230400, DataBits: 8, StopBits: 1, Parity: "N"}, call.Opts)

	require.NoError(t, mux.Initialize())
	assert.Contains(t, string(port.GetWrittenData()), "FMT=CSV\n")
}

func TestOpenSerialMux_Errors(t *testing.T) {
	factory := NewMockSerialPortFactory(nil)
	factory.Error = assert.AnError

	_, err := OpenSerialMux(factory, "/dev/missing", PortOptions{})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = OpenSerialMux(factory, "/dev/missing", PortOptions{Parity: "?"})
	assert.ErrorContains(t, err, "unsupported parity")
	assert.Len(t, factory.OpenCalls, 1, "invalid options never reach the factory")
}

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"0.1,0.2,0.3", EventTypeSample},
		{"12.5,0.1,0.2,0.3", EventTypeSample},
		{`{"t":1.2,"ax":0.1,"ay":0,"az":0}`, EventTypeSample},
		{`{"rate_hz":10}`, EventTypeConfig},
		{"# IMU firmware v2", EventTypeComment},
		{"", EventTypeUnknown},
		{"hello", EventTypeUnknown},
		{"1,2", EventTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPayload(tt.payload), "payload %q", tt.payload)
	}
}
