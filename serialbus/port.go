package serialbus

import (
	"io"

	"github.com/tarm/serial"
)

// Port is the minimal transport a Channel needs: a byte stream it can write
// commands to and read responses from. Real instances wrap
// github.com/tarm/serial.Port; tests use serialtest.Playback instead.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenPort opens a real RS-232 port at the given OS device path and baud
// rate, 8 data bits / no parity / 1 stop bit, matching every link in this
// instrument's protocol table.
func OpenPort(name string, baud int) (Port, error) {
	return serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 0,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
}
