package avr

import (
	"fmt"
	"log"
	"time"

	"go.bug.st/serial"
)

const readTimeout = 100 * time.Millisecond

// SerialPort is the subset of go.bug.st/serial.Port the engine uses,
// declared as an interface so tests can substitute a scripted port.
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// SerialPortFactory opens the underlying serial channel.
type SerialPortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// defaultSerialPortFactory opens real serial ports.
func defaultSerialPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// connection owns the serial handle and the raw-byte backlog. It is
// unconnected at construction and lazy-opens on the first command;
// an open failure leaves it unconnected so the next command retries.
type connection struct {
	path        string
	baudRate    int
	settleDelay time.Duration
	factory     SerialPortFactory

	port SerialPort
	buf  responseBuffer
}

func (c *connection) ensureOpen() error {
	if c.port != nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: c.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := c.factory(c.path, mode)
	if err != nil {
		log.Printf("[slink] failed to connect to bridge: %v", err)
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("%w: set read timeout: %v", ErrConnectFailed, err)
	}
	c.port = port
	log.Printf("[slink] connected to bridge on %s at %d baud", c.path, c.baudRate)

	// The bridge microcontroller resets when the port opens; commands
	// sent before it finishes initializing are lost.
	time.Sleep(c.settleDelay)
	return nil
}

func (c *connection) write(line string) error {
	if _, err := c.port.Write([]byte(line)); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// readAvailable drains whatever the device has sent, reading until the
// short port timeout yields an empty read. May return nothing.
func (c *connection) readAvailable() []byte {
	var out []byte
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil || n == 0 {
			return out
		}
	}
}

func (c *connection) close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}
