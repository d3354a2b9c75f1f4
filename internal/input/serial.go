package input

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"go.bug.st/serial"
)

// DefaultBaud matches the keypad controller's UART setting.
const DefaultBaud = 115200

// OpenSerial opens a serial keypad at the given baud rate. The returned port
// can be passed to Source.Feed and closed to stop it.
func OpenSerial(name string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("open serial %s at %d baud", name, baud)))
	}
	return p, nil
}

// SerialPorts lists the serial devices present on the system.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("list serial ports"))
	}
	return ports, nil
}
