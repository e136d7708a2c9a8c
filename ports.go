package serialmon

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// ListPorts returns the serial ports present on the system, sorted by name.
// The list may be empty on machines with no serial hardware.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
