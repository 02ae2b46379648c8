package printer

import (
	"fmt"
	"strings"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Printing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Printing:
		return "printing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeviceStatus is the flag byte the printer reports in reply to GET_STATE.
type DeviceStatus byte

const (
	OutOfPaper DeviceStatus = 1 << iota
	CoverOpen
	Overheated
	LowBattery
)

func (d DeviceStatus) Has(flag DeviceStatus) bool {
	return d&flag != 0
}

func (d DeviceStatus) String() string {
	if d == 0 {
		return "ok"
	}
	var parts []string
	for _, f := range []struct {
		flag DeviceStatus
		name string
	}{
		{OutOfPaper, "out of paper"},
		{CoverOpen, "cover open"},
		{Overheated, "overheated"},
		{LowBattery, "low battery"},
	} {
		if d.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("status 0x%02x", byte(d))
	}
	return strings.Join(parts, ", ")
}
