// This file implements the framed command packets that can be written to
// cat printers (GB01/GB02/GT01/MX and similar).
package printer

import (
	"fmt"
)

// Frame bytes
const (
	headerByte1    = 0x51
	headerByte2    = 0x78
	transferType   = 0x00
	terminatorByte = 0xFF

	packetOverhead = 8
	maxPayloadSize = 0xFFFF
)

// Command identifiers understood by the printer firmware
type Command byte

const (
	Feed        Command = 0xA1
	Bitmap      Command = 0xA2
	GetState    Command = 0xA3
	SetDPI      Command = 0xA4
	Lattice     Command = 0xA6
	Energy      Command = 0xAF
	Speed       Command = 0xBD
	ApplyEnergy Command = 0xBE
)

func (c Command) String() string {
	switch c {
	case Feed:
		return "FEED"
	case Bitmap:
		return "BITMAP"
	case GetState:
		return "GET_STATE"
	case SetDPI:
		return "SET_DPI"
	case Lattice:
		return "LATTICE"
	case Energy:
		return "ENERGY"
	case Speed:
		return "SPEED"
	case ApplyEnergy:
		return "APPLY_ENERGY"
	}
	return fmt.Sprintf("Command(0x%02X)", byte(c))
}

// Wraps a payload as [0x51, 0x78, cmd, 0x00, len_lo, len_hi, payload..., crc, 0xFF].
// The checksum only covers the payload. Payloads longer than 65535 bytes
// can't be framed and panic.
func BuildPacket(cmd Command, payload []byte) []byte {
	if len(payload) > maxPayloadSize {
		panic(fmt.Sprintf("payload of %d bytes is too long for a packet", len(payload)))
	}
	packet := make([]byte, len(payload)+packetOverhead)
	packet[0] = headerByte1
	packet[1] = headerByte2
	packet[2] = byte(cmd)
	packet[3] = transferType
	packet[4] = byte(len(payload) & 0xFF)
	packet[5] = byte(len(payload) >> 8)
	copy(packet[6:], payload)
	packet[len(packet)-2] = Checksum(payload)
	packet[len(packet)-1] = terminatorByte
	return packet
}

// Reads a packet framed like BuildPacket's output, as the printer sends them
// back on its notify characteristic. Trailing bytes after the terminator are
// ignored.
func ParsePacket(d []byte) (Command, []byte, error) {
	if len(d) < packetOverhead {
		return 0, nil, fmt.Errorf("%w: %d bytes is shorter than a header", ErrMalformedPacket, len(d))
	}
	if d[0] != headerByte1 || d[1] != headerByte2 {
		return 0, nil, fmt.Errorf("%w: bad header %02x %02x", ErrMalformedPacket, d[0], d[1])
	}
	n := int(d[4]) | int(d[5])<<8
	if len(d) < n+packetOverhead {
		return 0, nil, fmt.Errorf("%w: payload length %d exceeds packet", ErrMalformedPacket, n)
	}
	payload := d[6 : 6+n]
	if crc := d[6+n]; crc != Checksum(payload) {
		return 0, nil, fmt.Errorf("%w: checksum %02x doesn't match %02x", ErrMalformedPacket, crc, Checksum(payload))
	}
	if d[7+n] != terminatorByte {
		return 0, nil, fmt.Errorf("%w: missing terminator", ErrMalformedPacket)
	}
	return Command(d[2]), payload, nil
}

// Fixed payloads
const (
	standardDPI     = 0x33 // 200dpi
	defaultSpeed    = 0x20
	applyEnergyFlag = 0x01
)

var (
	latticeStart = []byte{0xaa, 0x55, 0x17, 0x38, 0x44, 0x5f, 0x5f, 0x5f, 0x44, 0x38, 0x2c}
	latticeEnd   = []byte{0xaa, 0x55, 0x17, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x17}
)

// Asks the printer to report its state on the notify characteristic.
func getState() []byte {
	return BuildPacket(GetState, nil)
}

func setDPI() []byte {
	return BuildPacket(SetDPI, []byte{standardDPI})
}

func setSpeed() []byte {
	return BuildPacket(Speed, []byte{defaultSpeed})
}

// Sets the heating energy. Only the low byte carries the value; the second
// byte is always zero on the wire.
func setEnergy(energy int) []byte {
	return BuildPacket(Energy, []byte{byte(clamp(energy, 0, 255)), 0x00})
}

func applyEnergy() []byte {
	return BuildPacket(ApplyEnergy, []byte{applyEnergyFlag})
}

// Enters raw bitmap mode; rows sent afterwards are printed as they arrive.
func startLattice() []byte {
	return BuildPacket(Lattice, latticeStart)
}

func endLattice() []byte {
	return BuildPacket(Lattice, latticeEnd)
}

// One row of packed bitmap data.
func printRow(row []byte) []byte {
	return BuildPacket(Bitmap, row)
}

// Makes the printer spool through a number of blank lines.
func feedLines(n int) []byte {
	return BuildPacket(Feed, []byte{byte(clamp(n, 0, 255)), 0x00})
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
