package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0x00), Checksum(nil))
	assert.Equal(t, byte(0x00), Checksum([]byte{0x00}))
	assert.Equal(t, byte(0x99), Checksum([]byte{0x33}))
	assert.Equal(t, byte(0x89), Checksum([]byte{0x80}))
	assert.Equal(t, byte(0xa1), Checksum(latticeStart))
	assert.Equal(t, byte(0x11), Checksum(latticeEnd))
}

func TestChecksumIsTheTableFold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		var want byte
		for _, b := range data {
			want ^= b
			for range 8 {
				if want&0x80 != 0 {
					want = want<<1 ^ 0x07
				} else {
					want <<= 1
				}
			}
		}
		if got := Checksum(data); got != want {
			t.Fatalf("Checksum(%x) = %02x, want %02x", data, got, want)
		}
	})
}

func TestControlPackets(t *testing.T) {
	cases := []struct {
		name   string
		packet []byte
		want   []byte
	}{
		{"getState", getState(), []byte{0x51, 0x78, 0xA3, 0x00, 0x00, 0x00, 0x00, 0xFF}},
		{"setDPI", setDPI(), []byte{0x51, 0x78, 0xA4, 0x00, 0x01, 0x00, 0x33, 0x99, 0xFF}},
		{"setSpeed", setSpeed(), []byte{0x51, 0x78, 0xBD, 0x00, 0x01, 0x00, 0x20, 0xE0, 0xFF}},
		{"setEnergy", setEnergy(0x60), []byte{0x51, 0x78, 0xAF, 0x00, 0x02, 0x00, 0x60, 0x00, 0xF5, 0xFF}},
		{"applyEnergy", applyEnergy(), []byte{0x51, 0x78, 0xBE, 0x00, 0x01, 0x00, 0x01, 0x07, 0xFF}},
		{"feedLines", feedLines(100), []byte{0x51, 0x78, 0xA1, 0x00, 0x02, 0x00, 0x64, 0x00, 0xA1, 0xFF}},
		{"startLattice", startLattice(), append(append([]byte{0x51, 0x78, 0xA6, 0x00, 0x0B, 0x00}, latticeStart...), 0xA1, 0xFF)},
		{"endLattice", endLattice(), append(append([]byte{0x51, 0x78, 0xA6, 0x00, 0x0B, 0x00}, latticeEnd...), 0x11, 0xFF)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.packet)
		})
	}
}

func TestPayloadsAreClamped(t *testing.T) {
	assert.Equal(t, setEnergy(255), setEnergy(1000))
	assert.Equal(t, setEnergy(0), setEnergy(-5))
	assert.Equal(t, feedLines(255), feedLines(300))
	assert.Equal(t, feedLines(0), feedLines(-1))
}

func TestBuildPacketFraming(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cmd := Command(rapid.Byte().Draw(t, "cmd"))
		payload := rapid.SliceOfN(rapid.Byte(), 0, 600).Draw(t, "payload")

		packet := BuildPacket(cmd, payload)

		if len(packet) != len(payload)+8 {
			t.Fatalf("packet length %d for payload of %d", len(packet), len(payload))
		}
		if packet[0] != 0x51 || packet[1] != 0x78 || packet[3] != 0x00 || packet[len(packet)-1] != 0xFF {
			t.Fatalf("bad framing: %x", packet)
		}
		if int(packet[4])|int(packet[5])<<8 != len(payload) {
			t.Fatalf("bad length field: %x", packet[4:6])
		}

		gotCmd, gotPayload, err := ParsePacket(packet)
		if err != nil {
			t.Fatalf("ParsePacket: %v", err)
		}
		if gotCmd != cmd || string(gotPayload) != string(payload) {
			t.Fatalf("round trip mismatch: %v %x", gotCmd, gotPayload)
		}
	})
}

func TestBuildPacketPanicsOnOversizedPayload(t *testing.T) {
	assert.Panics(t, func() { BuildPacket(Bitmap, make([]byte, 0x10000)) })
	assert.NotPanics(t, func() { BuildPacket(Bitmap, make([]byte, 0xFFFF)) })
}

func TestParsePacketRejectsMalformed(t *testing.T) {
	good := setDPI()
	corrupt := func(i int, v byte) []byte {
		d := append([]byte(nil), good...)
		d[i] = v
		return d
	}

	cases := map[string][]byte{
		"short":      good[:5],
		"header":     corrupt(0, 0x50),
		"length":     corrupt(4, 0x09),
		"checksum":   corrupt(7, 0x00),
		"terminator": corrupt(8, 0x00),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParsePacket(d)
			require.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "LATTICE", Lattice.String())
	assert.Equal(t, "Command(0x42)", Command(0x42).String())
}
