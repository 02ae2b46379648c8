package printer

import (
	"tomgalvin.uk/catprint/internal/bitmap"
)

const (
	DefaultEnergy    = 0x60
	DefaultFeedLines = 100
)

type PrintParams struct {
	// Heating energy in [0,255]; higher prints darker and slower.
	Energy int
	// Blank lines fed after the image, in [0,255].
	FeedLines int
}

func DefaultPrintParams() PrintParams {
	return PrintParams{Energy: DefaultEnergy, FeedLines: DefaultFeedLines}
}

type step struct {
	packet []byte
	// index of the bitmap row carried by the packet, -1 for control packets
	row int
}

// Job is the full ordered packet list that prints one bitmap, setup and
// teardown included. Jobs are built per request and not reused.
type Job struct {
	steps  []step
	height int
}

func NewJob(b *bitmap.PackedBitmap, p PrintParams) *Job {
	j := &Job{height: b.Height()}
	control := func(packet []byte) {
		j.steps = append(j.steps, step{packet: packet, row: -1})
	}

	control(getState())
	control(setDPI())
	control(setSpeed())
	control(setEnergy(p.Energy))
	control(applyEnergy())
	control(startLattice())
	for y := range b.Height() {
		j.steps = append(j.steps, step{packet: printRow(b.Row(y)), row: y})
	}
	control(endLattice())
	control(feedLines(p.FeedLines))
	return j
}

func (j *Job) Packets() [][]byte {
	packets := make([][]byte, len(j.steps))
	for i, s := range j.steps {
		packets[i] = s.packet
	}
	return packets
}

func (j *Job) Len() int {
	return len(j.steps)
}

// progress as a rounded percentage after row y has been sent
func (j *Job) progress(y int) int {
	return (200*(y+1) + j.height) / (2 * j.height)
}
