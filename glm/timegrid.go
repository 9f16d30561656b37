package glm

import (
	"fmt"

	"github.com/kshedden/pointglm/basis"
)

// Dt returns the spacing of a uniform time grid.
func Dt(t []float64) float64 {
	return t[1] - t[0]
}

func checkGrid(t []float64) error {
	if len(t) < 2 {
		return fmt.Errorf("%w: the time grid needs at least two points, got %d", ErrShape, len(t))
	}
	return nil
}

// SpikeMask marks the time bins in which each cell emitted a spike.  Rows
// are time bins and columns are cells.
type SpikeMask struct {
	nt, nc int
	data   []bool
}

// NewSpikeMask returns an empty mask with nt time bins and nc cells.
func NewSpikeMask(nt, nc int) *SpikeMask {
	if nt < 0 || nc < 0 {
		panic("glm: negative mask dimension")
	}
	return &SpikeMask{
		nt:   nt,
		nc:   nc,
		data: make([]bool, nt*nc),
	}
}

// Dims returns the number of time bins and the number of cells.
func (m *SpikeMask) Dims() (int, int) {
	return m.nt, m.nc
}

// At reports whether cell c spiked in bin j.
func (m *SpikeMask) At(j, c int) bool {
	return m.data[j*m.nc+c]
}

// Set marks or clears a spike.
func (m *SpikeMask) Set(j, c int, v bool) {
	m.data[j*m.nc+c] = v
}

// Count returns the total number of spikes.
func (m *SpikeMask) Count() int {
	var n int
	for _, v := range m.data {
		if v {
			n++
		}
	}
	return n
}

// CountCol returns the number of spikes emitted by cell c.
func (m *SpikeMask) CountCol(c int) int {
	var n int
	for j := 0; j < m.nt; j++ {
		if m.data[j*m.nc+c] {
			n++
		}
	}
	return n
}

// Clone returns a copy of the mask.
func (m *SpikeMask) Clone() *SpikeMask {
	data := make([]bool, len(m.data))
	copy(data, m.data)
	return &SpikeMask{nt: m.nt, nc: m.nc, data: data}
}

// SpikeTimes returns the spike times shifted forward by one bin, so a spike
// in bin j is reported at t[j+1] and first affects that bin.  Spikes in the
// last bin have no future and are dropped.
func (m *SpikeMask) SpikeTimes(t []float64) basis.SpikeTimes {

	var st basis.SpikeTimes
	for j := 0; j < m.nt-1; j++ {
		for c := 0; c < m.nc; c++ {
			if m.data[j*m.nc+c] {
				st.Times = append(st.Times, t[j+1])
				st.Cells = append(st.Cells, c)
			}
		}
	}

	return st
}
