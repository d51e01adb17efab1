package raster

// Reader is any band-addressable 2-D raster. Band numbers start at 1.
// Read resamples window win of the band onto an outW x outH grid.
type Reader interface {
	Name() string
	Width() int
	Height() int
	BandCount() int
	Read(band int, win Window, outW, outH int, alg Resample) (*Array, error)
}

// ReadFull reads a whole band at native resolution.
func ReadFull(r Reader, band int) (*Array, error) {
	return r.Read(band, Full(r.Width(), r.Height()), r.Width(), r.Height(), Nearest)
}

// MemReader serves arrays held in memory, one per band.
type MemReader struct {
	ID    string
	Bands []*Array
}

func (m *MemReader) Name() string { return m.ID }

func (m *MemReader) Width() int {
	if len(m.Bands) == 0 {
		return 0
	}
	return m.Bands[0].Width
}

func (m *MemReader) Height() int {
	if len(m.Bands) == 0 {
		return 0
	}
	return m.Bands[0].Height
}

func (m *MemReader) BandCount() int { return len(m.Bands) }

func (m *MemReader) Read(band int, win Window, outW, outH int, alg Resample) (*Array, error) {
	if band < 1 || band > len(m.Bands) {
		return nil, errBand(m.ID, band)
	}
	return Extract(m.Bands[band-1], win, outW, outH, alg), nil
}

// Extract cuts win out of a and resamples it to outW x outH.
func Extract(a *Array, win Window, outW, outH int, alg Resample) *Array {
	if win.W == outW && win.H == outH {
		return a.Sub(win)
	}
	return Resize(a, float64(win.X), float64(win.Y), float64(win.W), float64(win.H), outW, outH, alg)
}
