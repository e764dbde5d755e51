package hal

import (
	"strings"
	"sync"
)

// SimRig is a deterministic host-side rig. Below ContactLevel the bridge
// reads railed (open contact); at or above it the bridge encodes ContactOhms
// plus whatever the Noise hook adds per reading.
type SimRig struct {
	ContactLevel int
	ContactOhms  float64
	IdleMA       float64
	ContactMA    float64

	// Bridge constants used to synthesize codes; must match the estimator
	// configuration.
	R1Ohm        float64
	ExcitationMV float64
	MVPerLSB     float64

	// Noise, when set, offsets the encoded resistance per reading.
	Noise func(reading int) float64

	mu       sync.Mutex
	level    int
	readings int
	spikeMA  float64
	input    chan struct{}
}

// NewSimRig returns a rig whose relay closes at contactLevel with the given
// contact resistance.
func NewSimRig(contactLevel int, contactOhms float64) *SimRig {
	return &SimRig{
		ContactLevel: contactLevel,
		ContactOhms:  contactOhms,
		IdleMA:       0.4,
		ContactMA:    12.0,
		R1Ohm:        1000.0,
		ExcitationMV: 3300.0,
		MVPerLSB:     0.1,
		input:        make(chan struct{}, 4),
	}
}

// Rig exposes the simulator through the capability bundle.
func (s *SimRig) Rig() Rig {
	return Rig{
		Current:  s,
		ADC:      s,
		Actuator: s,
		Display:  NewSimDisplay(),
		Input:    s,
	}
}

func (s *SimRig) SetLevel(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < 0 {
		level = 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	s.level = level
}

// Level returns the last actuation level written.
func (s *SimRig) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *SimRig) ReadCurrentMA() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spikeMA > 0 {
		return s.spikeMA
	}
	if s.level >= s.ContactLevel {
		return s.ContactMA
	}
	return s.IdleMA
}

// InjectOvercurrent forces every subsequent current reading to ma until
// cleared with ClearOvercurrent.
func (s *SimRig) InjectOvercurrent(ma float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spikeMA = ma
}

func (s *SimRig) ClearOvercurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spikeMA = 0
}

func (s *SimRig) ReadDifferential() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.level < s.ContactLevel {
		// Open contact rails the bridge onto the balance point.
		return int16(s.ExcitationMV / 2 / s.MVPerLSB)
	}

	ohms := s.ContactOhms
	if s.Noise != nil {
		ohms += s.Noise(s.readings)
	}
	s.readings++

	return s.codeFor(ohms)
}

func (s *SimRig) ReadSingleEnded(channel int) int16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if channel != AuxChannel || s.level < s.ContactLevel {
		return 0
	}
	// Load tap sits at roughly half the excitation once current flows.
	return int16(s.ExcitationMV / 2 / s.MVPerLSB / 2)
}

// codeFor inverts the bridge equation. Callers hold s.mu.
func (s *SimRig) codeFor(ohms float64) int16 {
	vd := s.ExcitationMV * (ohms - s.R1Ohm) / (2 * (ohms + s.R1Ohm))
	return int16(vd / s.MVPerLSB)
}

func (s *SimRig) Events() <-chan struct{} {
	return s.input
}

// Press simulates one debounced button edge.
func (s *SimRig) Press() {
	select {
	case s.input <- struct{}{}:
	default:
	}
}

// SimDisplay captures panel writes for inspection.
type SimDisplay struct {
	mu   sync.Mutex
	rows [4][16]byte
	row  int
	col  int
}

func NewSimDisplay() *SimDisplay {
	d := &SimDisplay{}
	for r := range d.rows {
		for c := range d.rows[r] {
			d.rows[r][c] = ' '
		}
	}
	return d
}

func (d *SimDisplay) SetCursor(row, col int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row = row
	d.col = col
}

func (d *SimDisplay) Print(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < len(text); i++ {
		if d.row < 0 || d.row >= 4 || d.col < 0 || d.col >= 16 {
			return
		}
		d.rows[d.row][d.col] = text[i]
		d.col++
	}
}

// Line returns the current content of one display row.
func (d *SimDisplay) Line(row int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimRight(string(d.rows[row][:]), " ")
}
