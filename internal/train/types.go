package train

import "errors"

var ErrInvalidSection = errors.New("train: invalid section")

// Direction of travel along the track.
type Direction int

const (
	Up   Direction = 1  // toward higher mote addresses
	Down Direction = -1 // toward mote 1
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Train is one simulated train. Position is the head, in metres from mote 1;
// the body trails LengthM behind it.
type Train struct {
	ID        string    `json:"id"`
	Position  float64   `json:"position_m"`
	LengthM   float64   `json:"length_m"`
	Direction Direction `json:"direction"`
	SpeedMPS  float64   `json:"speed_mps"`
	// Stopped is set when the train ran into a broken rail.
	Stopped bool `json:"stopped"`
}

// Config sets the geometry of the track.
type Config struct {
	Motes            int
	SpacingM         float64
	VibrationRadiusM float64
	TrainLengthM     float64
}

// tail is the rear end of the train.
func (t *Train) tail() float64 {
	return t.Position - float64(t.Direction)*t.LengthM
}

// span returns the stretch of track the train occupies.
func (t *Train) span() (lo, hi float64) {
	lo, hi = t.Position, t.tail()
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}
