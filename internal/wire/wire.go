// Fixed-size radio payloads exchanged between motes
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Channel identifies a logical radio connection. The frame type is implied by
// the channel it arrives on.
type Channel uint16

const (
	AdvertisementChannel Channel = 125
	EventChannel         Channel = 129
)

func (c Channel) String() string {
	switch c {
	case AdvertisementChannel:
		return "advertisement"
	case EventChannel:
		return "event"
	default:
		return fmt.Sprintf("channel-%d", uint16(c))
	}
}

const (
	AdvertisementSize = 5
	EventSize         = 3
)

var ErrShortFrame = errors.New("wire: short frame")

// RouteAdvertisement is the broadcast copy of a mote's route entry.
type RouteAdvertisement struct {
	NextHop uint8
	Cost    uint16
	Battery uint16
}

// MarshalBinary packs the advertisement little-endian without padding.
func (a RouteAdvertisement) MarshalBinary() ([]byte, error) {
	b := make([]byte, AdvertisementSize)
	b[0] = a.NextHop
	binary.LittleEndian.PutUint16(b[1:3], a.Cost)
	binary.LittleEndian.PutUint16(b[3:5], a.Battery)
	return b, nil
}

// UnmarshalBinary decodes an advertisement. Trailing bytes are ignored.
func (a *RouteAdvertisement) UnmarshalBinary(b []byte) error {
	if len(b) < AdvertisementSize {
		return fmt.Errorf("%w: advertisement needs %d bytes, got %d", ErrShortFrame, AdvertisementSize, len(b))
	}
	a.NextHop = b[0]
	a.Cost = binary.LittleEndian.Uint16(b[1:3])
	a.Battery = binary.LittleEndian.Uint16(b[3:5])
	return nil
}

// VibrationEvent reports a threshold trip. It is relayed unmodified hop by hop.
type VibrationEvent struct {
	SourceID uint8
	Value    uint16
}

func (e VibrationEvent) MarshalBinary() ([]byte, error) {
	b := make([]byte, EventSize)
	b[0] = e.SourceID
	binary.LittleEndian.PutUint16(b[1:3], e.Value)
	return b, nil
}

func (e *VibrationEvent) UnmarshalBinary(b []byte) error {
	if len(b) < EventSize {
		return fmt.Errorf("%w: event needs %d bytes, got %d", ErrShortFrame, EventSize, len(b))
	}
	e.SourceID = b[0]
	e.Value = binary.LittleEndian.Uint16(b[1:3])
	return nil
}

// Frame is one reception as handed up by the transport.
type Frame struct {
	Channel Channel
	From    uint8
	// To is zero for broadcasts.
	To      uint8
	RSSI    int16
	Payload []byte
}

// Broadcast reports whether the frame was sent to every listener.
func (f Frame) Broadcast() bool { return f.To == 0 }
