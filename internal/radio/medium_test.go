package radio

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/sched"
	"railwsn-sim/internal/wire"
)

type countingObserver struct {
	sent, delivered int
	dropped         map[DropReason]int
}

func (c *countingObserver) FrameSent(mote.NodeID, wire.Channel, mote.NodeID) { c.sent++ }
func (c *countingObserver) FrameDelivered(wire.Frame) { c.delivered++ }
func (c *countingObserver) FrameDropped(_, _ mote.NodeID, _ wire.Channel, r DropReason) {
	c.dropped[r]++
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.ShadowingSigmaDB = 0
	cfg.CommunicationLoss = 0
	return cfg
}

func newTestMedium(cfg Config) (*Medium, *sched.Scheduler, *countingObserver) {
	s := sched.New(sched.WithSeed(1))
	m := NewMedium(cfg, s, rand.New(rand.NewSource(1)), nil)
	obs := &countingObserver{dropped: map[DropReason]int{}}
	m.Observe(obs)
	return m, s, obs
}

func TestMeanRSSIFallsWithDistance(t *testing.T) {
	m, _, _ := newTestMedium(quietConfig())
	near := m.MeanRSSI(1, 2)
	far := m.MeanRSSI(1, 4)
	assert.InDelta(t, -84, near, 0.01)
	assert.Less(t, far, near)
	assert.Equal(t, m.MeanRSSI(2, 5), m.MeanRSSI(5, 2))
}

func TestBroadcastReachesMotesInRange(t *testing.T) {
	m, s, obs := newTestMedium(quietConfig())
	got := map[mote.NodeID][]wire.Frame{}
	var eps []*Endpoint
	for id := mote.NodeID(1); id <= 8; id++ {
		id := id
		eps = append(eps, m.Attach(id, func(f wire.Frame) { got[id] = append(got[id], f) }))
	}

	require.NoError(t, eps[0].SendBroadcast(wire.AdvertisementChannel, []byte{1, 2, 3, 4, 5}))
	assert.Empty(t, got, "delivery must wait for airtime")
	s.RunFor(10 * time.Millisecond)

	// 10 m spacing: up to 40 m is above -97 dBm, 50 m is not
	for id := mote.NodeID(2); id <= 5; id++ {
		require.Len(t, got[id], 1, "mote %d", id)
		f := got[id][0]
		assert.Equal(t, uint8(1), f.From)
		assert.True(t, f.Broadcast())
		assert.Equal(t, wire.AdvertisementChannel, f.Channel)
	}
	for id := mote.NodeID(6); id <= 8; id++ {
		assert.Empty(t, got[id], "mote %d is out of range", id)
	}
	assert.Empty(t, got[1], "sender hears itself")
	assert.Equal(t, 1, obs.sent)
	assert.Equal(t, 4, obs.delivered)
	assert.Equal(t, 3, obs.dropped[OutOfRange])
	assert.Equal(t, 1, eps[0].Sent())
}

func TestUnicastOnlyReachesDestination(t *testing.T) {
	m, s, obs := newTestMedium(quietConfig())
	var at2, at3 int
	a := m.Attach(1, func(wire.Frame) {})
	m.Attach(2, func(wire.Frame) { at2++ })
	m.Attach(3, func(wire.Frame) { at3++ })

	require.NoError(t, a.SendUnicast(wire.EventChannel, 3, []byte{1, 0, 7}))
	require.NoError(t, a.SendUnicast(wire.EventChannel, 9, []byte{1, 0, 7}))
	s.RunFor(time.Second)

	assert.Equal(t, 0, at2)
	assert.Equal(t, 1, at3)
	assert.Equal(t, 1, obs.dropped[UnknownDestination])
}

func TestPayloadIsCopied(t *testing.T) {
	m, s, _ := newTestMedium(quietConfig())
	var got []byte
	a := m.Attach(1, func(wire.Frame) {})
	m.Attach(2, func(f wire.Frame) { got = f.Payload })

	buf := []byte{4, 0xd0, 0x07}
	require.NoError(t, a.SendUnicast(wire.EventChannel, 2, buf))
	buf[0] = 9
	s.RunFor(time.Second)
	assert.Equal(t, []byte{4, 0xd0, 0x07}, got)
}

func TestCommunicationLoss(t *testing.T) {
	cfg := quietConfig()
	cfg.CommunicationLoss = 1
	m, s, obs := newTestMedium(cfg)
	a := m.Attach(1, func(wire.Frame) {})
	delivered := 0
	m.Attach(2, func(wire.Frame) { delivered++ })

	for i := 0; i < 10; i++ {
		require.NoError(t, a.SendBroadcast(wire.AdvertisementChannel, make([]byte, 5)))
	}
	s.RunFor(time.Second)
	assert.Zero(t, delivered)
	assert.Equal(t, 10, obs.dropped[ChannelLoss])
}

func TestDetachedEndpointCannotSend(t *testing.T) {
	m, _, _ := newTestMedium(quietConfig())
	a := m.Attach(1, func(wire.Frame) {})
	m.Detach(1)
	err := a.SendBroadcast(wire.AdvertisementChannel, nil)
	assert.True(t, errors.Is(err, ErrNotAttached))
}
