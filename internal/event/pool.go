package event

import (
	"sync"

	"nft_market/internal/rotation"
)

// Rotation events arrive at wheel/scroll frequency; pool them to keep GC pressure flat.
//
// Usage:
//
//	ev := AcquireRotationEvent()
//	ev.Input = rotation.WheelDown()
//	inbox <- ev
//	// ... the market loop calls ReleaseRotationEvent(ev) after processing ...
var rotationPool = sync.Pool{
	New: func() interface{} {
		return &RotationEvent{}
	},
}

// AcquireRotationEvent gets a RotationEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireRotationEvent() *RotationEvent {
	return rotationPool.Get().(*RotationEvent)
}

// ReleaseRotationEvent returns a RotationEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseRotationEvent(ev *RotationEvent) {
	if ev == nil {
		return
	}
	ev.Input = rotation.Input{}
	rotationPool.Put(ev)
}

// Warmup pre-allocates rotation events to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 64

	evs := make([]*RotationEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireRotationEvent())
	}
	for _, ev := range evs {
		ReleaseRotationEvent(ev)
	}
}
