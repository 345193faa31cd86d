package devices

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"diodt/core"
)

func init() {
	core.RegisterDeviceType(core.DeviceTypeTimer, NewTimer)
}

type timerConfig struct {
	TickEveryMs int64 `json:"tick_every_ms"`
}

// Timer emits a bare "tick" signal on its one sensor whenever more than
// TickEveryMs has elapsed since the previous tick. It has no actuators.
type Timer struct {
	cfg      timerConfig
	clock    clock.Clock
	lastTick time.Time
}

func NewTimer(raw json.RawMessage) (core.Device, error) {
	var cfg timerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("timer: invalid config: %w", err)
	}
	clk := clock.New()
	return &Timer{cfg: cfg, clock: clk, lastTick: clk.Now()}, nil
}

// NewTimerWithClock is used by tests to inject a mock clock instead of
// the wall clock NewTimer defaults to.
func NewTimerWithClock(raw json.RawMessage, clk clock.Clock) (core.Device, error) {
	var cfg timerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("timer: invalid config: %w", err)
	}
	return &Timer{cfg: cfg, clock: clk, lastTick: clk.Now()}, nil
}

func (t *Timer) Sense(sink core.SensorSink) error {
	if t.clock.Now().Sub(t.lastTick) > time.Duration(t.cfg.TickEveryMs)*time.Millisecond {
		sink.Write("tick", core.NewSignalMeasurement())
		t.lastTick = t.clock.Now()
	}
	return nil
}

func (t *Timer) Actuate(req core.ActuationRequestData) core.ActuationResult {
	return core.Ignored()
}

func (t *Timer) Reset() error {
	t.lastTick = t.clock.Now()
	return nil
}
