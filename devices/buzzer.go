// Package devices holds the concrete Device implementations that
// register themselves with diodt/core's device registry.
package devices

import (
	"encoding/json"
	"fmt"

	"diodt/core"
)

func init() {
	core.RegisterDeviceType(core.DeviceTypeBuzzer, NewBuzzer)
}

type buzzerConfig struct {
	Pin uint8 `json:"pin"`
}

// Buzzer is a GPIO-driven buzzer actuator with no sensors. It has no
// real hardware access in this environment; actuation validates its
// input exactly as the original pin-driving implementation does, it
// simply never toggles a pin.
type Buzzer struct {
	cfg buzzerConfig
}

func NewBuzzer(raw json.RawMessage) (core.Device, error) {
	var cfg buzzerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("buzzer: invalid config: %w", err)
	}
	return &Buzzer{cfg: cfg}, nil
}

func (b *Buzzer) Sense(sink core.SensorSink) error { return nil }

func (b *Buzzer) Actuate(req core.ActuationRequestData) core.ActuationResult {
	switch req.Data().Kind() {
	case core.ActuatorKindSignal:
		return core.Success()

	case core.ActuatorKindUnsigned:
		val, _ := req.Data().Unsigned()
		if val == 0 {
			return core.BadRequest("Zero beep time")
		}
		if val > 5 {
			return core.BadRequest(fmt.Sprintf("Beep time too long, expected <= 5 seconds, found %d seconds", val))
		}
		return core.Success()

	case core.ActuatorKindSigned:
		val, _ := req.Data().Signed()
		if val <= 0 {
			return core.BadRequest(fmt.Sprintf("Zero or negative beep time: %d seconds", val))
		}
		if val > 5 {
			return core.BadRequest(fmt.Sprintf("Beep time too long, expected <= 5 seconds, found %d seconds", val))
		}
		return core.Success()

	case core.ActuatorKindDouble:
		val, _ := req.Data().Double()
		if val <= 0 {
			return core.BadRequest(fmt.Sprintf("Zero or negative beep time: %v seconds", val))
		}
		if val > 5 {
			return core.BadRequest(fmt.Sprintf("Beep time too long, expected <= 5 seconds, found %v seconds", val))
		}
		return core.Success()

	case core.ActuatorKindString:
		return core.BadRequest("Strings are unsupported")

	default:
		return core.NoResponse()
	}
}

func (b *Buzzer) Reset() error { return nil }
