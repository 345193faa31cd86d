package devices

import (
	"encoding/json"
	"errors"

	"diodt/core"
)

func init() {
	core.RegisterDeviceType(core.DeviceTypeDHT11, NewDHT11)
}

// ErrUnsupportedHardware is returned by DHT11 on any platform without
// real GPIO bit-banging support, which this build never has. The device
// type stays registered and closed over the full enum regardless (§6),
// it just can never usefully sense or actuate here.
var ErrUnsupportedHardware = errors.New("dht11: GPIO access not implemented on this platform")

type DHT11 struct{}

func NewDHT11(raw json.RawMessage) (core.Device, error) {
	return &DHT11{}, nil
}

func (d *DHT11) Sense(sink core.SensorSink) error {
	return ErrUnsupportedHardware
}

func (d *DHT11) Actuate(req core.ActuationRequestData) core.ActuationResult {
	return core.ActuatorError(-501, "dht11 hardware not available")
}

func (d *DHT11) Reset() error { return nil }
