package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// SensorSink is how a device reports sensor readings during Sense.
type SensorSink interface {
	Write(sensorName string, value Measurement)
}

// ActuationRequestData is what a device's Actuate method receives: the
// actuator name it was targeted through, and the value to apply.
type ActuationRequestData struct {
	actuatorName string
	data         ActuatorValue
}

func NewActuationRequestData(actuatorName string, data ActuatorValue) ActuationRequestData {
	return ActuationRequestData{actuatorName: actuatorName, data: data}
}

func (a ActuationRequestData) ActuatorName() string { return a.actuatorName }
func (a ActuationRequestData) Data() ActuatorValue  { return a.data }

// Device is the contract every hardware peripheral implements. Sense is
// called once per worker tick to let the device push zero or more
// readings into the sink; Actuate handles one command synchronously;
// Reset restores the device to its post-construction state and is
// called on graceful shutdown.
type Device interface {
	Sense(sink SensorSink) error
	Actuate(req ActuationRequestData) ActuationResult
	Reset() error
}

// DeviceFactory constructs a Device from its raw JSON config.
type DeviceFactory func(config json.RawMessage) (Device, error)

var deviceRegistry = map[DeviceType]DeviceFactory{}

// RegisterDeviceType adds a device type to the registry. Device
// implementations call this from an init() function so that importing
// their package for side effects is enough to make the type available.
func RegisterDeviceType(t DeviceType, factory DeviceFactory) {
	deviceRegistry[t] = factory
}

// InitializeDevice constructs a fresh Device instance of the given type.
// It is called both at startup and every time the supervisor rebuilds a
// crashed device worker.
func InitializeDevice(t DeviceType, config json.RawMessage) (Device, error) {
	factory, ok := deviceRegistry[t]
	if !ok {
		return nil, fmt.Errorf("device: unknown device type %q", t)
	}
	dev, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("device: initializing %q: %w", t, err)
	}
	return dev, nil
}

// ActuationRequest couples an actuation command with the channel its
// result must be delivered on. Ctx carries the caller's cancellation so
// the worker can detect an abandoned response channel instead of
// blocking on it forever.
type ActuationRequest struct {
	Ctx   context.Context
	Data  ActuationRequestData
	Reply chan<- ActuationResult
}
