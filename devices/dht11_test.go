package devices

import (
	"errors"
	"testing"

	"diodt/core"
)

func TestDHT11SenseReportsUnsupported(t *testing.T) {
	dev, err := NewDHT11(nil)
	if err != nil {
		t.Fatalf("NewDHT11: %v", err)
	}
	if err := dev.Sense(&collectingSink{}); !errors.Is(err, ErrUnsupportedHardware) {
		t.Fatalf("expected ErrUnsupportedHardware, got %v", err)
	}
}

func TestDHT11ActuateReportsError(t *testing.T) {
	dev, err := NewDHT11(nil)
	if err != nil {
		t.Fatalf("NewDHT11: %v", err)
	}
	result := dev.Actuate(core.NewActuationRequestData("a", core.NewSignalActuatorValue()))
	if result.Kind() != core.ResultActuatorError {
		t.Fatalf("expected ActuatorError, got %v", result.Kind())
	}
}
