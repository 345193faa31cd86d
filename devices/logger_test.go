package devices

import (
	"testing"

	"diodt/core"
)

func TestLoggerDefaultSignalMessage(t *testing.T) {
	dev, err := NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	result := dev.Actuate(core.NewActuationRequestData("a", core.NewSignalActuatorValue()))
	if result.Kind() != core.ResultSuccess {
		t.Fatalf("expected success, got %v", result.Kind())
	}
}

func TestLoggerCustomSignalMessage(t *testing.T) {
	dev, err := NewLogger([]byte(`{"signal":"custom signal"}`))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	result := dev.Actuate(core.NewActuationRequestData("a", core.NewSignalActuatorValue()))
	if result.Kind() != core.ResultSuccess {
		t.Fatalf("expected success, got %v", result.Kind())
	}
}

func TestLoggerPrefixSuffixOnNonSignal(t *testing.T) {
	dev, err := NewLogger([]byte(`{"prefix":"[","suffix":"]"}`))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	result := dev.Actuate(core.NewActuationRequestData("a", core.NewSignedActuatorValue(5)))
	if result.Kind() != core.ResultSuccess {
		t.Fatalf("expected success, got %v", result.Kind())
	}
}
