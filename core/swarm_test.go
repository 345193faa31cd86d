package core

import (
	"bytes"
	"encoding/gob"
	"testing"
)

func TestRemoteActuatorRequestGobRoundTrip(t *testing.T) {
	cases := []FullActuatorData{
		{DeviceName: "buzzer", ActuatorName: "beep", Data: NewSignalActuatorValue()},
		{DeviceName: "buzzer", ActuatorName: "beep", Data: NewUnsignedActuatorValue(3)},
		{DeviceName: "buzzer", ActuatorName: "beep", Data: NewSignedActuatorValue(-3)},
		{DeviceName: "buzzer", ActuatorName: "beep", Data: NewDoubleActuatorValue(2.5)},
		{DeviceName: "logger", ActuatorName: "log", Data: NewStringActuatorValue("hello")},
	}

	for _, data := range cases {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(data.ToRemote()); err != nil {
			t.Fatalf("gob encode %+v: %v", data, err)
		}

		var wire RemoteActuatorRequest
		if err := gob.NewDecoder(&buf).Decode(&wire); err != nil {
			t.Fatalf("gob decode: %v", err)
		}

		got := wire.ToRequest()
		if got.DeviceName != data.DeviceName || got.ActuatorName != data.ActuatorName {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, data)
		}
		if got.Data.Kind() != data.Data.Kind() || got.Data.Display() != data.Data.Display() {
			t.Fatalf("round trip value mismatch: got %+v, want %+v", got.Data, data.Data)
		}
	}
}
