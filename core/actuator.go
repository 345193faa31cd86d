package core

import (
	"encoding/json"
	"fmt"
)

// ActuatorKind tags an ActuatorValue variant.
type ActuatorKind string

const (
	ActuatorKindSignal   ActuatorKind = "signal"
	ActuatorKindUnsigned ActuatorKind = "unsigned"
	ActuatorKindSigned   ActuatorKind = "signed"
	ActuatorKindDouble   ActuatorKind = "double"
	ActuatorKindString   ActuatorKind = "string"
)

// ActuatorValue is the tagged union carried by an actuation command.
type ActuatorValue struct {
	kind ActuatorKind
	u    uint64
	i    int64
	f    float64
	s    string
}

func NewSignalActuatorValue() ActuatorValue { return ActuatorValue{kind: ActuatorKindSignal} }

func NewUnsignedActuatorValue(v uint64) ActuatorValue {
	return ActuatorValue{kind: ActuatorKindUnsigned, u: v}
}

func NewSignedActuatorValue(v int64) ActuatorValue {
	return ActuatorValue{kind: ActuatorKindSigned, i: v}
}

func NewDoubleActuatorValue(v float64) ActuatorValue {
	return ActuatorValue{kind: ActuatorKindDouble, f: v}
}

func NewStringActuatorValue(v string) ActuatorValue {
	return ActuatorValue{kind: ActuatorKindString, s: v}
}

func (a ActuatorValue) Kind() ActuatorKind { return a.kind }

func (a ActuatorValue) Unsigned() (uint64, bool) { return a.u, a.kind == ActuatorKindUnsigned }
func (a ActuatorValue) Signed() (int64, bool)    { return a.i, a.kind == ActuatorKindSigned }
func (a ActuatorValue) Double() (float64, bool)  { return a.f, a.kind == ActuatorKindDouble }
func (a ActuatorValue) Text() (string, bool)     { return a.s, a.kind == ActuatorKindString }

// Display renders the value the way the logger device does.
func (a ActuatorValue) Display() string {
	switch a.kind {
	case ActuatorKindSignal:
		return "signal"
	case ActuatorKindUnsigned:
		return fmt.Sprintf("%d", a.u)
	case ActuatorKindSigned:
		return fmt.Sprintf("%d", a.i)
	case ActuatorKindDouble:
		return fmt.Sprintf("%v", a.f)
	case ActuatorKindString:
		return a.s
	default:
		return ""
	}
}

type actuatorValueWire struct {
	Kind  ActuatorKind    `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (a ActuatorValue) MarshalJSON() ([]byte, error) {
	w := actuatorValueWire{Kind: a.kind}
	var (
		raw []byte
		err error
	)
	switch a.kind {
	case ActuatorKindUnsigned:
		raw, err = json.Marshal(a.u)
	case ActuatorKindSigned:
		raw, err = json.Marshal(a.i)
	case ActuatorKindDouble:
		raw, err = json.Marshal(a.f)
	case ActuatorKindString:
		raw, err = json.Marshal(a.s)
	}
	if err != nil {
		return nil, err
	}
	w.Value = raw
	return json.Marshal(w)
}

func (a *ActuatorValue) UnmarshalJSON(data []byte) error {
	var w actuatorValueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case ActuatorKindSignal:
		*a = NewSignalActuatorValue()
	case ActuatorKindUnsigned:
		var v uint64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("actuator value: decoding unsigned: %w", err)
		}
		*a = NewUnsignedActuatorValue(v)
	case ActuatorKindSigned:
		var v int64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("actuator value: decoding signed: %w", err)
		}
		*a = NewSignedActuatorValue(v)
	case ActuatorKindDouble:
		var v float64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("actuator value: decoding double: %w", err)
		}
		*a = NewDoubleActuatorValue(v)
	case ActuatorKindString:
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("actuator value: decoding string: %w", err)
		}
		*a = NewStringActuatorValue(v)
	default:
		return fmt.Errorf("actuator value: unknown kind %q", w.Kind)
	}
	return nil
}

// RemoteActuatorValue is the flat, gob-friendly wire twin of ActuatorValue,
// exchanged over the actuator request/response protocol (§9). gob refuses
// to encode a struct whose every field is unexported, which is exactly
// what ActuatorValue is; this twin carries the same tagged union with one
// exported field per variant, mirroring RemoteActuationResponse's role for
// ActuationResult.
type RemoteActuatorValue struct {
	Kind     ActuatorKind
	Unsigned uint64
	Signed   int64
	Double   float64
	Text     string
}

// ToRemote is the lossless half of the bijection.
func (a ActuatorValue) ToRemote() RemoteActuatorValue {
	return RemoteActuatorValue{Kind: a.kind, Unsigned: a.u, Signed: a.i, Double: a.f, Text: a.s}
}

// ToValue is the other half of the bijection.
func (w RemoteActuatorValue) ToValue() ActuatorValue {
	switch w.Kind {
	case ActuatorKindSignal:
		return NewSignalActuatorValue()
	case ActuatorKindUnsigned:
		return NewUnsignedActuatorValue(w.Unsigned)
	case ActuatorKindSigned:
		return NewSignedActuatorValue(w.Signed)
	case ActuatorKindDouble:
		return NewDoubleActuatorValue(w.Double)
	case ActuatorKindString:
		return NewStringActuatorValue(w.Text)
	default:
		return NewSignalActuatorValue()
	}
}
