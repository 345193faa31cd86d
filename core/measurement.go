package core

import (
	"encoding/json"
	"fmt"
)

// MeasurementKind tags a Measurement variant.
type MeasurementKind string

const (
	MeasurementSignal  MeasurementKind = "signal"
	MeasurementInteger MeasurementKind = "integer"
	MeasurementDouble  MeasurementKind = "double"
	MeasurementString  MeasurementKind = "string"
)

// Measurement is the tagged union a sensor reports: a bare signal, a
// signed integer, a double, or a string. It is a value type; the zero
// value has no kind and is not the signal variant (use
// NewSignalMeasurement).
type Measurement struct {
	kind MeasurementKind
	i    int64
	f    float64
	s    string
}

func NewSignalMeasurement() Measurement { return Measurement{kind: MeasurementSignal} }

func NewIntegerMeasurement(v int64) Measurement {
	return Measurement{kind: MeasurementInteger, i: v}
}

func NewDoubleMeasurement(v float64) Measurement {
	return Measurement{kind: MeasurementDouble, f: v}
}

func NewStringMeasurement(v string) Measurement {
	return Measurement{kind: MeasurementString, s: v}
}

func (m Measurement) Kind() MeasurementKind { return m.kind }

func (m Measurement) Integer() (int64, bool) {
	return m.i, m.kind == MeasurementInteger
}

func (m Measurement) Double() (float64, bool) {
	return m.f, m.kind == MeasurementDouble
}

func (m Measurement) Text() (string, bool) {
	return m.s, m.kind == MeasurementString
}

// Display renders the value the way a log line or a logger-device
// actuator would.
func (m Measurement) Display() string {
	switch m.kind {
	case MeasurementSignal:
		return "signal"
	case MeasurementInteger:
		return fmt.Sprintf("%d", m.i)
	case MeasurementDouble:
		return fmt.Sprintf("%v", m.f)
	case MeasurementString:
		return m.s
	default:
		return ""
	}
}

// Equal is structural equality; cross-kind comparisons are always false.
func (m Measurement) Equal(other Measurement) bool {
	if m.kind != other.kind {
		return false
	}
	switch m.kind {
	case MeasurementSignal:
		return true
	case MeasurementInteger:
		return m.i == other.i
	case MeasurementDouble:
		return m.f == other.f
	case MeasurementString:
		return m.s == other.s
	default:
		return false
	}
}

// GreaterThan compares two measurements of the same ordered kind. The
// second return value is false when the comparison is undefined — either
// because the kinds differ or because the kind has no ordering (signal,
// string) — in which case the caller must treat the condition as unmet
// rather than erroring.
func (m Measurement) GreaterThan(other Measurement) (result bool, defined bool) {
	return m.compare(other, func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b })
}

func (m Measurement) LessThan(other Measurement) (result bool, defined bool) {
	return m.compare(other, func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b })
}

func (m Measurement) GreaterOrEqual(other Measurement) (result bool, defined bool) {
	return m.compare(other, func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b })
}

func (m Measurement) LessOrEqual(other Measurement) (result bool, defined bool) {
	return m.compare(other, func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b })
}

func (m Measurement) compare(other Measurement, intOp func(a, b int64) bool, floatOp func(a, b float64) bool) (bool, bool) {
	if m.kind != other.kind {
		return false, false
	}
	switch m.kind {
	case MeasurementInteger:
		return intOp(m.i, other.i), true
	case MeasurementDouble:
		// NaN is neither greater, less, nor equal to anything, Go's
		// float64 comparisons already encode that correctly.
		return floatOp(m.f, other.f), true
	default:
		return false, false
	}
}

type measurementWire struct {
	Kind  MeasurementKind `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (m Measurement) MarshalJSON() ([]byte, error) {
	w := measurementWire{Kind: m.kind}
	var (
		raw []byte
		err error
	)
	switch m.kind {
	case MeasurementInteger:
		raw, err = json.Marshal(m.i)
	case MeasurementDouble:
		raw, err = json.Marshal(m.f)
	case MeasurementString:
		raw, err = json.Marshal(m.s)
	}
	if err != nil {
		return nil, err
	}
	w.Value = raw
	return json.Marshal(w)
}

func (m *Measurement) UnmarshalJSON(data []byte) error {
	var w measurementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case MeasurementSignal:
		*m = NewSignalMeasurement()
	case MeasurementInteger:
		var v int64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("measurement: decoding integer: %w", err)
		}
		*m = NewIntegerMeasurement(v)
	case MeasurementDouble:
		var v float64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("measurement: decoding double: %w", err)
		}
		*m = NewDoubleMeasurement(v)
	case MeasurementString:
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("measurement: decoding string: %w", err)
		}
		*m = NewStringMeasurement(v)
	default:
		return fmt.Errorf("measurement: unknown kind %q", w.Kind)
	}
	return nil
}
