package core

import (
	"encoding/json"
	"testing"
)

func TestMeasurementJSONRoundTrip(t *testing.T) {
	cases := []Measurement{
		NewSignalMeasurement(),
		NewIntegerMeasurement(-42),
		NewDoubleMeasurement(3.5),
		NewStringMeasurement("hello"),
	}

	for _, m := range cases {
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal %v: %v", m, err)
		}
		var out Measurement
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !out.Equal(m) {
			t.Fatalf("round trip mismatch: got %v, want %v", out, m)
		}
	}
}

func TestMeasurementEqualCrossKind(t *testing.T) {
	if NewIntegerMeasurement(1).Equal(NewDoubleMeasurement(1)) {
		t.Fatal("cross-kind Equal should be false")
	}
}

func TestMeasurementCompareUndefined(t *testing.T) {
	cases := []struct {
		name string
		a, b Measurement
	}{
		{"cross-kind", NewIntegerMeasurement(1), NewDoubleMeasurement(1)},
		{"signal", NewSignalMeasurement(), NewSignalMeasurement()},
		{"string", NewStringMeasurement("a"), NewStringMeasurement("b")},
	}
	for _, c := range cases {
		if _, defined := c.a.GreaterThan(c.b); defined {
			t.Errorf("%s: expected undefined comparison", c.name)
		}
	}
}

func TestMeasurementCompareDefined(t *testing.T) {
	lo, hi := NewIntegerMeasurement(1), NewIntegerMeasurement(2)
	if res, defined := hi.GreaterThan(lo); !defined || !res {
		t.Fatalf("expected hi > lo, got res=%v defined=%v", res, defined)
	}
	if res, defined := lo.LessThan(hi); !defined || !res {
		t.Fatalf("expected lo < hi, got res=%v defined=%v", res, defined)
	}

	dlo, dhi := NewDoubleMeasurement(1.5), NewDoubleMeasurement(2.5)
	if res, defined := dhi.GreaterOrEqual(dlo); !defined || !res {
		t.Fatalf("expected dhi >= dlo, got res=%v defined=%v", res, defined)
	}
}

func TestMeasurementCompareNaN(t *testing.T) {
	nan := NewDoubleMeasurement(nanValue())
	other := NewDoubleMeasurement(1.0)
	if res, defined := nan.GreaterThan(other); !defined || res {
		t.Fatalf("NaN > 1.0 should be defined=true, result=false; got res=%v defined=%v", res, defined)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
