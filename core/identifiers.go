package core

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// PeerID is the raw Ed25519 public key of a node, the stable
// globally-unique identifier described in the GLOSSARY. Comparisons and
// map lookups use this canonical byte form directly.
type PeerID [32]byte

// ParsePeerID decodes the base58 wire form used at JSON boundaries.
func ParsePeerID(s string) (PeerID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PeerID{}, fmt.Errorf("peer id: %w", err)
	}
	if len(raw) != 32 {
		return PeerID{}, fmt.Errorf("peer id: expected 32 bytes, got %d", len(raw))
	}
	var p PeerID
	copy(p[:], raw)
	return p, nil
}

func (p PeerID) String() string {
	return base58.Encode(p[:])
}

func (p PeerID) IsZero() bool {
	return p == PeerID{}
}

func (p PeerID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PeerID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePeerID(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// DeviceType is the closed, implementation-extensible set named in §6.
type DeviceType string

const (
	DeviceTypeTimer  DeviceType = "timer"
	DeviceTypeLogger DeviceType = "logger"
	DeviceTypeDHT11  DeviceType = "dht11"
	DeviceTypeBuzzer DeviceType = "buzzer"
)

// DeviceCatalogEntry is what an Identity broadcast shares about a device:
// its type, never its config.
type DeviceCatalogEntry struct {
	DeviceType DeviceType `json:"device_type"`
}

// PeerData is a node's published name and device catalogue (§4.4).
type PeerData struct {
	Name    string                         `json:"name"`
	Devices map[string]DeviceCatalogEntry `json:"devices"`
}

// FullSensorData is an event localized to one device's one sensor channel.
type FullSensorData struct {
	DeviceName string      `json:"device_name"`
	SensorName string      `json:"sensor_name"`
	Value      Measurement `json:"value"`
}

// FullActuatorData is a targeted actuation command.
type FullActuatorData struct {
	DeviceName   string        `json:"device_name"`
	ActuatorName string        `json:"actuator_name"`
	Data         ActuatorValue `json:"data"`
}

// ToRequestData strips the device routing and keeps only what the device
// contract needs.
func (f FullActuatorData) ToRequestData() ActuationRequestData {
	return NewActuationRequestData(f.ActuatorName, f.Data)
}

// RemoteActuatorRequest is the flat, gob-friendly wire twin of
// FullActuatorData, exchanged over the actuator request/response protocol
// (§9). Its Data field is itself a wire twin (RemoteActuatorValue) since
// ActuatorValue has no exported fields for gob to see.
type RemoteActuatorRequest struct {
	DeviceName   string
	ActuatorName string
	Data         RemoteActuatorValue
}

// ToRemote is the lossless half of the bijection.
func (f FullActuatorData) ToRemote() RemoteActuatorRequest {
	return RemoteActuatorRequest{DeviceName: f.DeviceName, ActuatorName: f.ActuatorName, Data: f.Data.ToRemote()}
}

// ToRequest is the other half of the bijection.
func (w RemoteActuatorRequest) ToRequest() FullActuatorData {
	return FullActuatorData{DeviceName: w.DeviceName, ActuatorName: w.ActuatorName, Data: w.Data.ToValue()}
}

// UniversalSensorIdentifier identifies one sensor channel on one node.
// Node == nil means "local node"; used as the rule index key.
type UniversalSensorIdentifier struct {
	Node       *PeerID `json:"node,omitempty"`
	DeviceName string  `json:"device_name"`
	SensorName string  `json:"sensor_name"`
}

// Equal performs the structural comparison described in §3.
func (u UniversalSensorIdentifier) Equal(other UniversalSensorIdentifier) bool {
	if u.DeviceName != other.DeviceName || u.SensorName != other.SensorName {
		return false
	}
	if (u.Node == nil) != (other.Node == nil) {
		return false
	}
	if u.Node == nil {
		return true
	}
	return *u.Node == *other.Node
}

// usidKey is the comparable map key derived from an identifier: Go map
// keys must be comparable, and a *PeerID field isn't, so the index uses
// this flattened form instead.
type usidKey struct {
	hasNode bool
	node    PeerID
	device  string
	sensor  string
}

func (u UniversalSensorIdentifier) key() usidKey {
	k := usidKey{device: u.DeviceName, sensor: u.SensorName}
	if u.Node != nil {
		k.hasNode = true
		k.node = *u.Node
	}
	return k
}

func localIdentifier(device, sensor string) UniversalSensorIdentifier {
	return UniversalSensorIdentifier{DeviceName: device, SensorName: sensor}
}

func remoteIdentifier(peer PeerID, device, sensor string) UniversalSensorIdentifier {
	return UniversalSensorIdentifier{Node: &peer, DeviceName: device, SensorName: sensor}
}

// Action is a command to actuate a specific actuator on a specific node.
// Node == nil or Node == the local peer means actuate locally.
type Action struct {
	Node     *PeerID          `json:"node,omitempty"`
	Actuator FullActuatorData `json:"actuator"`
}

// IsLocal reports whether this action targets the given local peer id.
func (a Action) IsLocal(local PeerID) bool {
	return a.Node == nil || *a.Node == local
}

// ConditionKind tags a ConditionOp variant.
type ConditionKind string

const (
	ConditionAny               ConditionKind = "any"
	ConditionEqual              ConditionKind = "equal"
	ConditionGreaterThan        ConditionKind = "greater_than"
	ConditionLessThan           ConditionKind = "less_than"
	ConditionGreaterOrEqualThan ConditionKind = "greater_or_equal_than"
	ConditionLessOrEqualThan    ConditionKind = "less_or_equal_than"
)

// ConditionOp is the condition half of a Rule.
type ConditionOp struct {
	Kind  ConditionKind
	Value Measurement
}

func AnyCondition() ConditionOp { return ConditionOp{Kind: ConditionAny} }

func EqualCondition(v Measurement) ConditionOp {
	return ConditionOp{Kind: ConditionEqual, Value: v}
}

func GreaterThanCondition(v Measurement) ConditionOp {
	return ConditionOp{Kind: ConditionGreaterThan, Value: v}
}

func LessThanCondition(v Measurement) ConditionOp {
	return ConditionOp{Kind: ConditionLessThan, Value: v}
}

func GreaterOrEqualThanCondition(v Measurement) ConditionOp {
	return ConditionOp{Kind: ConditionGreaterOrEqualThan, Value: v}
}

func LessOrEqualThanCondition(v Measurement) ConditionOp {
	return ConditionOp{Kind: ConditionLessOrEqualThan, Value: v}
}

// Matches evaluates the condition against an observed value. A type
// mismatch on an ordering comparison is "undefined" and is treated as no
// match (§4.5, §8, §9 open question).
func (c ConditionOp) Matches(observed Measurement) bool {
	switch c.Kind {
	case ConditionAny:
		return true
	case ConditionEqual:
		return observed.Equal(c.Value)
	case ConditionGreaterThan:
		ok, defined := observed.GreaterThan(c.Value)
		return defined && ok
	case ConditionLessThan:
		ok, defined := observed.LessThan(c.Value)
		return defined && ok
	case ConditionGreaterOrEqualThan:
		ok, defined := observed.GreaterOrEqual(c.Value)
		return defined && ok
	case ConditionLessOrEqualThan:
		ok, defined := observed.LessOrEqual(c.Value)
		return defined && ok
	default:
		return false
	}
}

type conditionWire struct {
	Operation ConditionKind `json:"operation"`
	Value     *Measurement  `json:"value,omitempty"`
}

func (c ConditionOp) MarshalJSON() ([]byte, error) {
	w := conditionWire{Operation: c.Kind}
	if c.Kind != ConditionAny {
		w.Value = &c.Value
	}
	return json.Marshal(w)
}

func (c *ConditionOp) UnmarshalJSON(data []byte) error {
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Kind = w.Operation
	if w.Value != nil {
		c.Value = *w.Value
	}
	return nil
}

// Rule is a (sensor selector, condition, action) triple.
type Rule struct {
	Sensor UniversalSensorIdentifier `json:"sensor"`
	On     ConditionOp               `json:"on"`
	Then   Action                    `json:"then"`
}
