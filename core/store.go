package core

import "sync"

// SensorState is the most recently observed value of one sensor channel.
type SensorState struct {
	CurrentValue Measurement `json:"current_value"`
}

// DeviceState is a peer's known catalogue entry for one device, plus
// whatever sensor readings have arrived for it so far.
type DeviceState struct {
	DeviceType DeviceType              `json:"device_type"`
	Sensors    map[string]SensorState `json:"sensors"`
}

func newDeviceState(deviceType DeviceType) *DeviceState {
	return &DeviceState{DeviceType: deviceType, Sensors: make(map[string]SensorState)}
}

// PeerState is everything the mesh store knows about one node: its
// published name and the state of every device in its catalogue. It
// carries its own lock so that a lookup on one peer never blocks a
// concurrent update to another.
type PeerState struct {
	mu      sync.RWMutex
	Name    string
	Devices map[string]*DeviceState
}

func newPeerState(data PeerData) *PeerState {
	devices := make(map[string]*DeviceState, len(data.Devices))
	for name, entry := range data.Devices {
		devices[name] = newDeviceState(entry.DeviceType)
	}
	return &PeerState{Name: data.Name, Devices: devices}
}

// Store is the mesh store (C6): a thread-safe map from PeerID to that
// peer's last-known state. The node loop is its sole writer; the web
// bridge only ever reads from it.
type Store struct {
	mu    sync.RWMutex
	local PeerID
	peers map[PeerID]*PeerState
}

// NewStore creates a store with the local peer's own identity already
// inserted, satisfying the invariant that local state is visible before
// any network event can arrive.
func NewStore(local PeerID, localData PeerData) *Store {
	s := &Store{local: local, peers: make(map[PeerID]*PeerState)}
	s.InsertPeerData(local, localData)
	return s
}

func (s *Store) LocalPeerID() PeerID { return s.local }

// InsertPeerData replaces a peer's name and device catalogue. Any prior
// sensor readings for that peer are discarded, since the catalogue may
// have changed shape.
func (s *Store) InsertPeerData(peer PeerID, data PeerData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[peer] = newPeerState(data)
}

// InsertSensorData records a sensor reading for a known peer and device.
// It returns false if the peer or device is unrecognized — an orphan
// event the caller should log and drop rather than propagate.
func (s *Store) InsertSensorData(peer PeerID, event FullSensorData) bool {
	s.mu.RLock()
	state, ok := s.peers[peer]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	device, ok := state.Devices[event.DeviceName]
	if !ok {
		return false
	}
	device.Sensors[event.SensorName] = SensorState{CurrentValue: event.Value}
	return true
}

// PeerName returns a known peer's published name.
func (s *Store) PeerName(peer PeerID) (string, bool) {
	s.mu.RLock()
	state, ok := s.peers[peer]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.Name, true
}

// SensorValue returns the last known value for one sensor channel.
func (s *Store) SensorValue(peer PeerID, deviceName, sensorName string) (Measurement, bool) {
	s.mu.RLock()
	state, ok := s.peers[peer]
	s.mu.RUnlock()
	if !ok {
		return Measurement{}, false
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	device, ok := state.Devices[deviceName]
	if !ok {
		return Measurement{}, false
	}
	sensor, ok := device.Sensors[sensorName]
	if !ok {
		return Measurement{}, false
	}
	return sensor.CurrentValue, true
}

// DeviceSnapshot and PeerSnapshot are the plain, lock-free structs the
// JSON boundary (the web bridge) serializes, taken as a point-in-time
// copy of the live store.
type DeviceSnapshot struct {
	DeviceType DeviceType             `json:"device_type"`
	Sensors    map[string]Measurement `json:"sensors"`
}

type PeerSnapshot struct {
	Name    string                     `json:"name"`
	Devices map[string]DeviceSnapshot `json:"devices"`
}

// FullSystemState is the whole store, base58-keyed, ready for JSON.
type FullSystemState struct {
	Peers map[string]PeerSnapshot `json:"peers"`
}

// FullSystemState snapshots the entire store for the web bridge's
// initial push to a newly connected client.
func (s *Store) FullSystemState() FullSystemState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make(map[string]PeerSnapshot, len(s.peers))
	for id, state := range s.peers {
		state.mu.RLock()
		devices := make(map[string]DeviceSnapshot, len(state.Devices))
		for name, dev := range state.Devices {
			sensors := make(map[string]Measurement, len(dev.Sensors))
			for sensorName, sensor := range dev.Sensors {
				sensors[sensorName] = sensor.CurrentValue
			}
			devices[name] = DeviceSnapshot{DeviceType: dev.DeviceType, Sensors: sensors}
		}
		peers[id.String()] = PeerSnapshot{Name: state.Name, Devices: devices}
		state.mu.RUnlock()
	}
	return FullSystemState{Peers: peers}
}
