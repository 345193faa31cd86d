package core

import "testing"

func TestStoreNewStoreIncludesLocal(t *testing.T) {
	local := PeerID{1}
	s := NewStore(local, PeerData{Name: "me", Devices: map[string]DeviceCatalogEntry{
		"buzzer": {DeviceType: DeviceTypeBuzzer},
	}})

	name, ok := s.PeerName(local)
	if !ok || name != "me" {
		t.Fatalf("PeerName(local) = %q, %v", name, ok)
	}
}

func TestStoreInsertSensorDataOrphans(t *testing.T) {
	local := PeerID{1}
	s := NewStore(local, PeerData{Name: "me", Devices: map[string]DeviceCatalogEntry{
		"buzzer": {DeviceType: DeviceTypeBuzzer},
	}})

	unknownPeer := PeerID{2}
	if ok := s.InsertSensorData(unknownPeer, FullSensorData{DeviceName: "buzzer", SensorName: "x"}); ok {
		t.Fatal("inserting sensor data for an unknown peer should return false")
	}
	if ok := s.InsertSensorData(local, FullSensorData{DeviceName: "unknown-device", SensorName: "x"}); ok {
		t.Fatal("inserting sensor data for an unknown device should return false")
	}
	if ok := s.InsertSensorData(local, FullSensorData{DeviceName: "buzzer", SensorName: "x", Value: NewIntegerMeasurement(5)}); !ok {
		t.Fatal("inserting sensor data for a known peer/device should succeed")
	}

	v, ok := s.SensorValue(local, "buzzer", "x")
	if !ok || !v.Equal(NewIntegerMeasurement(5)) {
		t.Fatalf("SensorValue = %v, %v", v, ok)
	}
}

func TestStoreInsertPeerDataDiscardsPriorSensors(t *testing.T) {
	local := PeerID{1}
	peer := PeerID{2}
	s := NewStore(local, PeerData{})
	s.InsertPeerData(peer, PeerData{Name: "a", Devices: map[string]DeviceCatalogEntry{"buzzer": {DeviceType: DeviceTypeBuzzer}}})
	s.InsertSensorData(peer, FullSensorData{DeviceName: "buzzer", SensorName: "x", Value: NewIntegerMeasurement(1)})

	s.InsertPeerData(peer, PeerData{Name: "a", Devices: map[string]DeviceCatalogEntry{"buzzer": {DeviceType: DeviceTypeBuzzer}}})
	if _, ok := s.SensorValue(peer, "buzzer", "x"); ok {
		t.Fatal("re-inserting peer data should discard prior sensor readings")
	}
}

func TestStoreFullSystemStateSnapshot(t *testing.T) {
	local := PeerID{1}
	s := NewStore(local, PeerData{Name: "me", Devices: map[string]DeviceCatalogEntry{
		"buzzer": {DeviceType: DeviceTypeBuzzer},
	}})
	s.InsertSensorData(local, FullSensorData{DeviceName: "buzzer", SensorName: "x", Value: NewIntegerMeasurement(3)})

	snap := s.FullSystemState()
	peer, ok := snap.Peers[local.String()]
	if !ok {
		t.Fatal("expected the local peer in the snapshot")
	}
	dev, ok := peer.Devices["buzzer"]
	if !ok {
		t.Fatal("expected the buzzer device in the snapshot")
	}
	if val, ok := dev.Sensors["x"]; !ok || !val.Equal(NewIntegerMeasurement(3)) {
		t.Fatalf("snapshot sensor value = %v, %v", val, ok)
	}
}

func TestStorePeerLockIndependence(t *testing.T) {
	local := PeerID{1}
	peerA := PeerID{2}
	peerB := PeerID{3}
	s := NewStore(local, PeerData{})
	s.InsertPeerData(peerA, PeerData{Name: "a", Devices: map[string]DeviceCatalogEntry{"buzzer": {DeviceType: DeviceTypeBuzzer}}})
	s.InsertPeerData(peerB, PeerData{Name: "b", Devices: map[string]DeviceCatalogEntry{"buzzer": {DeviceType: DeviceTypeBuzzer}}})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.InsertSensorData(peerA, FullSensorData{DeviceName: "buzzer", SensorName: "x", Value: NewIntegerMeasurement(int64(i))})
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		s.InsertSensorData(peerB, FullSensorData{DeviceName: "buzzer", SensorName: "x", Value: NewIntegerMeasurement(int64(i))})
	}
	<-done

	if _, ok := s.SensorValue(peerA, "buzzer", "x"); !ok {
		t.Fatal("expected peerA's sensor value to be set")
	}
	if _, ok := s.SensorValue(peerB, "buzzer", "x"); !ok {
		t.Fatal("expected peerB's sensor value to be set")
	}
}
