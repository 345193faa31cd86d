package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

const testSupervisorDeviceType DeviceType = "test_device_for_supervisor_test"

type testDeviceCtl struct {
	mu             sync.Mutex
	constructCount int
	failOnce       bool
	resetCalled    bool
}

var (
	testCtlMu       sync.Mutex
	testDeviceCtls  = map[string]*testDeviceCtl{}
)

func getOrCreateTestControl(id string) *testDeviceCtl {
	testCtlMu.Lock()
	defer testCtlMu.Unlock()
	ctl, ok := testDeviceCtls[id]
	if !ok {
		ctl = &testDeviceCtl{}
		testDeviceCtls[id] = ctl
	}
	return ctl
}

type testSupervisorDevice struct {
	ctl *testDeviceCtl
}

type testSupervisorDeviceConfig struct {
	ID string `json:"id"`
}

func newTestSupervisorDevice(raw json.RawMessage) (Device, error) {
	var cfg testSupervisorDeviceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	ctl := getOrCreateTestControl(cfg.ID)
	ctl.mu.Lock()
	ctl.constructCount++
	ctl.mu.Unlock()
	return &testSupervisorDevice{ctl: ctl}, nil
}

func (d *testSupervisorDevice) Sense(sink SensorSink) error {
	d.ctl.mu.Lock()
	fail := d.ctl.failOnce
	if fail {
		d.ctl.failOnce = false
	}
	d.ctl.mu.Unlock()
	if fail {
		return errors.New("injected sense failure")
	}
	sink.Write("x", NewSignalMeasurement())
	return nil
}

func (d *testSupervisorDevice) Actuate(req ActuationRequestData) ActuationResult {
	return Success()
}

func (d *testSupervisorDevice) Reset() error {
	d.ctl.mu.Lock()
	d.ctl.resetCalled = true
	d.ctl.mu.Unlock()
	return nil
}

func init() {
	RegisterDeviceType(testSupervisorDeviceType, newTestSupervisorDevice)
}

func newTestSupervisorDeviceConfig(id string) DeviceConfig {
	raw, _ := json.Marshal(testSupervisorDeviceConfig{ID: id})
	return DeviceConfig{DeviceType: testSupervisorDeviceType, Config: raw}
}

func TestSupervisorRebuildsOnDeviceError(t *testing.T) {
	ctl := getOrCreateTestControl("rebuild-test")
	ctl.mu.Lock()
	ctl.failOnce = true
	ctl.constructCount = 0
	ctl.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup := NewSupervisor(ctx, clock.NewMock())
	if err := sup.StartDevices(map[string]DeviceConfig{"dev": newTestSupervisorDeviceConfig("rebuild-test")}); err != nil {
		t.Fatalf("StartDevices: %v", err)
	}

	evCtx, evCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer evCancel()
	ev, ok := sup.NextSensorEvent(evCtx)
	if !ok {
		t.Fatal("expected a sensor event after the device rebuilds")
	}
	if ev.DeviceName != "dev" || ev.SensorName != "x" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	ctl.mu.Lock()
	count := ctl.constructCount
	ctl.mu.Unlock()
	if count < 2 {
		t.Fatalf("expected at least 2 constructions (original + rebuild), got %d", count)
	}

	sup.Shutdown()
}

func TestSupervisorActuateLocalUnknownDevice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup := NewSupervisor(ctx, clock.NewMock())

	reply := make(chan ActuationResult, 1)
	if ok := sup.ActuateLocal(context.Background(), FullActuatorData{DeviceName: "missing"}, reply); ok {
		t.Fatal("ActuateLocal should return false for an unregistered device")
	}
}

func TestSupervisorActuateLocalDeliversReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// A real clock keeps the worker ticking, so it picks up the request
	// whenever it lands in the mailbox.
	sup := NewSupervisor(ctx, clock.New())
	if err := sup.StartDevices(map[string]DeviceConfig{"dev": newTestSupervisorDeviceConfig("actuate-local")}); err != nil {
		t.Fatalf("StartDevices: %v", err)
	}

	reply := make(chan ActuationResult, 1)
	data := FullActuatorData{DeviceName: "dev", ActuatorName: "a", Data: NewSignalActuatorValue()}
	if ok := sup.ActuateLocal(context.Background(), data, reply); !ok {
		t.Fatal("expected ActuateLocal to accept a known device")
	}

	select {
	case result := <-reply:
		if result.Kind() != ResultSuccess {
			t.Fatalf("expected success, got %v", result.Kind())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for actuation reply")
	}

	sup.Shutdown()
}

func TestSupervisorActuateRemoteUnknownDeviceRespondsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup := NewSupervisor(ctx, clock.NewMock())

	respCh := make(chan ActuationResult, 1)
	sup.ActuateRemote(context.Background(), FullActuatorData{DeviceName: "missing"}, func(r ActuationResult) error {
		respCh <- r
		return nil
	})

	select {
	case r := <-respCh:
		if r.Kind() != ResultActuatorError || r.Code() != -500 {
			t.Fatalf("expected a synthesized actuator error, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the synthesized response")
	}
}

func TestSupervisorShutdownResetsDevices(t *testing.T) {
	ctl := getOrCreateTestControl("shutdown-test")
	ctl.mu.Lock()
	ctl.resetCalled = false
	ctl.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup := NewSupervisor(ctx, clock.NewMock())
	if err := sup.StartDevices(map[string]DeviceConfig{"dev": newTestSupervisorDeviceConfig("shutdown-test")}); err != nil {
		t.Fatalf("StartDevices: %v", err)
	}

	sup.Shutdown()

	ctl.mu.Lock()
	reset := ctl.resetCalled
	ctl.mu.Unlock()
	if !reset {
		t.Fatal("expected Reset to be called on shutdown")
	}
}
