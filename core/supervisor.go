package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// DeviceConfig is the stored configuration for one local device: its
// type and its opaque JSON config blob, reused verbatim whenever the
// supervisor rebuilds the device after a crash.
type DeviceConfig struct {
	DeviceType DeviceType      `json:"device_type"`
	Config     json.RawMessage `json:"config"`
}

type deviceHandle struct {
	mu      sync.Mutex
	mailbox chan ActuationRequest
	cfg     DeviceConfig
	device  Device
	cancel  context.CancelFunc
}

func (h *deviceHandle) currentMailbox() chan ActuationRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mailbox
}

func (h *deviceHandle) setDevice(d Device) {
	h.mu.Lock()
	h.device = d
	h.mu.Unlock()
}

func (h *deviceHandle) currentDevice() Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.device
}

// Supervisor is the hardware supervisor (C2): it owns one dedicated
// worker per configured device, restarts a worker whose device errors
// out, and fans sensor events from every device into a single ordered
// channel for the node loop to consume.
type Supervisor struct {
	clock clock.Clock

	mu      sync.RWMutex
	devices map[string]*deviceHandle

	events chan FullSensorData

	ctx    context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

func NewSupervisor(ctx context.Context, clk clock.Clock) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	return &Supervisor{
		clock:   clk,
		devices: make(map[string]*deviceHandle),
		events:  make(chan FullSensorData, 256),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartDevices initializes every configured device and spawns its
// worker. Any device whose initial construction fails aborts startup,
// matching the original's behavior of failing `start_devices` as a
// whole rather than starting a partial set.
func (s *Supervisor) StartDevices(configs map[string]DeviceConfig) error {
	built := make(map[string]Device, len(configs))
	for name, cfg := range configs {
		logrus.Infof("registering peripheral %q of type %q", name, cfg.DeviceType)
		dev, err := InitializeDevice(cfg.DeviceType, cfg.Config)
		if err != nil {
			return fmt.Errorf("starting device %q: %w", name, err)
		}
		built[name] = dev
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, cfg := range configs {
		handleCtx, cancel := context.WithCancel(s.ctx)
		handle := &deviceHandle{
			mailbox: make(chan ActuationRequest, mailboxCapacity),
			cfg:     cfg,
			cancel:  cancel,
		}
		handle.setDevice(built[name])
		s.devices[name] = handle

		s.wg.Add(1)
		go s.runDevice(handleCtx, name, handle, built[name])
	}

	logrus.Info("all devices started")
	return nil
}

func (s *Supervisor) runDevice(ctx context.Context, name string, handle *deviceHandle, first Device) {
	defer s.wg.Done()

	device := first
	for {
		mailbox := handle.currentMailbox()

		err := runDeviceWorker(ctx, s.clock, name, device, mailbox, s.events)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			return
		}

		logrus.Errorf("device %q worker exited, rebuilding: %v", name, err)

		handle.mu.Lock()
		handle.mailbox = make(chan ActuationRequest, mailboxCapacity)
		cfg := handle.cfg
		handle.mu.Unlock()

		rebuilt, rerr := InitializeDevice(cfg.DeviceType, cfg.Config)
		if rerr != nil {
			logrus.Errorf("device %q: failed to reinitialize, worker will not be respawned: %v", name, rerr)
			return
		}
		device = rebuilt
		handle.setDevice(device)
	}
}

// ActuateLocal forwards an actuation request to the named local device.
// It returns false if no such device is configured (a mis-targeted
// rule), in which case the caller has not taken ownership of reply.
func (s *Supervisor) ActuateLocal(ctx context.Context, data FullActuatorData, reply chan<- ActuationResult) bool {
	s.mu.RLock()
	handle, ok := s.devices[data.DeviceName]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		req := ActuationRequest{Ctx: ctx, Data: data.ToRequestData(), Reply: reply}
		select {
		case handle.currentMailbox() <- req:
		case <-ctx.Done():
			logrus.Errorf("local actuation request for %q dropped before delivery: %v", data.DeviceName, ctx.Err())
		}
	}()
	return true
}

// ActuateRemote forwards an actuation request arriving from a peer. Unlike
// ActuateLocal, the caller always gets an answer: an unknown device
// synthesizes ActuatorError(-500, ...) instead of leaving the remote
// request unanswered.
func (s *Supervisor) ActuateRemote(ctx context.Context, data FullActuatorData, respond func(ActuationResult) error) {
	s.mu.RLock()
	handle, ok := s.devices[data.DeviceName]
	s.mu.RUnlock()

	if !ok {
		if err := respond(ActuatorError(-500, fmt.Sprintf("unknown device %q", data.DeviceName))); err != nil {
			logrus.Errorf("remote response channel was closed while trying to send a response through it: %v", err)
		}
		return
	}

	reply := make(chan ActuationResult, 1)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		req := ActuationRequest{Ctx: ctx, Data: data.ToRequestData(), Reply: reply}
		select {
		case handle.currentMailbox() <- req:
		case <-ctx.Done():
			if err := respond(ActuatorError(-500, "actuation request failed on in-flight actuation task")); err != nil {
				logrus.Errorf("remote response channel was closed while trying to send a response through it: %v", err)
			}
			return
		}

		select {
		case result := <-reply:
			if err := respond(result); err != nil {
				logrus.Errorf("remote response channel was closed while trying to send a response through it: %v", err)
			}
		case <-ctx.Done():
			if err := respond(ActuatorError(-500, "actuation request failed on in-flight actuation task")); err != nil {
				logrus.Errorf("remote response channel was closed while trying to send a response through it: %v", err)
			}
		}
	}()
}

// NextSensorEvent blocks until a device anywhere in the supervisor
// reports a sensor event, or ctx is cancelled.
func (s *Supervisor) NextSensorEvent(ctx context.Context) (FullSensorData, bool) {
	select {
	case ev := <-s.events:
		return ev, true
	case <-ctx.Done():
		return FullSensorData{}, false
	}
}

// Devices returns the device-type catalogue for identity broadcasts.
func (s *Supervisor) Devices() map[string]DeviceCatalogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]DeviceCatalogEntry, len(s.devices))
	for name, handle := range s.devices {
		out[name] = DeviceCatalogEntry{DeviceType: handle.cfg.DeviceType}
	}
	return out
}

// Shutdown cancels every device worker, waits for in-flight actuation
// tasks and worker goroutines to drain, then resets every device.
func (s *Supervisor) Shutdown() {
	s.cancel()
	s.inflight.Wait()
	s.wg.Wait()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, handle := range s.devices {
		if dev := handle.currentDevice(); dev != nil {
			if err := dev.Reset(); err != nil {
				logrus.Errorf("device %q: reset failed during shutdown: %v", name, err)
			}
		}
	}
}
