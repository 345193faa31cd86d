package core

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// mailboxCapacity bounds the per-attempt actuation mailbox. The original
// uses an unbounded std::sync::mpsc channel; a worker drains its mailbox
// fully every ~5ms tick, so a large fixed buffer is an effectively
// unbounded approximation for any realistic request rate.
const mailboxCapacity = 4096

// workerTick is how often a device's dedicated worker polls its mailbox,
// senses, and drains pending actuations.
const workerTick = 5 * time.Millisecond

type rawSensorEvent struct {
	sensorName string
	value      Measurement
}

type collectingSink struct {
	events []rawSensorEvent
}

func (s *collectingSink) Write(sensorName string, value Measurement) {
	s.events = append(s.events, rawSensorEvent{sensorName: sensorName, value: value})
}

// runDeviceWorker is the body of one dedicated device-worker goroutine.
// It pins itself to its own OS thread for the lifetime of the goroutine,
// the Go analogue of the original's std::thread::spawn, since devices may
// eventually need to bit-bang timing-sensitive GPIO. It returns when the
// device reports an error (triggering a supervisor rebuild) or when ctx
// is cancelled (triggering a clean exit with no rebuild).
func runDeviceWorker(ctx context.Context, clk clock.Clock, deviceName string, device Device, mailbox <-chan ActuationRequest, events chan<- FullSensorData) error {
	runtime.LockOSThread()

	logrus.Debugf("entered worker thread for device %q", deviceName)

	var pending []ActuationRequest

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pending = pending[:0]
	drain:
		for {
			select {
			case req := <-mailbox:
				pending = append(pending, req)
			default:
				break drain
			}
		}

		sink := &collectingSink{}
		if err := device.Sense(sink); err != nil {
			return fmt.Errorf("device %q: sense failed: %w", deviceName, err)
		}

		for _, ev := range sink.events {
			out := FullSensorData{DeviceName: deviceName, SensorName: ev.sensorName, Value: ev.value}
			select {
			case events <- out:
			case <-ctx.Done():
				return nil
			}
		}

		for _, req := range pending {
			result := device.Actuate(req.Data)
			select {
			case req.Reply <- result:
			case <-req.Ctx.Done():
				logrus.Errorf("actuation response channel for %q on device %q was abandoned: %v",
					req.Data.ActuatorName(), deviceName, req.Ctx.Err())
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-clk.After(workerTick):
		case <-ctx.Done():
			return nil
		}
	}
}
