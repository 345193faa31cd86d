package devices

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"diodt/core"
)

func init() {
	core.RegisterDeviceType(core.DeviceTypeLogger, NewLogger)
}

const loggerSignalDefault = "Received signal!"

type loggerConfig struct {
	Prefix *string `json:"prefix"`
	Suffix *string `json:"suffix"`
	Signal *string `json:"signal"`
}

// Logger has no sensors and one no-op actuator that logs whatever it
// receives. It exists to make rules observable in a scenario with no
// real hardware attached (§8.2).
type Logger struct {
	prefix string
	suffix string
	signal string
}

func NewLogger(raw json.RawMessage) (core.Device, error) {
	var cfg loggerConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("logger: invalid config: %w", err)
		}
	}

	l := &Logger{signal: loggerSignalDefault}
	if cfg.Prefix != nil {
		l.prefix = *cfg.Prefix
	}
	if cfg.Suffix != nil {
		l.suffix = *cfg.Suffix
	}
	if cfg.Signal != nil {
		l.signal = *cfg.Signal
	}
	return l, nil
}

func (l *Logger) Sense(sink core.SensorSink) error { return nil }

func (l *Logger) Actuate(req core.ActuationRequestData) core.ActuationResult {
	if req.Data().Kind() == core.ActuatorKindSignal {
		logrus.Infof("%s: %s", req.ActuatorName(), l.signal)
	} else {
		logrus.Infof("%s: %s%s%s", req.ActuatorName(), l.prefix, req.Data().Display(), l.suffix)
	}
	return core.Success()
}

func (l *Logger) Reset() error { return nil }
