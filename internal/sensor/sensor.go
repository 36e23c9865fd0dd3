// Package sensor talks to the temperature sensor on the I2C bus.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"tempguard-device/internal/config"
)

// Sensor returns a fresh temperature reading in °C on every call.
type Sensor interface {
	ReadTemperature() (float64, error)
	Halt() error
}

type Options struct {
	Model    string
	Bus      string // empty selects the first registered bus
	Address  uint16
	Attempts int
	Delay    time.Duration
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Model:    cfg.SensorModel,
		Bus:      cfg.I2CBus,
		Address:  cfg.SensorAddress,
		Attempts: cfg.SensorInitAttempts,
		Delay:    cfg.SensorInitDelay,
	}
}

// Device is a probed sensor together with the bus it was found on.
type Device struct {
	Sensor
	bus i2c.BusCloser
}

// Close halts the sensor and releases the bus.
func (d *Device) Close() error {
	return errors.Join(d.Sensor.Halt(), d.bus.Close())
}

// Open initializes periph host drivers, opens the bus and probes the sensor.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", opts.Bus, err)
	}

	s, err := Probe(ctx, bus, opts, logger)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return &Device{Sensor: s, bus: bus}, nil
}

// Probe looks for the configured sensor on bus, retrying opts.Attempts times
// with opts.Delay between attempts.
func Probe(ctx context.Context, bus i2c.Bus, opts Options, logger *slog.Logger) (Sensor, error) {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		s, err := newDriver(bus, opts)
		if err == nil {
			logger.Info("sensor detected",
				"model", opts.Model,
				"address", fmt.Sprintf("0x%02X", opts.Address),
				"attempt", attempt,
			)
			return s, nil
		}
		lastErr = err
		logger.Warn("sensor probe failed",
			"model", opts.Model,
			"address", fmt.Sprintf("0x%02X", opts.Address),
			"attempt", attempt,
			"error", err,
		)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Delay):
		}
	}
	return nil, fmt.Errorf("sensor not detected at 0x%02X after %d attempts: %w", opts.Address, attempts, lastErr)
}

func newDriver(bus i2c.Bus, opts Options) (Sensor, error) {
	switch opts.Model {
	case config.SensorBME280:
		return NewBME280(bus, opts.Address)
	case config.SensorTMP117, "":
		return NewTMP117(bus, opts.Address)
	default:
		return nil, fmt.Errorf("unsupported sensor model %q", opts.Model)
	}
}
