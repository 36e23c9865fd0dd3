// Package device runs the sensor-to-collector loop.
//
// A Device moves through BOOT, SENSOR_INIT, NETWORK_CONNECT and, for
// session transports, TRANSPORT_CONNECT before settling in READY_LOOP. The
// loop falls back to NETWORK_CONNECT when the link drops and to
// TRANSPORT_CONNECT when the session drops. A failed SENSOR_INIT is terminal.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"tempguard-device/internal/config"
	"tempguard-device/internal/reading"
	"tempguard-device/internal/transport"
)

// ErrRestartRequested is returned by Run when the sensor is missing and the
// failure policy asks for a process restart.
var ErrRestartRequested = errors.New("device restart requested")

type State int32

const (
	StateBoot State = iota
	StateSensorInit
	StateNetworkConnect
	StateTransportConnect
	StateReady
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "BOOT"
	case StateSensorInit:
		return "SENSOR_INIT"
	case StateNetworkConnect:
		return "NETWORK_CONNECT"
	case StateTransportConnect:
		return "TRANSPORT_CONNECT"
	case StateReady:
		return "READY_LOOP"
	case StateHalted:
		return "HALTED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type Network interface {
	Connect(ctx context.Context) error
	IsConnected() bool
}

type Sensor interface {
	ReadTemperature() (float64, error)
}

// SensorOpener initializes the sensor. It runs once, in SENSOR_INIT.
type SensorOpener func(ctx context.Context) (Sensor, error)

type Options struct {
	DeviceID      string
	OpenSensor    SensorOpener
	Network       Network
	Transport     transport.Transport
	Battery       reading.BatteryGauge
	FailurePolicy string
	SendInterval  time.Duration
	LoopPeriod    time.Duration
}

// Device is the device context: every handle the loop needs, owned for the
// life of the process.
type Device struct {
	id            string
	openSensor    SensorOpener
	network       Network
	transport     transport.Transport
	session       transport.Session
	battery       reading.BatteryGauge
	failurePolicy string
	sendInterval  time.Duration
	loopPeriod    time.Duration
	logger        *slog.Logger

	sensor   Sensor
	state    atomic.Int32
	lastSend time.Time
	sent     atomic.Int64
}

func New(opts Options, logger *slog.Logger) *Device {
	if opts.SendInterval <= 0 {
		opts.SendInterval = 5 * time.Second
	}
	if opts.LoopPeriod <= 0 {
		opts.LoopPeriod = 100 * time.Millisecond
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.PolicyHalt
	}

	d := &Device{
		id:            opts.DeviceID,
		openSensor:    opts.OpenSensor,
		network:       opts.Network,
		transport:     opts.Transport,
		battery:       opts.Battery,
		failurePolicy: opts.FailurePolicy,
		sendInterval:  opts.SendInterval,
		loopPeriod:    opts.LoopPeriod,
		logger:        logger,
	}
	if s, ok := opts.Transport.(transport.Session); ok {
		d.session = s
	}
	return d
}

func (d *Device) State() State { return State(d.state.Load()) }

// Sent is the number of readings handed to the transport without error.
func (d *Device) Sent() int64 { return d.sent.Load() }

func (d *Device) setState(s State) {
	prev := State(d.state.Swap(int32(s)))
	if prev != s {
		d.logger.Debug("state change", "from", prev.String(), "to", s.String())
	}
}

// Run drives the device until ctx is done. It returns ctx.Err() on shutdown
// and ErrRestartRequested when the sensor is missing under the restart
// policy. Under the halt policy a missing sensor parks the device until ctx
// is done.
func (d *Device) Run(ctx context.Context) error {
	d.setState(StateBoot)
	d.logger.Info("device starting", "transport", d.transport.Name(), "send_interval", d.sendInterval)

	d.setState(StateSensorInit)
	s, err := d.openSensor(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return d.sensorFailed(ctx, err)
	}
	d.sensor = s

	d.setState(StateNetworkConnect)
	if err := d.network.Connect(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(d.loopPeriod)
	defer ticker.Stop()

	for {
		d.step(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Device) sensorFailed(ctx context.Context, err error) error {
	d.setState(StateHalted)
	if d.failurePolicy == config.PolicyRestart {
		d.logger.Error("sensor not detected, restarting", "error", err)
		return fmt.Errorf("%w: %w", ErrRestartRequested, err)
	}
	d.logger.Error("sensor not detected, halting", "error", err)
	<-ctx.Done()
	return ctx.Err()
}

// step is one loop iteration.
func (d *Device) step(ctx context.Context) {
	if !d.network.IsConnected() {
		d.logger.Warn("wifi lost, reconnecting")
		d.setState(StateNetworkConnect)
		if err := d.network.Connect(ctx); err != nil {
			d.logger.Debug("wifi reconnect failed", "error", err)
		}
	}

	if d.session != nil && d.network.IsConnected() {
		if !d.session.IsConnected() {
			d.setState(StateTransportConnect)
			if err := d.session.EnsureConnected(ctx); err != nil {
				return
			}
		}
		d.session.Service()
	}

	if d.network.IsConnected() {
		d.setState(StateReady)
	}

	if !d.lastSend.IsZero() && time.Since(d.lastSend) < d.sendInterval {
		return
	}
	d.lastSend = time.Now()
	d.publish(ctx)
}

func (d *Device) publish(ctx context.Context) {
	temp, err := d.sensor.ReadTemperature()
	if err != nil {
		d.logger.Error("sensor read failed", "error", err)
		return
	}

	r := reading.Reading{
		DeviceID:    d.id,
		Temperature: temp,
		Battery:     d.battery.Level(),
	}
	d.logger.Info("sending sensor data",
		"device_id", r.DeviceID,
		"temperature_c", reading.FormatTemperature(r.Temperature),
		"battery_pct", r.Battery,
	)

	if !d.network.IsConnected() {
		d.logger.Warn("skipped send, wifi not connected")
		return
	}
	if d.session != nil && !d.session.IsConnected() {
		d.logger.Warn("skipped send, transport not connected")
		return
	}

	// The transport already logged the failure.
	if err := d.transport.Send(ctx, r); err != nil {
		d.logger.Debug("reading dropped", "transport", d.transport.Name(), "error", err)
		return
	}
	d.sent.Add(1)
}
