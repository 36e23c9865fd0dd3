package app

import (
	"context"
	"log/slog"
	"time"

	"tempguard-device/internal/config"
	"tempguard-device/internal/device"
	"tempguard-device/internal/network"
	"tempguard-device/internal/reading"
	"tempguard-device/internal/sensor"
	"tempguard-device/internal/transport"
)

// Components are the pieces Run assembles into a device. Tests swap them out.
type Components struct {
	OpenSensor device.SensorOpener
	Network    device.Network
	Transport  transport.Transport
}

// Run builds the device from cfg and drives it until ctx is done.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var opened *sensor.Device
	defer func() {
		if opened != nil {
			if err := opened.Close(); err != nil {
				logger.Warn("sensor close", "error", err)
			}
		}
	}()

	c := Components{
		OpenSensor: func(ctx context.Context) (device.Sensor, error) {
			dev, err := sensor.Open(ctx, sensor.OptionsFromConfig(cfg), logger.With("component", "sensor"))
			if err != nil {
				return nil, err
			}
			opened = dev
			return dev, nil
		},
		Network: network.NewManager(
			network.NewInterfaceLink(cfg.WiFiInterface, cfg.WiFiSSID, cfg.WiFiPassword),
			network.Options{
				SSID:         cfg.WiFiSSID,
				Timeout:      cfg.WiFiConnectTimeout,
				PollInterval: 500 * time.Millisecond,
				SettleDelay:  time.Second,
				DNSServer:    cfg.DNSServer,
			},
			logger.With("component", "network"),
		),
		Transport: transport.New(cfg, logger.With("component", "transport")),
	}
	return RunWith(ctx, cfg, c, logger)
}

// RunWith drives a device built from the given components.
func RunWith(ctx context.Context, cfg config.Config, c Components, logger *slog.Logger) error {
	logger.Info("initializing device",
		"transport", cfg.Transport,
		"sensor_model", cfg.SensorModel,
		"sensor_address", cfg.SensorAddress,
		"failure_policy", cfg.SensorFailurePolicy,
		"send_interval", cfg.SendInterval,
		"insecure_skip_verify", cfg.InsecureSkipVerify,
	)

	if m, ok := c.Transport.(*transport.MQTTClient); ok {
		defer m.Disconnect()
	}

	d := device.New(device.Options{
		DeviceID:      cfg.DeviceID,
		OpenSensor:    c.OpenSensor,
		Network:       c.Network,
		Transport:     c.Transport,
		Battery:       batteryFor(cfg.Transport),
		FailurePolicy: cfg.SensorFailurePolicy,
		SendInterval:  cfg.SendInterval,
		LoopPeriod:    cfg.LoopPeriod,
	}, logger.With("component", "device"))

	err := d.Run(ctx)
	logger.Info("device stopped", "state", d.State().String(), "sent", d.Sent())
	return err
}

func batteryFor(transportName string) reading.BatteryGauge {
	if transportName == config.TransportMQTT {
		return reading.MQTTBatteryMock
	}
	return reading.HTTPBatteryMock
}
