// Package transport delivers readings to the remote collector.
package transport

import (
	"context"
	"log/slog"
	"time"

	"tempguard-device/internal/config"
	"tempguard-device/internal/network"
	"tempguard-device/internal/reading"
)

// Transport delivers one serialized reading. A failed send is reported to the
// caller and the reading is dropped; nothing is retried.
type Transport interface {
	Name() string
	Send(ctx context.Context, r reading.Reading) error
}

// Session is implemented by transports that hold a persistent connection.
type Session interface {
	// EnsureConnected blocks until the session is up or ctx is done.
	EnsureConnected(ctx context.Context) error
	// Service is called every loop iteration, whether or not a send is due.
	Service()
	IsConnected() bool
}

// New builds the transport selected by cfg.Transport. Both variants resolve
// hostnames through cfg.DNSServer.
func New(cfg config.Config, logger *slog.Logger) Transport {
	resolver := network.Resolver(cfg.DNSServer)
	if cfg.Transport == config.TransportMQTT {
		return NewMQTTClient(MQTTOptions{
			Broker:             cfg.MQTTBroker,
			Port:               cfg.MQTTPort,
			TLS:                cfg.MQTTTLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			ClientID:           cfg.MQTTClientID,
			Username:           cfg.MQTTUsername,
			Password:           cfg.MQTTPassword,
			RetryDelay:         cfg.MQTTRetryDelay,
			Resolver:           resolver,
		}, logger)
	}
	return NewHTTPClient(HTTPOptions{
		URL:                cfg.BackendURL,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timeout:            cfg.HTTPTimeout,
		Resolver:           resolver,
	}, logger)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
