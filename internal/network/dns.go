package network

import (
	"context"
	"net"
)

// Resolver sends every DNS query to server (host:port) instead of the system
// resolver. An empty server returns net.DefaultResolver.
func Resolver(server string) *net.Resolver {
	if server == "" {
		return net.DefaultResolver
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, server)
		},
	}
}
