package network

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os/exec"
)

// CommandRunner runs an external command to completion.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

// InterfaceLink is a Linux network interface managed through NetworkManager.
// With an empty SSID it only observes the interface and never asks
// NetworkManager for anything.
type InterfaceLink struct {
	Name     string
	SSID     string
	Password string

	Run        CommandRunner
	interfaces func(name string) ([]net.Addr, net.Flags, error)
}

func NewInterfaceLink(name, ssid, password string) *InterfaceLink {
	return &InterfaceLink{
		Name:       name,
		SSID:       ssid,
		Password:   password,
		Run:        execRunner,
		interfaces: lookupInterface,
	}
}

func (l *InterfaceLink) Reset(ctx context.Context) error {
	if l.SSID == "" {
		return nil
	}
	return l.Run(ctx, "nmcli", "device", "disconnect", l.Name)
}

func (l *InterfaceLink) Join(ctx context.Context) error {
	if l.SSID == "" {
		return nil
	}
	args := []string{"device", "wifi", "connect", l.SSID}
	if l.Password != "" {
		args = append(args, "password", l.Password)
	}
	args = append(args, "ifname", l.Name)
	return l.Run(ctx, "nmcli", args...)
}

// Status reports the first global unicast IPv4 address of an up interface.
func (l *InterfaceLink) Status() (netip.Addr, bool) {
	addrs, flags, err := l.interfaces(l.Name)
	if err != nil || flags&net.FlagUp == 0 {
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		ip := prefix.Addr()
		if ip.Is4() && ip.IsGlobalUnicast() {
			return ip, true
		}
	}
	return netip.Addr{}, false
}

func lookupInterface(name string) ([]net.Addr, net.Flags, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, 0, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, 0, err
	}
	return addrs, iface.Flags, nil
}
