package wifi

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Link is one way of reaching the network.
type Link interface {
	// Connected reports whether the link is associated and addressed.
	Connected(ctx context.Context) (bool, error)
	// Connect starts association and returns once it succeeded or failed.
	Connect(ctx context.Context) error
}

var errNoAddress = errors.New("wifi: interface has no usable address")

// InterfaceLink watches a kernel interface that something else manages,
// such as a wired port or a development machine's uplink. It cannot
// associate on its own; Connect only re-checks.
type InterfaceLink struct {
	Name string
}

func (l InterfaceLink) Connected(context.Context) (bool, error) {
	if l.Name == "" {
		return anyInterfaceUp()
	}
	ifc, err := net.InterfaceByName(l.Name)
	if err != nil {
		return false, fmt.Errorf("wifi: interface %q: %w", l.Name, err)
	}
	return usable(*ifc)
}

func (l InterfaceLink) Connect(ctx context.Context) error {
	ok, err := l.Connected(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("wifi: %s: %w", l.Name, errNoAddress)
	}
	return nil
}

func anyInterfaceUp() (bool, error) {
	ifcs, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("wifi: list interfaces: %w", err)
	}
	for _, ifc := range ifcs {
		if ok, _ := usable(ifc); ok {
			return true, nil
		}
	}
	return false, nil
}

func usable(ifc net.Interface) (bool, error) {
	if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
		return false, nil
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return false, fmt.Errorf("wifi: addresses of %s: %w", ifc.Name, err)
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if ok && ipn.IP.IsGlobalUnicast() {
			return true, nil
		}
	}
	return false, nil
}
