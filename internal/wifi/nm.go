package wifi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	nmService       = "org.freedesktop.NetworkManager"
	nmPath          = "/org/freedesktop/NetworkManager"
	nmInterface     = "org.freedesktop.NetworkManager"
	nmDeviceIface   = "org.freedesktop.NetworkManager.Device"
	dbusPropertyGet = "org.freedesktop.DBus.Properties.Get"

	// nmDeviceActivated is NM_DEVICE_STATE_ACTIVATED.
	nmDeviceActivated = 100

	activationTimeout = 45 * time.Second
	activationPoll    = time.Second
)

var errActivationTimeout = errors.New("wifi: activation did not complete")

// NMLink associates through NetworkManager on the system bus.
type NMLink struct {
	Interface string
	SSID      string
	Password  string

	// Dial returns the system bus connection; nil uses dbus.SystemBus,
	// which hands out the shared connection and redials once it is closed.
	Dial func() (*dbus.Conn, error)
}

// bus dials on every call so a bus that was down or restarted is picked
// up on the next attempt.
func (l *NMLink) bus() (*dbus.Conn, error) {
	dial := l.Dial
	if dial == nil {
		dial = dbus.SystemBus
	}
	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("wifi: connect to system D-Bus: %w", err)
	}
	return conn, nil
}

func (l *NMLink) device(ctx context.Context) (dbus.BusObject, dbus.ObjectPath, error) {
	conn, err := l.bus()
	if err != nil {
		return nil, "", err
	}
	var path dbus.ObjectPath
	call := conn.Object(nmService, nmPath).CallWithContext(ctx, nmInterface+".GetDeviceByIpIface", 0, l.Interface)
	if err := call.Store(&path); err != nil {
		return nil, "", fmt.Errorf("wifi: find device %q: %w", l.Interface, err)
	}
	return conn.Object(nmService, path), path, nil
}

// Connected reports whether NetworkManager considers the device activated.
func (l *NMLink) Connected(ctx context.Context) (bool, error) {
	dev, _, err := l.device(ctx)
	if err != nil {
		return false, err
	}
	var state dbus.Variant
	if err := dev.CallWithContext(ctx, dbusPropertyGet, 0, nmDeviceIface, "State").Store(&state); err != nil {
		return false, fmt.Errorf("wifi: device state: %w", err)
	}
	v, ok := state.Value().(uint32)
	if !ok {
		return false, fmt.Errorf("wifi: unexpected device state type %s", state.Signature())
	}
	return v == nmDeviceActivated, nil
}

// Connect first asks NetworkManager to activate any saved profile for the
// device and, if that fails, creates a WPA-PSK profile for SSID. It waits
// until the device is activated.
func (l *NMLink) Connect(ctx context.Context) error {
	conn, err := l.bus()
	if err != nil {
		return err
	}
	_, devPath, err := l.device(ctx)
	if err != nil {
		return err
	}
	nm := conn.Object(nmService, nmPath)

	var active dbus.ObjectPath
	err = nm.CallWithContext(ctx, nmInterface+".ActivateConnection", 0,
		dbus.ObjectPath("/"), devPath, dbus.ObjectPath("/")).Store(&active)
	if err != nil {
		var profile dbus.ObjectPath
		err = nm.CallWithContext(ctx, nmInterface+".AddAndActivateConnection", 0,
			l.settings(), devPath, dbus.ObjectPath("/")).Store(&profile, &active)
		if err != nil {
			return fmt.Errorf("wifi: activate %q: %w", l.SSID, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, activationTimeout)
	defer cancel()
	ticker := time.NewTicker(activationPoll)
	defer ticker.Stop()
	for {
		if ok, err := l.Connected(ctx); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wifi: %q: %w", l.SSID, errActivationTimeout)
		case <-ticker.C:
		}
	}
}

func (l *NMLink) settings() map[string]map[string]dbus.Variant {
	s := map[string]map[string]dbus.Variant{
		"connection": {
			"id":   dbus.MakeVariant(l.SSID),
			"type": dbus.MakeVariant("802-11-wireless"),
		},
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte(l.SSID)),
			"mode": dbus.MakeVariant("infrastructure"),
		},
	}
	if l.Password != "" {
		s["802-11-wireless-security"] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(l.Password),
		}
	}
	return s
}
