package printer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Profile identifies one of the GATT layouts used by cat printer hardware.
// The session tries them in the order of Profiles.
type Profile int

const (
	ProfileAE Profile = iota
	ProfileFF
)

var Profiles = []Profile{ProfileAE, ProfileFF}

// 16 bit UUIDs on the Bluetooth base UUID
func (p Profile) Service() uint16 {
	if p == ProfileFF {
		return 0xFF00
	}
	return 0xAE30
}

func (p Profile) Writer() uint16 {
	if p == ProfileFF {
		return 0xFF02
	}
	return 0xAE01
}

func (p Profile) Notifier() uint16 {
	if p == ProfileFF {
		return 0xFF03
	}
	return 0xAE02
}

func (p Profile) String() string {
	if p == ProfileFF {
		return "ff00"
	}
	return "ae30"
}

// Names advertised by printers that don't list their service in the
// advertisement.
var advertisedNamePrefixes = []string{"GB", "GT", "MX"}

const defaultDeviceName = "Cat Printer"

// Transport finds a printer exposing one of the profiles and connects to it.
// It returns ErrDiscoveryFailed when none is found, ErrPairingDeclined when
// the search was abandoned, and ErrUnsupportedTransport when the host has no
// usable radio.
type Transport interface {
	Discover(ctx context.Context, profiles []Profile) (Link, error)
}

// Link is an open connection to a discovered printer.
type Link interface {
	Name() string
	Profile() Profile
	// Write sends at most one MTU worth of data without waiting for a response.
	Write(data []byte) error
	// Handlers may be called from the transport's own goroutines.
	SetNotificationHandler(func(data []byte))
	SetLostHandler(func())
	Close() error
}

const DefaultScanTimeout = 15 * time.Second

// DiscoveryOptions configures the radio transports.
type DiscoveryOptions struct {
	// Only connect to a device advertising exactly this name.
	DeviceName  string
	ScanTimeout time.Duration
	Logger      *slog.Logger
}

func (o DiscoveryOptions) withDefaults() DiscoveryOptions {
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = DefaultScanTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// advertisementMatches decides whether a scanned device looks like a
// printer: either by exact name, or by service UUID or name prefix.
func advertisementMatches(o DiscoveryOptions, localName string, hasService func(uint16) bool, profiles []Profile) bool {
	if o.DeviceName != "" {
		return localName == o.DeviceName
	}
	for _, p := range profiles {
		if hasService(p.Service()) {
			return true
		}
	}
	for _, prefix := range advertisedNamePrefixes {
		if strings.HasPrefix(localName, prefix) {
			return true
		}
	}
	return false
}

// scanError maps the end of an unsuccessful scan onto the discovery errors.
func scanError(parent context.Context, timeout time.Duration) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w:\n%w", ErrPairingDeclined, parent.Err())
	}
	return fmt.Errorf("%w: no printer found within %v", ErrDiscoveryFailed, timeout)
}
