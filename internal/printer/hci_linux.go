//go:build linux

package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// HCITransport talks to the controller through a raw HCI socket instead of
// BlueZ over D-Bus. It needs CAP_NET_ADMIN and exclusive use of the adapter.
// requested ATT MTU; rows of a 384 dot printer fit in one write
const hciMTU = 185

type HCITransport struct {
	opts DiscoveryOptions
}

func NewHCITransport(opts DiscoveryOptions) (*HCITransport, error) {
	d, err := linux.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrUnsupportedTransport, err)
	}
	ble.SetDefaultDevice(d)
	return &HCITransport{opts: opts.withDefaults()}, nil
}

func (t *HCITransport) Discover(ctx context.Context, profiles []Profile) (Link, error) {
	adv, err := t.scan(ctx, profiles)
	if err != nil {
		return nil, err
	}

	name := adv.LocalName()
	t.opts.Logger.Debug("Connecting to device", "deviceName", name, "address", adv.Addr().String())
	client, err := ble.Dial(ctx, adv.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't connect to %q:\n%w", ErrDiscoveryFailed, name, err)
	}

	if mtu, err := client.ExchangeMTU(hciMTU); err != nil {
		t.opts.Logger.Debug("MTU negotiation failed", "error", err)
	} else {
		t.opts.Logger.Debug("Negotiated ATT MTU", "mtu", mtu)
	}

	for _, p := range profiles {
		link, err := t.open(client, p, name)
		if err != nil {
			t.opts.Logger.Debug("Profile not offered", "profile", p, "error", err)
			continue
		}
		go link.watch()
		return link, nil
	}

	client.CancelConnection()
	return nil, fmt.Errorf("%w: %q offers none of %v", ErrDiscoveryFailed, name, profiles)
}

func (t *HCITransport) scan(parent context.Context, profiles []Profile) (ble.Advertisement, error) {
	ctx, cancel := context.WithTimeout(parent, t.opts.ScanTimeout)
	defer cancel()

	var mu sync.Mutex
	var found ble.Advertisement
	err := ble.Scan(ctx, false, func(a ble.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		if found == nil {
			found = a
			t.opts.Logger.Info("Found device", "deviceName", a.LocalName())
			cancel()
		}
	}, func(a ble.Advertisement) bool {
		hasService := func(id uint16) bool {
			for _, u := range a.Services() {
				if u.Equal(ble.UUID16(id)) {
					return true
				}
			}
			return false
		}
		return advertisementMatches(t.opts, a.LocalName(), hasService, profiles)
	})

	mu.Lock()
	defer mu.Unlock()
	if found != nil {
		return found, nil
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: scan failed:\n%w", ErrDiscoveryFailed, err)
	}
	return nil, scanError(parent, t.opts.ScanTimeout)
}

func (t *HCITransport) open(client ble.Client, p Profile, name string) (*hciLink, error) {
	services, err := client.DiscoverServices([]ble.UUID{ble.UUID16(p.Service())})
	if err != nil || len(services) == 0 {
		return nil, fmt.Errorf("service %v not found: %v", p, err)
	}
	chars, err := client.DiscoverCharacteristics(nil, services[0])
	if err != nil {
		return nil, fmt.Errorf("Couldn't discover characteristics:\n%w", err)
	}

	link := &hciLink{client: client, name: name, profile: p}
	var notifier *ble.Characteristic
	for _, c := range chars {
		switch {
		case c.UUID.Equal(ble.UUID16(p.Writer())):
			link.writer = c
		case c.UUID.Equal(ble.UUID16(p.Notifier())):
			notifier = c
		}
	}
	if link.writer == nil {
		return nil, fmt.Errorf("write characteristic missing from %v", p)
	}

	if notifier != nil {
		_, _ = client.DiscoverDescriptors(nil, notifier)
		if err := client.Subscribe(notifier, false, link.notify); err != nil {
			t.opts.Logger.Warn("Couldn't enable notifications", "error", err)
		}
	}
	return link, nil
}

type hciLink struct {
	client  ble.Client
	writer  *ble.Characteristic
	name    string
	profile Profile

	mu       sync.Mutex
	onNotify func([]byte)
	onLost   func()
	closed   bool
}

func (l *hciLink) Name() string     { return l.name }
func (l *hciLink) Profile() Profile { return l.profile }

func (l *hciLink) Write(data []byte) error {
	return l.client.WriteCharacteristic(l.writer, data, true)
}

func (l *hciLink) SetNotificationHandler(f func([]byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onNotify = f
}

func (l *hciLink) SetLostHandler(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLost = f
}

func (l *hciLink) notify(data []byte) {
	l.mu.Lock()
	f := l.onNotify
	l.mu.Unlock()
	if f != nil {
		f(append([]byte(nil), data...))
	}
}

// watch reports the link as lost once the controller drops it, unless it
// was closed on purpose.
func (l *hciLink) watch() {
	<-l.client.Disconnected()
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	f := l.onLost
	l.mu.Unlock()
	if f != nil {
		f()
	}
}

func (l *hciLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.client.CancelConnection()
}
