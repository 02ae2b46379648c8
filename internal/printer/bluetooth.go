package printer

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// BluetoothTransport discovers printers through the host's default adapter.
// The adapter only reports connection changes through a single handler, so
// the transport keeps track of the links it has opened and routes
// disconnects to them.
type BluetoothTransport struct {
	adapter *bluetooth.Adapter
	opts    DiscoveryOptions

	mu    sync.Mutex
	links map[bluetooth.Address]*bluetoothLink
}

func NewBluetoothTransport(opts DiscoveryOptions) (*BluetoothTransport, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrUnsupportedTransport, err)
	}

	t := &BluetoothTransport{
		adapter: adapter,
		opts:    opts.withDefaults(),
		links:   map[bluetooth.Address]*bluetoothLink{},
	}
	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if connected {
			return
		}
		t.mu.Lock()
		link, ok := t.links[d.Address]
		delete(t.links, d.Address)
		t.mu.Unlock()

		if ok {
			link.lost()
		} else {
			t.opts.Logger.Debug("Disconnect event for unknown device", "address", d.Address.String())
		}
	})
	return t, nil
}

func (t *BluetoothTransport) Discover(ctx context.Context, profiles []Profile) (Link, error) {
	result, err := t.scan(ctx, profiles)
	if err != nil {
		return nil, err
	}

	name := result.LocalName()
	t.opts.Logger.Debug("Connecting to device", "deviceName", name, "address", result.Address.String())
	device, err := t.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't connect to %q:\n%w", ErrDiscoveryFailed, name, err)
	}

	for _, p := range profiles {
		link, err := t.open(device, p, name)
		if err != nil {
			t.opts.Logger.Debug("Profile not offered", "profile", p, "error", err)
			continue
		}
		t.mu.Lock()
		t.links[device.Address] = link
		t.mu.Unlock()
		return link, nil
	}

	device.Disconnect()
	return nil, fmt.Errorf("%w: %q offers none of %v", ErrDiscoveryFailed, name, profiles)
}

func (t *BluetoothTransport) scan(parent context.Context, profiles []Profile) (bluetooth.ScanResult, error) {
	ctx, cancel := context.WithTimeout(parent, t.opts.ScanTimeout)
	defer cancel()

	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			hasService := func(id uint16) bool {
				return result.HasServiceUUID(bluetooth.New16BitUUID(id))
			}
			if !advertisementMatches(t.opts, result.LocalName(), hasService, profiles) {
				return
			}
			select {
			case found <- result:
				t.opts.Logger.Info("Found device", "deviceName", result.LocalName())
				adapter.StopScan()
			default:
			}
		})
	}()

	select {
	case result := <-found:
		return result, nil
	case err := <-scanErr:
		// the scan may have stopped because a device was found
		select {
		case result := <-found:
			return result, nil
		default:
		}
		if err != nil {
			return bluetooth.ScanResult{}, fmt.Errorf("%w: scan failed:\n%w", ErrDiscoveryFailed, err)
		}
		return bluetooth.ScanResult{}, scanError(parent, t.opts.ScanTimeout)
	case <-ctx.Done():
		t.adapter.StopScan()
		return bluetooth.ScanResult{}, scanError(parent, t.opts.ScanTimeout)
	}
}

func (t *BluetoothTransport) open(device bluetooth.Device, p Profile, name string) (*bluetoothLink, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{bluetooth.New16BitUUID(p.Service())})
	if err != nil {
		return nil, fmt.Errorf("Couldn't discover service:\n%w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %v not found", p)
	}

	writers, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bluetooth.New16BitUUID(p.Writer())})
	if err != nil || len(writers) == 0 {
		return nil, fmt.Errorf("Couldn't discover write characteristic:\n%w", err)
	}

	link := &bluetoothLink{
		device:  device,
		writer:  writers[0],
		name:    name,
		profile: p,
	}

	// Status notifications are optional; printing works without them.
	notifiers, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bluetooth.New16BitUUID(p.Notifier())})
	if err == nil && len(notifiers) > 0 {
		if err := notifiers[0].EnableNotifications(link.notify); err != nil {
			t.opts.Logger.Warn("Couldn't enable notifications", "error", err)
		}
	} else {
		t.opts.Logger.Debug("Printer has no notify characteristic", "profile", p)
	}
	return link, nil
}

type bluetoothLink struct {
	device  bluetooth.Device
	writer  bluetooth.DeviceCharacteristic
	name    string
	profile Profile

	mu       sync.Mutex
	onNotify func([]byte)
	onLost   func()
	closed   bool
}

func (l *bluetoothLink) Name() string     { return l.name }
func (l *bluetoothLink) Profile() Profile { return l.profile }

func (l *bluetoothLink) Write(data []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrLinkLost
	}
	_, err := l.writer.WriteWithoutResponse(data)
	return err
}

func (l *bluetoothLink) SetNotificationHandler(f func([]byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onNotify = f
}

func (l *bluetoothLink) SetLostHandler(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLost = f
}

func (l *bluetoothLink) notify(data []byte) {
	l.mu.Lock()
	f := l.onNotify
	l.mu.Unlock()
	if f != nil {
		// the adapter may reuse its buffer
		f(append([]byte(nil), data...))
	}
}

func (l *bluetoothLink) lost() {
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

func (l *bluetoothLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.device.Disconnect()
}
