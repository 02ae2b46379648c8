//go:build !linux

package printer

import "context"

// HCITransport needs raw HCI sockets, which only Linux provides.
type HCITransport struct{}

func NewHCITransport(opts DiscoveryOptions) (*HCITransport, error) {
	return nil, ErrUnsupportedTransport
}

func (t *HCITransport) Discover(ctx context.Context, profiles []Profile) (Link, error) {
	return nil, ErrUnsupportedTransport
}
