package printer

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedTransport = errors.New("bluetooth is not available on this host")
	ErrDiscoveryFailed      = errors.New("no compatible printer service found")
	// The user or the host declined to pair. Callers should not report it.
	ErrPairingDeclined      = fmt.Errorf("%w: pairing declined", ErrDiscoveryFailed)
	ErrNotConnected         = errors.New("printer is not connected")
	ErrAlreadyConnected     = errors.New("printer is already connected or connecting")
	ErrTransportWriteFailed = errors.New("couldn't write to printer")
	ErrLinkLost             = errors.New("link to printer was lost")
	ErrMalformedPacket      = errors.New("malformed packet")
)

func IsPairingDeclined(err error) bool {
	return errors.Is(err, ErrPairingDeclined)
}
