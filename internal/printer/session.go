// A Session owns the connection to a single printer. It is created by the
// application's composition root and passed to whatever drives connect and
// print calls; nothing else writes to the link.
package printer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"tomgalvin.uk/catprint/internal/bitmap"
)

const (
	DefaultChunkSize = 200
	// pause after every control packet so the printer can act on it
	DefaultControlDelay = 50 * time.Millisecond
	// pause every rowPacingInterval rows so the receive buffer doesn't overrun
	DefaultRowDelay   = 20 * time.Millisecond
	rowPacingInterval = 8
)

// Info is a snapshot of the session for observers.
type Info struct {
	State        State
	DeviceName   string
	Profile      Profile
	DeviceStatus DeviceStatus
}

type Session struct {
	transport    Transport
	logger       *slog.Logger
	clock        clockwork.Clock
	chunkSize    int
	controlDelay time.Duration
	rowDelay     time.Duration
	onStatus     func(State)

	mu           sync.Mutex
	state        State
	link         Link
	deviceName   string
	deviceStatus DeviceStatus
}

type SessionOption func(*Session)

func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

func WithClock(c clockwork.Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// Sets the largest single write handed to the link.
func WithChunkSize(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func WithPacing(control, row time.Duration) SessionOption {
	return func(s *Session) {
		s.controlDelay, s.rowDelay = control, row
	}
}

// The handler is called synchronously on every state change and must not block.
func WithStatusHandler(f func(State)) SessionOption {
	return func(s *Session) { s.onStatus = f }
}

func NewSession(t Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport:    t,
		logger:       slog.Default(),
		clock:        clockwork.NewRealClock(),
		chunkSize:    DefaultChunkSize,
		controlDelay: DefaultControlDelay,
		rowDelay:     DefaultRowDelay,
		state:        Disconnected,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceName
}

// DeviceStatus is the last status the printer reported. It is cleared on
// every new connection.
func (s *Session) DeviceStatus() DeviceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceStatus
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		State:        s.state,
		DeviceName:   s.deviceName,
		DeviceStatus: s.deviceStatus,
	}
	if s.link != nil {
		info.Profile = s.link.Profile()
	}
	return info
}

// IsSupported reports whether the session has a transport to discover with.
func (s *Session) IsSupported() bool {
	return s.transport != nil
}

// must be called with s.mu held; returns whether the state changed
func (s *Session) setStateLocked(next State) bool {
	if s.state == next {
		return false
	}
	s.logger.Debug("Printer state changed", "from", s.state, "to", next)
	s.state = next
	return true
}

func (s *Session) notify(changed bool, state State) {
	if changed && s.onStatus != nil {
		s.onStatus(state)
	}
}

func (s *Session) transition(next State) {
	s.mu.Lock()
	changed := s.setStateLocked(next)
	s.mu.Unlock()
	s.notify(changed, next)
}

// Connect discovers a printer offering one of the known profiles, in order,
// and caches the link. On failure the session is left disconnected.
func (s *Session) Connect(ctx context.Context) error {
	if s.transport == nil {
		return ErrUnsupportedTransport
	}

	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	changed := s.setStateLocked(Connecting)
	s.mu.Unlock()
	s.notify(changed, Connecting)

	s.logger.Info("Searching for printer", "profiles", Profiles)
	link, err := s.transport.Discover(ctx, Profiles)
	if err != nil {
		s.transition(Disconnected)
		if IsPairingDeclined(err) {
			s.logger.Debug("Printer discovery abandoned", "error", err)
		} else {
			s.logger.Error("Couldn't find printer", "error", err)
		}
		return fmt.Errorf("Couldn't connect to printer:\n%w", err)
	}

	name := link.Name()
	if name == "" {
		name = defaultDeviceName
	}

	s.mu.Lock()
	if s.state != Connecting {
		// disconnected while discovery was running
		s.mu.Unlock()
		link.Close()
		return fmt.Errorf("%w: disconnected during discovery", ErrPairingDeclined)
	}
	s.link = link
	s.deviceName = name
	s.deviceStatus = 0
	changed = s.setStateLocked(Connected)
	s.mu.Unlock()

	link.SetLostHandler(func() { s.onLinkLost(link) })
	link.SetNotificationHandler(s.handleNotification)

	s.logger.Info("Connected to printer", "deviceName", name, "profile", link.Profile())
	s.notify(changed, Connected)
	return nil
}

// Disconnect closes the link if there is one and always leaves the session
// disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	link := s.link
	s.link = nil
	s.deviceName = ""
	s.deviceStatus = 0
	changed := s.setStateLocked(Disconnected)
	s.mu.Unlock()

	if link != nil {
		if err := link.Close(); err != nil {
			s.logger.Warn("Couldn't close printer link cleanly", "error", err)
		}
	}
	s.notify(changed, Disconnected)
	return nil
}

func (s *Session) onLinkLost(link Link) {
	s.mu.Lock()
	if s.link != link {
		s.mu.Unlock()
		return
	}
	s.link = nil
	s.deviceName = ""
	changed := s.setStateLocked(Disconnected)
	s.mu.Unlock()

	s.logger.Info("Printer link lost")
	s.notify(changed, Disconnected)
}

func (s *Session) handleNotification(d []byte) {
	cmd, payload, err := ParsePacket(d)
	if err != nil {
		s.logger.Debug("Received unknown notification", "data", fmt.Sprintf("%x", d), "error", err)
		return
	}

	switch {
	case cmd == GetState && len(payload) > 0:
		status := DeviceStatus(payload[0])
		s.mu.Lock()
		s.deviceStatus = status
		s.mu.Unlock()
		s.logger.Info("Printer status", "status", status)
	default:
		s.logger.Debug("Printer notification", "command", cmd, "payload", fmt.Sprintf("%x", payload))
	}
}

// acquire moves the session from Connected to Printing and returns the link
// to write to.
func (s *Session) acquire() (Link, error) {
	s.mu.Lock()
	if s.state != Connected || s.link == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	link := s.link
	changed := s.setStateLocked(Printing)
	s.mu.Unlock()
	s.notify(changed, Printing)
	return link, nil
}

// release ends a Printing phase. If the link was lost or closed meanwhile
// the session is already disconnected and stays that way.
func (s *Session) release() {
	s.mu.Lock()
	var changed bool
	if s.state == Printing {
		changed = s.setStateLocked(Connected)
	}
	state := s.state
	s.mu.Unlock()
	s.notify(changed, state)
}

func (s *Session) isCurrent(link Link) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link == link
}

// PrintImage sends a packed bitmap as one print job. onProgress, if not nil,
// is called after every row with the rounded percentage of rows sent. The
// job is aborted on the first failed write and never retried.
func (s *Session) PrintImage(ctx context.Context, b *bitmap.PackedBitmap, p PrintParams, onProgress func(percent int)) error {
	link, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release()

	job := NewJob(b, p)
	s.logger.Info("Sending bitmap data to printer",
		"width", b.Width(),
		"height", b.Height(),
		"energy", p.Energy,
		"packets", job.Len(),
	)

	if err := s.run(ctx, link, job, onProgress); err != nil {
		s.logger.Error("Print job aborted", "error", err)
		return err
	}

	s.logger.Info("Print job sent")
	return nil
}

// FeedPaper advances the paper by the given number of blank lines.
func (s *Session) FeedPaper(ctx context.Context, lines int) error {
	link, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release()

	return s.send(ctx, link, feedLines(lines))
}

func (s *Session) run(ctx context.Context, link Link, job *Job, onProgress func(int)) error {
	for _, st := range job.steps {
		if err := s.send(ctx, link, st.packet); err != nil {
			return fmt.Errorf("Couldn't send %s packet:\n%w", Command(st.packet[2]), err)
		}

		if st.row < 0 {
			if err := s.pause(ctx, s.controlDelay); err != nil {
				return err
			}
			continue
		}

		if st.row%rowPacingInterval == 0 {
			if err := s.pause(ctx, s.rowDelay); err != nil {
				return err
			}
		}
		if onProgress != nil {
			onProgress(job.progress(st.row))
		}
	}
	return nil
}

// send writes a packet in chunks of at most chunkSize bytes.
func (s *Session) send(ctx context.Context, link Link, packet []byte) error {
	for start := 0; start < len(packet); start += s.chunkSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransportWriteFailed, err)
		}
		if !s.isCurrent(link) {
			return fmt.Errorf("%w: %w", ErrTransportWriteFailed, ErrLinkLost)
		}
		end := min(start+s.chunkSize, len(packet))
		if err := link.Write(packet[start:end]); err != nil {
			return fmt.Errorf("%w:\n%w", ErrTransportWriteFailed, err)
		}
	}
	return nil
}

func (s *Session) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("Print cancelled:\n%w", ctx.Err())
	case <-s.clock.After(d):
		return nil
	}
}
