package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const (
	DefaultAppName        = "oxy-quilt"
	DefaultConnectTimeout = 5 * time.Second
	defaultRetryInterval  = 50 * time.Millisecond
)

type session struct {
	mu             *sync.Mutex
	display        Display
	appName        string
	connectTimeout time.Duration
	retryInterval  time.Duration
	tilesX, tilesY int
	maxTexture     int
	info           DisplayInfo
	registered     map[uintptr]struct{}
	frames         uint64
	closed         bool
	log            *slog.Logger
}

var _ Bridge = &session{}

// NewSession connects to display and reads its geometry. Initialization is retried with exponential
// backoff until the connect timeout elapses.
//
// Parameters:
//   - display: the display controller to drive
//   - options: functional options to configure the session
//
// Returns:
//   - Bridge: the connected session
//   - error: ErrBridgeInit when the controller never initializes or reports no output window
func NewSession(display Display, options ...SessionBuilderOption) (Bridge, error) {
	s := &session{
		mu:             &sync.Mutex{},
		display:        display,
		appName:        DefaultAppName,
		connectTimeout: DefaultConnectTimeout,
		retryInterval:  defaultRetryInterval,
		tilesX:         DefaultTilesX,
		tilesY:         DefaultTilesY,
		registered:     make(map[uintptr]struct{}),
		log:            common.ComponentLogger("bridge"),
	}
	for _, option := range options {
		option(s)
	}
	if display == nil {
		return nil, errors.Wrap(ErrBridgeInit, "no display controller")
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) connect() error {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if s.connectTimeout > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = s.retryInterval
		eb.MaxInterval = s.connectTimeout / 4
		eb.MaxElapsedTime = s.connectTimeout
		policy = eb
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := s.display.Initialize(s.appName)
		if err != nil {
			s.log.Debug("display initialize failed", "attempt", attempts, "error", err)
		}
		return err
	}, policy)
	if err != nil {
		return errors.Wrapf(ErrBridgeInit, "initialize %q after %d attempts: %v", s.appName, attempts, err)
	}

	info, err := s.display.Info()
	if err != nil {
		s.display.Close()
		return errors.Wrapf(ErrBridgeInit, "query display: %v", err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		s.display.Close()
		return errors.Wrapf(ErrBridgeInit, "display window is %dx%d", info.Width, info.Height)
	}

	s.info = info
	s.maxTexture = info.MaxTextureSize
	if s.maxTexture <= 0 || s.maxTexture > MaxTextureCap {
		s.maxTexture = MaxTextureCap
	}
	s.log.Info("bridge connected",
		"app", s.appName,
		"attempts", attempts,
		"width", info.Width, "height", info.Height,
		"x", info.X, "y", info.Y,
		"max_texture", s.maxTexture,
		"tiles_x", s.tilesX, "tiles_y", s.tilesY)
	return nil
}

func (s *session) MaxTextureSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxTexture
}

func (s *session) PreferredTiles() (x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tilesX, s.tilesY
}

func (s *session) DisplaySize() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.Width, s.info.Height
}

func (s *session) DisplayPosition() (x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.X, s.info.Y
}

func (s *session) RegisterTexture(handle uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.registered[handle]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, "handle %#x", handle)
	}
	if err := s.display.RegisterTexture(handle); err != nil {
		return errors.Wrapf(err, "register handle %#x", handle)
	}
	s.registered[handle] = struct{}{}
	s.log.Info("texture registered", "handle", handle)
	return nil
}

func (s *session) UnregisterTexture(handle uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.unregisterLocked(handle)
}

func (s *session) unregisterLocked(handle uintptr) error {
	if _, ok := s.registered[handle]; !ok {
		return errors.Wrapf(ErrNotRegistered, "handle %#x", handle)
	}
	delete(s.registered, handle)
	if err := s.display.UnregisterTexture(handle); err != nil {
		return errors.Wrapf(err, "unregister handle %#x", handle)
	}
	s.log.Info("texture unregistered", "handle", handle)
	return nil
}

func (s *session) Present(p PresentParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.registered[p.Handle]; !ok {
		return errors.Wrapf(ErrNotRegistered, "present handle %#x", p.Handle)
	}
	if err := s.display.Present(p); err != nil {
		return errors.Wrap(err, "present quilt")
	}
	s.frames++
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var first error
	for handle := range s.registered {
		if err := s.unregisterLocked(handle); err != nil && first == nil {
			first = err
		}
	}
	s.closed = true
	if err := s.display.Close(); err != nil && first == nil {
		first = errors.Wrap(err, "close display")
	}
	s.log.Info("bridge closed", "frames", s.frames)
	return first
}
