package bridge

import "time"

type SessionBuilderOption func(*session)

// WithAppName sets the client name the display service shows.
//
// Parameters:
//   - name: the application name
//
// Returns:
//   - SessionBuilderOption: functional option to set the application name
func WithAppName(name string) SessionBuilderOption {
	return func(s *session) {
		if name != "" {
			s.appName = name
		}
	}
}

// WithConnectTimeout bounds how long initialization is retried. Zero tries exactly once.
//
// Parameters:
//   - timeout: total retry budget
//
// Returns:
//   - SessionBuilderOption: functional option to set the connect timeout
func WithConnectTimeout(timeout time.Duration) SessionBuilderOption {
	return func(s *session) {
		if timeout >= 0 {
			s.connectTimeout = timeout
		}
	}
}

// WithRetryInterval sets the first backoff interval between initialization attempts.
func WithRetryInterval(interval time.Duration) SessionBuilderOption {
	return func(s *session) {
		if interval > 0 {
			s.retryInterval = interval
		}
	}
}

// WithPreferredTiles overrides the default 5x9 quilt layout.
//
// Parameters:
//   - x, y: tile columns and rows; values below 1 are ignored
//
// Returns:
//   - SessionBuilderOption: functional option to set the preferred tiles
func WithPreferredTiles(x, y int) SessionBuilderOption {
	return func(s *session) {
		if x > 0 && y > 0 {
			s.tilesX, s.tilesY = x, y
		}
	}
}
