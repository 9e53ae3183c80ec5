package auth

import "time"

// Option tunes Codec, APIKeyRegistry and Service construction.
type Option func(*settings)

type settings struct {
	now        func() time.Time
	bcryptCost int
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost overrides DefaultBcryptCost for new password hashes.
func WithBcryptCost(cost int) Option {
	return func(s *settings) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

func applyOptions(opts []Option) settings {
	st := settings{now: time.Now, bcryptCost: DefaultBcryptCost}
	for _, opt := range opts {
		opt(&st)
	}
	return st
}
