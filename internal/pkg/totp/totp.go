// Package totp implements the RFC 6238 second factor: per-user secret
// generation and time-stepped code verification with a skew window.
//
// Codes are always 6 decimal digits over HMAC-SHA1 with a 30 second step,
// which is what common authenticator apps expect.
package totp

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	// Period is the length of one time step in seconds.
	Period = 30
	// Digits is the only supported code length.
	Digits = 6
	// DefaultSkew is the number of steps accepted on each side of the
	// current one.
	DefaultSkew = 1
)

// ErrMalformedSecret means the stored secret is empty or not base32. It is a
// data integrity failure and is never reported as a wrong code.
var ErrMalformedSecret = errors.New("totp: malformed secret")

// Engine derives and verifies codes. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	skew int
	now  func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSkew sets how many steps before and after the current one are accepted.
// Negative values are treated as zero.
func WithSkew(steps int) Option {
	return func(e *Engine) {
		if steps < 0 {
			steps = 0
		}
		e.skew = steps
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine with DefaultSkew and the wall clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{skew: DefaultSkew, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Skew returns the configured tolerance in steps.
func (e *Engine) Skew() int {
	return e.skew
}

// TimeStep returns floor(unix(t) / Period).
func TimeStep(t time.Time) int64 {
	sec := t.Unix()
	step := sec / Period
	if sec%Period < 0 {
		step--
	}
	return step
}

// CodeAt returns the code for secret at the given step.
func (e *Engine) CodeAt(secret string, step int64) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrMalformedSecret
	}
	if step < 0 {
		return "", fmt.Errorf("totp: negative step %d", step)
	}
	code, err := hotp.GenerateCodeCustom(secret, uint64(step), hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	return code, nil
}

// Now returns the code for the current step.
func (e *Engine) Now(secret string) (string, error) {
	return e.CodeAt(secret, TimeStep(e.now()))
}

// Verify reports whether candidate matches any step in the skew window.
func (e *Engine) Verify(secret, candidate string) (bool, error) {
	_, ok, err := e.Match(secret, candidate)
	return ok, err
}

// Match is Verify that also returns the step the candidate matched. Every
// step in the window is compared so the running time does not depend on
// which one matched.
func (e *Engine) Match(secret, candidate string) (int64, bool, error) {
	current := TimeStep(e.now())

	type window struct {
		step int64
		code string
	}
	codes := make([]window, 0, 2*e.skew+1)
	for k := -e.skew; k <= e.skew; k++ {
		step := current + int64(k)
		if step < 0 {
			continue
		}
		code, err := e.CodeAt(secret, step)
		if err != nil {
			return 0, false, err
		}
		codes = append(codes, window{step: step, code: code})
	}

	if !wellFormed(candidate) {
		return 0, false, nil
	}

	var (
		matched int64
		found   bool
	)
	for _, w := range codes {
		if subtle.ConstantTimeCompare([]byte(w.code), []byte(candidate)) == 1 && !found {
			matched, found = w.step, true
		}
	}
	return matched, found, nil
}

func wellFormed(candidate string) bool {
	if len(candidate) != Digits {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		if candidate[i] < '0' || candidate[i] > '9' {
			return false
		}
	}
	return true
}
