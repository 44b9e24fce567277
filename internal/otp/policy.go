// Package otp implements the one-time-passcode state machine shared by every
// OTP driven flow: signup verification, password resets and delivery login.
package otp

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/example/stockroute/internal/apperr"
)

const (
	DefaultLength = 6
	DefaultTTL    = 10 * time.Minute
)

// Slot binds the otp and otp-expiry fields of one record.
type Slot struct {
	Load  func() (code *string, expiresAt *time.Time)
	Store func(code *string, expiresAt *time.Time)
}

// Fields builds a Slot over a pair of nullable model fields.
func Fields(code **string, expiresAt **time.Time) Slot {
	return Slot{
		Load: func() (*string, *time.Time) {
			return *code, *expiresAt
		},
		Store: func(c *string, e *time.Time) {
			*code = c
			*expiresAt = e
		},
	}
}

func (s Slot) clear() {
	s.Store(nil, nil)
}

// Policy issues and verifies codes with uniform expiry and clearing rules.
type Policy struct {
	Length   int
	TTL      time.Duration
	Now      func() time.Time
	Generate func(length int) (string, error)
}

// NewPolicy returns the production policy: 6 digits, 10 minutes, crypto/rand.
func NewPolicy() *Policy {
	return &Policy{
		Length:   DefaultLength,
		TTL:      DefaultTTL,
		Now:      time.Now,
		Generate: GenerateCode,
	}
}

// Issue writes a fresh code into the slot, replacing any previous one.
func (p *Policy) Issue(slot Slot) (string, error) {
	code, err := p.Generate(p.Length)
	if err != nil {
		return "", apperr.Internal(err, "failed to generate otp")
	}
	expires := p.Now().Add(p.TTL)
	slot.Store(&code, &expires)
	return code, nil
}

// Verify checks submitted against the slot.
//
// save persists the record and is called whenever the slot was cleared: on
// success and also when the stored code has expired, so stale codes never
// survive a verification attempt. onSuccess applies the flow specific effect
// before the record is saved.
func (p *Policy) Verify(slot Slot, submitted string, save func() error, onSuccess func() error) error {
	stored, expiresAt := slot.Load()
	if stored == nil || expiresAt == nil {
		return apperr.New(apperr.CodeOTPNotRequested, "no otp was requested")
	}

	if !p.Now().Before(*expiresAt) {
		slot.clear()
		if err := save(); err != nil {
			return apperr.Internal(err, "failed to clear expired otp")
		}
		return apperr.New(apperr.CodeOTPExpired, "otp has expired")
	}

	if Normalize(submitted, p.Length) != Normalize(*stored, p.Length) {
		return apperr.New(apperr.CodeOTPInvalid, "invalid otp")
	}

	slot.clear()
	if onSuccess != nil {
		if err := onSuccess(); err != nil {
			return err
		}
	}
	if err := save(); err != nil {
		return apperr.Internal(err, "failed to persist otp verification")
	}
	return nil
}

// Normalize trims whitespace and restores leading zeros lost when a code
// was sent as a JSON number.
func Normalize(code string, length int) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return code
		}
	}
	if len(code) < length {
		code = strings.Repeat("0", length-len(code)) + code
	}
	return code
}

// GenerateCode returns a zero padded numeric code of the given length.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid otp length %d", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return Normalize(n.String(), length), nil
}

// Code accepts an OTP submitted either as a JSON string or a JSON number.
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("otp must be a string or number")
	}
	*c = Code(n.String())
	return nil
}

func (c Code) String() string {
	return string(c)
}
