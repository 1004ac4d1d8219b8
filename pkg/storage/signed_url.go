package storage

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Token errors.
var (
	ErrTokenMalformed = errors.New("storage: malformed download token")
	ErrTokenSignature = errors.New("storage: invalid download token signature")
	ErrTokenExpired   = errors.New("storage: download token expired")
)

// SignedURLSigner issues and verifies download tokens binding a report job to
// a stored file until an expiry. Tokens are authenticated with keyed BLAKE2b.
type SignedURLSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSignedURLSigner derives the MAC key from secret.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	var key []byte
	if secret != "" {
		sum := blake2b.Sum256([]byte(secret))
		key = sum[:]
	}
	return &SignedURLSigner{key: key, ttl: ttl, now: time.Now}
}

// Generate returns a token of the form payload.signature, both base64url.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("job id and path are required")
	}
	if len(s.key) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{jobID, strconv.FormatInt(expiresAt.Unix(), 10), relPath}, "\n")
	sig, err := s.sign([]byte(payload))
	if err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(sig)
	return token, expiresAt, nil
}

// Parse verifies a token and returns what it binds. allowExpired skips the
// expiry check so cleanup can still resolve old files.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	encodedPayload, encodedSig, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	expected, err := s.sign(payload)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if subtle.ConstantTimeCompare(expected, sig) != 1 {
		return "", "", time.Time{}, ErrTokenSignature
	}
	parts := strings.SplitN(string(payload), "\n", 3)
	if len(parts) != 3 {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	expiresAt = time.Unix(unix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return parts[0], parts[2], expiresAt, nil
}

func (s *SignedURLSigner) sign(payload []byte) ([]byte, error) {
	if len(s.key) == 0 {
		return nil, fmt.Errorf("signing secret missing")
	}
	mac, err := blake2b.New256(s.key)
	if err != nil {
		return nil, fmt.Errorf("init token mac: %w", err)
	}
	_, _ = mac.Write(payload)
	return mac.Sum(nil), nil
}
