// webhook/signature.go
// --------------------
// Signature schemes:
//   - hex HMAC-SHA256 with an optional prefix ("sha256=<hex>")
//   - timestamped HMAC over "v0:{timestamp}:{body}" with a 5 minute window
//   - Ed25519 over timestamp+body with a raw 32-byte hex public key
//
// The Verify* functions are pure and fail closed on malformed input.

package webhook

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// DefaultTolerance is the accepted clock skew for timestamped signatures.
const DefaultTolerance = 5 * time.Minute

var oidEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

// VerifyHMACHex checks a hex HMAC-SHA256 signature of payload, optionally carrying a
// prefix such as "sha256=". An empty secret disables verification and always passes.
func VerifyHMACHex(payload []byte, signature, secret, prefix string) bool {
	if secret == "" {
		return true
	}
	return hmacHexEqual([]byte(secret), payload, strings.TrimPrefix(strings.TrimSpace(signature), prefix))
}

// VerifyTimestampedHMAC checks a "v0=<hex>" signature over "v0:{timestamp}:{payload}".
// The timestamp (UNIX seconds) must be within DefaultTolerance of now; this is checked
// before any HMAC is computed. An empty secret disables verification.
func VerifyTimestampedHMAC(payload []byte, signature, secret, timestamp string, now time.Time) bool {
	return verifyTimestampedHMAC(payload, signature, secret, timestamp, "v0", DefaultTolerance, now) == nil
}

func verifyTimestampedHMAC(payload []byte, signature, secret, timestamp, version string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return nil
	}
	if err := checkTimestamp(timestamp, tolerance, now); err != nil {
		return err
	}
	base := make([]byte, 0, len(version)+len(timestamp)+len(payload)+2)
	base = append(base, version...)
	base = append(base, ':')
	base = append(base, timestamp...)
	base = append(base, ':')
	base = append(base, payload...)

	sig := strings.TrimPrefix(strings.TrimSpace(signature), version+"=")
	if !hmacHexEqual([]byte(secret), base, sig) {
		return ErrInvalidSignature
	}
	return nil
}

func checkTimestamp(timestamp string, tolerance time.Duration, now time.Time) error {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew > tolerance || skew < -tolerance {
		return ErrTimestampExpired
	}
	return nil
}

func hmacHexEqual(secret, message []byte, signatureHex string) bool {
	got, err := hex.DecodeString(signatureHex)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), got)
}

// SignHMACHex returns prefix + hex(HMAC-SHA256(secret, payload)).
func SignHMACHex(payload []byte, secret, prefix string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}

// SignTimestampedHMAC returns the "v0=<hex>" signature for payload at timestamp.
func SignTimestampedHMAC(payload []byte, secret, timestamp string) string {
	base := append([]byte("v0:"+timestamp+":"), payload...)
	return SignHMACHex(base, secret, "v0=")
}

// VerifyEd25519 checks a hex Ed25519 signature over timestamp || payload using a raw
// 32-byte public key given as hex. Any malformed input fails verification.
func VerifyEd25519(payload []byte, signatureHex, publicKeyHex, timestamp string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	key, err := ParseEd25519PublicKey(publicKeyHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(payload))
	msg = append(msg, timestamp...)
	msg = append(msg, payload...)
	return ed25519.Verify(key, msg, sig)
}

// ParseEd25519PublicKey wraps a raw hex key in a DER SubjectPublicKeyInfo for the
// Ed25519 OID and parses it with crypto/x509.
func ParseEd25519PublicKey(publicKeyHex string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(publicKeyHex))
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(spki *cryptobyte.Builder) {
		spki.AddASN1(cbasn1.SEQUENCE, func(alg *cryptobyte.Builder) {
			alg.AddASN1ObjectIdentifier(oidEd25519)
		})
		spki.AddASN1BitString(raw)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", pub)
	}
	return key, nil
}

// Verifier authenticates a request for one provider.
type Verifier interface {
	// Configured reports whether a secret or key is set. Unconfigured verifiers are
	// skipped by the dispatcher.
	Configured() bool
	Verify(r *Request, now time.Time) error
}

// HMACHexScheme verifies a hex HMAC-SHA256 of the body carried in one header.
type HMACHexScheme struct {
	Header string
	Prefix string
	Secret string
}

func (s HMACHexScheme) Configured() bool {
	return s.Secret != ""
}

func (s HMACHexScheme) Verify(r *Request, _ time.Time) error {
	sig := r.Header.Get(s.Header)
	if sig == "" {
		return fmt.Errorf("%w: %s header not set", ErrMissingSignature, s.Header)
	}
	if !VerifyHMACHex(r.Body, sig, s.Secret, s.Prefix) {
		return ErrInvalidSignature
	}
	return nil
}

// TimestampedHMACScheme verifies "v0=<hex>" signatures over "v0:{ts}:{body}".
type TimestampedHMACScheme struct {
	SignatureHeader string
	TimestampHeader string
	Secret          string
	// Tolerance defaults to DefaultTolerance.
	Tolerance time.Duration
}

func (s TimestampedHMACScheme) Configured() bool {
	return s.Secret != ""
}

func (s TimestampedHMACScheme) Verify(r *Request, now time.Time) error {
	sig := r.Header.Get(s.SignatureHeader)
	ts := r.Header.Get(s.TimestampHeader)
	if sig == "" || ts == "" {
		return fmt.Errorf("%w: %s and %s headers are required", ErrMissingSignature, s.SignatureHeader, s.TimestampHeader)
	}
	return verifyTimestampedHMAC(r.Body, sig, s.Secret, ts, "v0", s.Tolerance, now)
}

// Ed25519Scheme verifies hex Ed25519 signatures over timestamp || body.
type Ed25519Scheme struct {
	SignatureHeader string
	TimestampHeader string
	PublicKey       string
}

func (s Ed25519Scheme) Configured() bool {
	return s.PublicKey != ""
}

func (s Ed25519Scheme) Verify(r *Request, _ time.Time) error {
	sig := r.Header.Get(s.SignatureHeader)
	ts := r.Header.Get(s.TimestampHeader)
	if sig == "" || ts == "" {
		return fmt.Errorf("%w: %s and %s headers are required", ErrMissingSignature, s.SignatureHeader, s.TimestampHeader)
	}
	if !VerifyEd25519(r.Body, sig, s.PublicKey, ts) {
		return ErrInvalidSignature
	}
	return nil
}
