package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

// Request signature headers.
const (
	HeaderTimestamp = "X-FP-Timestamp"
	HeaderSignature = "X-FP-Signature"
)

var (
	ErrSignatureMissing = errors.New("crypto: request signature missing")
	ErrSignatureInvalid = errors.New("crypto: request signature invalid")
	ErrSignatureExpired = errors.New("crypto: request signature expired")
)

// RequestSigner signs and verifies API requests with a shared secret.
// The signature is base64(HMAC-SHA256(secret, timestamp+method+path+body)).
type RequestSigner struct {
	Secret  []byte
	MaxSkew time.Duration
	now     func() time.Time
}

// NewRequestSigner returns a signer accepting timestamps within maxSkew.
func NewRequestSigner(secret string, maxSkew time.Duration) *RequestSigner {
	return &RequestSigner{Secret: []byte(secret), MaxSkew: maxSkew, now: time.Now}
}

// SignAt returns the signature headers for a request at unixTS.
func (s *RequestSigner) SignAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		HeaderTimestamp: ts,
		HeaderSignature: hmacSHA256Base64(s.Secret, ts+method+path+body),
	}
}

// Sign is SignAt with the current time.
func (s *RequestSigner) Sign(method, path, body string) map[string]string {
	return s.SignAt(method, path, body, s.clock().Unix())
}

// Verify checks the timestamp window and the signature.
func (s *RequestSigner) Verify(method, path, body, ts, sig string) error {
	if ts == "" || sig == "" {
		return ErrSignatureMissing
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if s.MaxSkew > 0 {
		skew := s.clock().Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > s.MaxSkew {
			return ErrSignatureExpired
		}
	}
	want := hmacSHA256Base64(s.Secret, ts+method+path+body)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrSignatureInvalid
	}
	return nil
}

func (s *RequestSigner) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
