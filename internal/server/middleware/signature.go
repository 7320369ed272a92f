package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/flowpredict/internal/crypto"
)

// maxSignedBody caps the body read for signature verification.
const maxSignedBody = 64 << 10

// Signed returns middleware that verifies X-FP-Timestamp / X-FP-Signature
// on every request. A nil signer disables the check.
func Signed(signer *crypto.RequestSigner, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if signer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read body")
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			err = signer.Verify(r.Method, r.URL.Path, string(body),
				r.Header.Get(crypto.HeaderTimestamp),
				r.Header.Get(crypto.HeaderSignature),
			)
			if err != nil {
				logger.WarnContext(r.Context(), "request signature rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				msg := "invalid request signature"
				switch {
				case errors.Is(err, crypto.ErrSignatureMissing):
					msg = "missing request signature"
				case errors.Is(err, crypto.ErrSignatureExpired):
					msg = "request signature expired"
				}
				writeError(w, http.StatusUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
