package transport

import (
	"bytes"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/Nitro/urlsign"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const signingBucketSize = 8 * time.Hour

type middleware struct {
	log            zerolog.Logger
	writer         writer
	traceExtractor traceExtractor
	secret         string
	now            func() time.Time
}

func (m middleware) recoverer(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil && rvr != http.ErrAbortHandler {
				m.writer.error(r.Context(), w, "Internal server error", nil, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// limitReader don't prevent all cases of a way to big payload. The way this function works is by looking to the
// content-length header. This header may not be available or even wrong, the handlers limit the body read as well.
func (m middleware) limitReader(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			rawContentLength := r.Header.Get("Content-Length")
			if rawContentLength != "" {
				contentLength, err := strconv.ParseInt(rawContentLength, 10, 64)
				if err != nil {
					m.writer.error(r.Context(), w, "Fail to parse the header content-length", err, http.StatusBadRequest)
					return
				}
				if contentLength > limit {
					m.writer.error(r.Context(), w, "Request payload too large", nil, http.StatusRequestEntityTooLarge)
					return
				}
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// signature checks the urlsign token of the request. Every request but the health check is signed once a secret is
// configured.
func (m middleware) signature(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now
		if m.now != nil {
			now = m.now
		}

		if rawTTL := r.URL.Query().Get("token-ttl"); rawTTL != "" {
			ttl, err := strconv.ParseInt(rawTTL, 10, 64)
			if err != nil {
				m.writer.error(r.Context(), w, "Invalid 'token-ttl' parameter", nil, http.StatusBadRequest)
				return
			}
			if now().UTC().Unix() > ttl {
				m.writer.error(r.Context(), w, "Token expired", nil, http.StatusUnauthorized)
				return
			}
		}

		if !urlsign.IsValidSignature(m.secret, signingBucketSize, now().UTC(), urlToVerify(r)) {
			m.writer.error(r.Context(), w, "Invalid signature", errors.New("invalid token"), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func (m middleware) logger(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		requestURI := r.RequestURI
		if token := r.URL.Query().Get("token"); token != "" {
			requestURI = strings.ReplaceAll(requestURI, token, "[REDACTED]")
		}

		log, err := m.traceExtractor(r.Context(), m.log)
		if err != nil {
			m.writer.error(r.Context(), w, "Could not extract tracing id", nil, http.StatusInternalServerError)
			return
		}

		t1 := time.Now()
		reqID := chiMiddleware.GetReqID(r.Context())
		entry := log.Info().
			Str("requestID", reqID).
			Str("method", r.Method).
			Str("endpoint", requestURI).
			Str("protocol", r.Proto)
		if r.RemoteAddr != "" {
			entry = entry.Str("ip", r.RemoteAddr)
		}
		entry.Msg("Request started")

		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Str("requestID", reqID).
					Dur("duration", time.Since(t1)).
					Int("status", 500).
					Str("stacktrace", string(debug.Stack())).
					Msg("Request finished with panic")
				panic(err)
			}
		}()

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		responseBody := bytes.NewBuffer([]byte{})
		ww.Tee(responseBody)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		entry = log.Info().
			Err(r.Context().Err()).
			Str("requestID", reqID).
			Dur("duration", time.Since(t1)).
			Int("contentLength", ww.BytesWritten()).
			Int("status", status)

		// Only the JSON error envelopes are logged, not the PNG overlays.
		if (status < 200 || status >= 300) && strings.HasPrefix(ww.Header().Get("Content-Type"), "application/json") {
			entry = entry.Str("body", responseBody.String())
		}

		if status == http.StatusInternalServerError {
			entry.Str("stacktrace", string(debug.Stack())).Msg("Internal error during request")
		} else {
			entry.Msg("Request finished")
		}
	}

	return http.HandlerFunc(fn)
}
