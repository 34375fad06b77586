package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	apperrors "noqbot/pkg/errors"
	httputil "noqbot/pkg/http"
	"noqbot/pkg/logger"
	"noqbot/pkg/sanitizer"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const PhoneHeader = "X-Phone-Number"

type PhoneExtractor func(r *http.Request) string

type phoneLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PhoneRateLimiter throttles requests per customer phone with a token bucket
// that refills limit tokens every window.
type PhoneRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*phoneLimiter
	limit          rate.Limit
	burst          int
	window         time.Duration
	phoneExtractor PhoneExtractor
	log            *logger.Logger
	stopCh         chan struct{}
	stopOnce       sync.Once
}

func NewPhoneRateLimiter(limit int, window time.Duration, extractor PhoneExtractor, log *logger.Logger) *PhoneRateLimiter {
	limiter := &PhoneRateLimiter{
		limiters:       make(map[string]*phoneLimiter),
		limit:          rate.Every(window / time.Duration(limit)),
		burst:          limit,
		window:         window,
		phoneExtractor: extractor,
		log:            log,
		stopCh:         make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *PhoneRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for phone, pl := range rl.limiters {
				if time.Since(pl.lastSeen) > rl.window {
					delete(rl.limiters, phone)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PhoneRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *PhoneRateLimiter) Allow(phone string) bool {
	if phone == "" {
		return true
	}

	rl.mu.Lock()
	pl, ok := rl.limiters[phone]
	if !ok {
		pl = &phoneLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[phone] = pl
	}
	pl.lastSeen = time.Now()
	rl.mu.Unlock()

	return pl.limiter.Allow()
}

func PhoneRateLimit(limiter *PhoneRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			phone := extractPhoneNumber(r, limiter.phoneExtractor)

			if phone == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(phone) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestIDFromContext(r.Context()),
					"phone", phone,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", "60")
				_ = httputil.WriteError(w, apperrors.RateLimited("Rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractPhoneNumber(r *http.Request, extractor PhoneExtractor) string {
	if extractor == nil {
		extractor = DefaultPhoneExtractor
	}
	return sanitizer.NormalizePhone(extractor(r))
}

func DefaultPhoneExtractor(r *http.Request) string {
	return r.Header.Get(PhoneHeader)
}

// BookingPhoneExtractor reads the phone from the X-Phone-Number header, or
// from the userPhone field of a JSON POST body. The body is restored for the
// next handler.
func BookingPhoneExtractor(r *http.Request) string {
	if phone := r.Header.Get(PhoneHeader); phone != "" {
		return phone
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return ""
	}

	body, err := readAndRestoreBody(r)
	if err != nil || len(body) == 0 {
		return ""
	}

	var payload struct {
		UserPhone string `json:"userPhone"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.UserPhone
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
