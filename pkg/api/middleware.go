package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type requestIDKey struct{}

// RequestIDMiddleware injects a unique X-Request-ID into every request
// context and response header. A client-provided id is reused.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SenderRateLimiter throttles webhook traffic per sender identity so one
// chatty number cannot starve the rest.
type SenderRateLimiter struct {
	mu      sync.Mutex
	senders map[string]*senderEntry
	rps     rate.Limit
	burst   int
}

type senderEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSenderRateLimiter creates a limiter allowing rps sustained messages
// with the given burst per sender.
func NewSenderRateLimiter(rps float64, burst int) *SenderRateLimiter {
	rl := &SenderRateLimiter{
		senders: make(map[string]*senderEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether the sender may proceed.
func (rl *SenderRateLimiter) Allow(sender string) bool {
	rl.mu.Lock()
	e, ok := rl.senders[sender]
	if !ok {
		e = &senderEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.senders[sender] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()
	return e.limiter.Allow()
}

// cleanup drops idle sender entries to bound memory.
func (rl *SenderRateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for sender, e := range rl.senders {
			if time.Since(e.lastSeen) > 3*time.Minute {
				delete(rl.senders, sender)
			}
		}
		rl.mu.Unlock()
	}
}

// AdminAuth validates HS256 bearer tokens on operational endpoints. With
// an empty secret every request is rejected (fail closed).
type AdminAuth struct {
	secret []byte
}

// NewAdminAuth creates the validator.
func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{secret: []byte(secret)}
}

// Middleware rejects requests without a valid bearer token.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			WriteUnauthorized(w, "Admin endpoints are disabled")
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			WriteUnauthorized(w, "Missing Authorization header")
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == header {
			WriteUnauthorized(w, "Authorization header must use Bearer scheme")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			WriteUnauthorized(w, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
