package server

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxRateLimitEntries = 100000
	msgTooManyRequests  = "Too many requests. Please slow down."
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP a fixed number of submissions per window.
// A nil *RateLimiter allows everything.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

// NewRateLimiter returns nil when perWindow is not positive.
func NewRateLimiter(perWindow int, window time.Duration) *RateLimiter {
	if perWindow <= 0 {
		return nil
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(perWindow)),
		burst:    perWindow,
		idle:     2 * window,
	}
}

// Allow reports whether ip may submit now, and if not, how long to wait.
func (l *RateLimiter) Allow(ip string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[ip]
	if !ok {
		if len(l.visitors) >= maxRateLimitEntries {
			l.pruneLocked(now)
			if len(l.visitors) >= maxRateLimitEntries {
				return false, time.Minute
			}
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *RateLimiter) pruneLocked(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, ip)
		}
	}
}

// Middleware rejects clients over their budget with a 429 JSON body.
func (l *RateLimiter) Middleware(clientIP func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return l.Limit(clientIP, writeRateLimited, next)
}

// Limit hands clients over their budget to rejected instead of next.
func (l *RateLimiter) Limit(clientIP func(*http.Request) string, rejected func(http.ResponseWriter, *http.Request, time.Duration), next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allowed, wait := l.Allow(clientIP(r)); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter(wait)))
			rejected(w, r, wait)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func retryAfter(wait time.Duration) int {
	return int(math.Ceil(wait.Seconds()))
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, wait time.Duration) {
	writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":   msgTooManyRequests,
		"resetIn": retryAfter(wait),
	})
}

// TrustedProxies are the peers allowed to report the client address.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts IPs and CIDRs. Invalid entries are skipped and
// reported in the error.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var (
		nets TrustedProxies
		bad  []string
	)
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			_, n, err := net.ParseCIDR(entry)
			if err != nil {
				bad = append(bad, entry)
				continue
			}
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			bad = append(bad, entry)
			continue
		}
		bits := 128
		if v4 := ip.To4(); v4 != nil {
			ip, bits = v4, 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	if len(bad) > 0 {
		return nets, fmt.Errorf("invalid trusted proxies: %s", strings.Join(bad, ", "))
	}
	return nets, nil
}

func (p TrustedProxies) trusts(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range p {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the connecting peer address. Forwarding headers are read
// only when that peer is trusted, walking X-Forwarded-For from the right past
// trusted hops.
func (p TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !p.trusts(peer) {
		return peer
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !p.trusts(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
