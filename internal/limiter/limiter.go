// Package limiter bounds aggregate tunnel bandwidth with a shared token
// bucket and reports the active transfer rate over a short rolling window.
package limiter

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/juju/ratelimit"
)

const unthrottledRate = 500 * 1024 * 1024 * 1024 // 500 GB/s, i.e. effectively no cap
const windowSeconds = 5                          // trailing window used by GetActiveRate

// cappedConn wraps net.Conn, passing every Read/Write through a shared
// token bucket so one tunnel can't starve its siblings of the configured
// aggregate bandwidth.
type cappedConn struct {
	net.Conn
	bucket *ratelimit.Bucket
	shared *SharedLimiter
}

func (c *cappedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.bucket.Wait(int64(n))
		if c.shared != nil {
			c.shared.record(int64(n))
		}
	}
	return n, err
}

func (c *cappedConn) Write(p []byte) (int, error) {
	c.bucket.Wait(int64(len(p)))
	n, err := c.Conn.Write(p)
	if err == nil && c.shared != nil {
		c.shared.record(int64(n))
	}
	return n, err
}

// CloseWrite half-closes the wrapped connection when it supports that, and
// closes it entirely otherwise.
func (c *cappedConn) CloseWrite() error {
	if hc, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return c.Conn.Close()
}

// second is one one-second slot of a ring buffer keyed by wall-clock second
// modulo its length: whichever goroutine first touches a slot for a new
// second resets it, so no separate rotation step or lock is needed.
type second struct {
	unixTime atomic.Int64
	bytes    atomic.Int64
}

// SharedLimiter is a bandwidth cap shared across every relayed tunnel
// connection on one qpiped process, plus a rolling active-rate estimate
// for the status endpoint.
type SharedLimiter struct {
	bucket  *ratelimit.Bucket
	maxRate int64
	ring    [windowSeconds]second
}

// NewSharedLimiter returns a limiter capped at bytesPerSec. A non-positive
// value disables throttling.
func NewSharedLimiter(bytesPerSec int64) *SharedLimiter {
	if bytesPerSec <= 0 {
		bytesPerSec = unthrottledRate
	}
	return &SharedLimiter{
		bucket:  ratelimit.NewBucketWithRate(float64(bytesPerSec), bytesPerSec),
		maxRate: bytesPerSec,
	}
}

// record adds n bytes to the ring slot for the current second, clearing
// stale bytes left over from windowSeconds ago.
func (l *SharedLimiter) record(n int64) {
	now := time.Now().Unix()
	slot := &l.ring[now%windowSeconds]
	if slot.unixTime.Swap(now) != now {
		slot.bytes.Store(0)
	}
	slot.bytes.Add(n)
}

// WrapConn wraps c so all reads and writes are rate limited and counted
// toward the active-rate estimate.
func (l *SharedLimiter) WrapConn(c net.Conn) net.Conn {
	return &cappedConn{Conn: c, bucket: l.bucket, shared: l}
}

// GetActiveRate returns the mean transfer rate, in bytes/sec, observed over
// the trailing windowSeconds-second window.
func (l *SharedLimiter) GetActiveRate() int64 {
	now := time.Now().Unix()
	cutoff := now - windowSeconds

	var total int64
	for i := range l.ring {
		slot := &l.ring[i]
		if ts := slot.unixTime.Load(); ts > cutoff {
			total += slot.bytes.Load()
		}
	}
	return total / windowSeconds
}

// GetMaxRate returns the configured cap in bytes/sec.
func (l *SharedLimiter) GetMaxRate() int64 {
	return l.maxRate
}
