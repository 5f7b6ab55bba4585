package quicconn

import (
	"time"

	"github.com/quic-go/quic-go"
)

// DefaultQUICConfig returns transport parameters suitable for a
// long-lived, multiplexed tunnel connection. Idle timeout is generous
// because an idle tunnel with no active streams is normal, not a fault.
func DefaultQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:                 5 * time.Minute,
		InitialStreamReceiveWindow:     1024 * 1024 * 10,
		MaxStreamReceiveWindow:         1024 * 1024 * 40,
		InitialConnectionReceiveWindow: 1024 * 1024 * 40,
		MaxConnectionReceiveWindow:     1024 * 1024 * 80,
		MaxIncomingStreams:             1000,
		MaxIncomingUniStreams:          -1,
		EnableDatagrams:                false,
	}
}
