// Package logs turns raw process output into normalized entries. The
// framework is line-framed: adapters parse each complete line, and
// anything that fails to parse is committed as a raw entry so no input
// silently vanishes. Stdout and stderr run through independent
// normalizers that share one IndexProvider and one MsgStore, so the
// committed interleaving reflects true arrival order.
package logs

import (
	"bufio"
	"context"
	"io"
)

const (
	// MaxScanTokenSize is the maximum line size accepted by the
	// framing scanner. Stream-json events can be large, especially
	// tool_use payloads; 1MB gives ample headroom.
	MaxScanTokenSize = 1024 * 1024

	// ScanBufferSize is the scanner's initial buffer size.
	ScanBufferSize = 64 * 1024
)

// Normalizer consumes one raw output stream and commits entries until
// the stream ends. Implementations must flush trailing incomplete data
// as a raw entry rather than lose it.
type Normalizer interface {
	Normalize(ctx context.Context, r io.Reader) error
}

// newScanner creates a line scanner with consistent buffer settings.
// bufio.Scanner buffers partial lines across read boundaries and
// returns the trailing unterminated line at EOF, which is exactly the
// framing tolerance the normalizers need.
func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, ScanBufferSize), MaxScanTokenSize)
	return scanner
}
