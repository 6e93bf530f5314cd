// Package buffers pools the copy buffers used when streaming uploads.
package buffers

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/chinmay4o/superlinks/internal/constants"
)

// Pool monitoring counters
var (
	allocations int64 // buffers created by the pool
	gets        int64 // buffers handed out
)

var copyPool = &sync.Pool{
	New: func() interface{} {
		atomic.AddInt64(&allocations, 1)
		buf := make([]byte, constants.CopyBufferSize)
		return &buf
	},
}

// Get retrieves a copy buffer from the pool. Return it with Put.
func Get() *[]byte {
	atomic.AddInt64(&gets, 1)
	return copyPool.Get().(*[]byte)
}

// Put returns a buffer to the pool. Buffers of the wrong size are dropped.
// The buffer is cleared so file contents do not outlive the upload.
func Put(buf *[]byte) {
	if buf != nil && len(*buf) == constants.CopyBufferSize {
		clear(*buf)
		copyPool.Put(buf)
	}
}

// Copy is io.CopyBuffer with a pooled buffer.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := Get()
	defer Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// Stats reports pool usage.
type Stats struct {
	BufferSize  int
	Allocations int64
	Gets        int64
}

// GetStats returns current pool statistics.
func GetStats() Stats {
	return Stats{
		BufferSize:  constants.CopyBufferSize,
		Allocations: atomic.LoadInt64(&allocations),
		Gets:        atomic.LoadInt64(&gets),
	}
}
