package encoding

import (
	"bytes"
	"log/slog"

	"github.com/goccy/go-json"
)

// BufferPool manages a bounded pool of encode buffers
type BufferPool struct {
	pool chan *bytes.Buffer
	size int
}

// NewBufferPool creates a new buffer pool with specified size
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = 10
	}

	pool := make(chan *bytes.Buffer, size)
	for i := 0; i < size; i++ {
		pool <- &bytes.Buffer{}
	}

	return &BufferPool{
		pool: pool,
		size: size,
	}
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() *bytes.Buffer {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		slog.Debug("Buffer pool exhausted, allocating new buffer")
		return &bytes.Buffer{}
	}
}

// Put resets a buffer and returns it to the pool
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	select {
	case bp.pool <- buf:
	default:
		// pool full
	}
}

// Available returns the number of idle buffers
func (bp *BufferPool) Available() int {
	return len(bp.pool)
}

// Codec encodes and decodes snapshots and cached score results
type Codec struct {
	buffers *BufferPool
}

// NewCodec creates a codec backed by a buffer pool of the given size
func NewCodec(poolSize int) *Codec {
	return &Codec{buffers: NewBufferPool(poolSize)}
}

// Marshal encodes v without a trailing newline. The returned slice is owned
// by the caller.
func (c *Codec) Marshal(v interface{}) ([]byte, error) {
	buf := c.buffers.Get()
	defer c.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}

	data := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Unmarshal decodes data into v
func (c *Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Stats returns pool statistics
func (c *Codec) Stats() map[string]interface{} {
	return map[string]interface{}{
		"buffer_pool_size":      c.buffers.size,
		"buffer_pool_available": c.buffers.Available(),
	}
}

var defaultCodec = NewCodec(20)

// MarshalJSON marshals data using the shared codec
func MarshalJSON(v interface{}) ([]byte, error) {
	return defaultCodec.Marshal(v)
}

// UnmarshalJSON unmarshals data using the shared codec
func UnmarshalJSON(data []byte, v interface{}) error {
	return defaultCodec.Unmarshal(data, v)
}
