// Package mempool recycles float32 buffers used for model input tensors.
package mempool

import (
	"sync"
)

const minClass = 1024

// Float32Pool is a size-classed pool of []float32 buffers.
type Float32Pool struct {
	pools sync.Map // size class -> *sync.Pool
}

// sizeClass rounds n up to the next multiple of minClass.
func sizeClass(n int) int {
	if n <= minClass {
		return minClass
	}
	return (n + minClass - 1) / minClass * minClass
}

func (p *Float32Pool) pool(cls int) *sync.Pool {
	v, _ := p.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	return v.(*sync.Pool)
}

// Get returns a buffer of length n. Contents are unspecified.
func (p *Float32Pool) Get(n int) []float32 {
	cls := sizeClass(n)
	buf, ok := p.pool(cls).Get().([]float32)
	if !ok || cap(buf) < n {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// Put returns buf to the pool. Nil is ignored.
func (p *Float32Pool) Put(buf []float32) {
	if buf == nil {
		return
	}
	// buffers are filed under the class they fully cover
	cls := cap(buf) / minClass * minClass
	if cls < minClass {
		return
	}
	p.pool(cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}

var defaultPool Float32Pool

// GetFloat32 retrieves a buffer of length n from the shared pool.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	return defaultPool.Get(n)
}

// PutFloat32 returns a buffer to the shared pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) {
	defaultPool.Put(buf)
}
