package util

import "sync"

// TransferUnit is the largest chunk moved by a single read/write pair in
// the relay and the shell bridge.
const TransferUnit = 8192

// BufPool provides reusable transfer buffers so that each relay
// direction does not allocate a fresh chunk per session.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, TransferUnit)
		return &buf
	},
}

// GetBuf retrieves a TransferUnit-sized buffer from the pool.  Callers
// must return it with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.  Buffers of the wrong
// size are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || len(*buf) != TransferUnit {
		return
	}
	BufPool.Put(buf)
}
