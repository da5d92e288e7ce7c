package platform

import (
	"errors"
	"io"
	"os"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies with positional reads and writes through a pooled
// buffer. A source shorter than size yields io.ErrUnexpectedEOF.
func copyReadWrite(dst, src *os.File, size int64) (CopyResult, error) {
	bufp := bufPool.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
	defer bufPool.Put(bufp)
	buf := *bufp

	var offset int64
	for offset < size {
		toRead := min(int64(len(buf)), size-offset)
		n, err := src.ReadAt(buf[:toRead], offset)
		if n > 0 {
			if _, werr := dst.WriteAt(buf[:n], offset); werr != nil {
				return CopyResult{BytesWritten: offset, Method: ReadWrite}, werr
			}
			offset += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && offset < size {
				err = io.ErrUnexpectedEOF
			}
			return CopyResult{BytesWritten: offset, Method: ReadWrite}, err
		}
	}
	return CopyResult{BytesWritten: offset, Method: ReadWrite}, nil
}
