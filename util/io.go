package util

import (
	"errors"
	"io"
)

// DefaultBufSize is the chunk size used for bulk network reads (32 KiB).
const DefaultBufSize = 32 * 1024

// ReadAllInto drains r until EOF, replacing *dst with every byte read.
// A clean EOF is not an error.  On any other error *dst holds whatever
// arrived before the failure.
func ReadAllInto(r io.Reader, dst *[]byte) (int, error) {
	chunk := GetBuf()
	defer PutBuf(chunk)

	out := (*dst)[:0]
	for {
		n, err := r.Read(*chunk)
		out = append(out, (*chunk)[:n]...)
		if err != nil {
			*dst = out
			if errors.Is(err, io.EOF) {
				return len(out), nil
			}
			return len(out), err
		}
	}
}
