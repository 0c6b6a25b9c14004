package archive

import (
	"compress/flate"
	"io"
)

// newDeflateWriter returns a flate.Writer at the given compression level,
// falling back to the default level for out-of-range values so a caller
// passing an unchecked Options.Compression can never produce a broken
// archive.
func newDeflateWriter(out io.Writer, level int) (io.WriteCloser, error) {
	if level < 0 || level > 9 {
		level = flate.DefaultCompression
	}
	return flate.NewWriter(out, level)
}
