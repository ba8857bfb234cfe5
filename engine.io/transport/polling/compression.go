package polling

import (
	"compress/gzip"
	"net/http"

	"github.com/NYTimes/gziphandler"
)

// newCompressor returns the middleware applied to GET responses.
// Clients that don't send `Accept-Encoding: gzip` get the plain body.
func newCompressor(threshold int) (func(http.Handler) http.Handler, error) {
	if threshold < 0 {
		return func(h http.Handler) http.Handler { return h }, nil
	}
	return gziphandler.NewGzipLevelAndMinSize(gzip.DefaultCompression, threshold)
}
