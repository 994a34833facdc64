// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// gzipReaderPool pools gzip readers to reduce allocations.
var gzipReaderPool sync.Pool

// gzipBody closes the pooled reader and the original body together.
type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (b *gzipBody) Close() error {
	err := b.body.Close()
	gzipReaderPool.Put(b.Reader)
	return err
}

// Decompress accepts gzip-encoded request bodies. Producers batching many
// records can send them compressed; the handler always reads plain JSON.
// A body that is not valid gzip is rejected with 400.
func Decompress(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), "gzip") || r.Body == nil {
			next(w, r)
			return
		}

		var gz *gzip.Reader
		if pooled, ok := gzipReaderPool.Get().(*gzip.Reader); ok {
			if err := pooled.Reset(r.Body); err != nil {
				gzipReaderPool.Put(pooled)
				http.Error(w, "invalid gzip body", http.StatusBadRequest)
				return
			}
			gz = pooled
		} else {
			var err error
			if gz, err = gzip.NewReader(r.Body); err != nil {
				http.Error(w, "invalid gzip body", http.StatusBadRequest)
				return
			}
		}

		r.Body = &gzipBody{Reader: gz, body: r.Body}
		r.Header.Del("Content-Encoding")
		r.Header.Del("Content-Length")
		r.ContentLength = -1
		next(w, r)
	}
}
