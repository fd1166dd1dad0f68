// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressConfig 壓縮等級；零值欄位使用 DefaultCompressConfig。
type CompressConfig struct {
	GzipLevel int
	ZstdLevel zstd.EncoderLevel
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel: gzip.DefaultCompression,
	ZstdLevel: zstd.SpeedFastest,
}

// Compression 使用 DefaultCompressConfig 的壓縮 middleware。
func Compression(next http.Handler) http.Handler {
	return Compress(DefaultCompressConfig)(next)
}

// Compress 依 Accept-Encoding 選擇 zstd 或 gzip；websocket 升級與 HEAD 直接放行。
func Compress(cfg CompressConfig) func(http.Handler) http.Handler {
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = DefaultCompressConfig.GzipLevel
	}
	if cfg.ZstdLevel == 0 {
		cfg.ZstdLevel = DefaultCompressConfig.ZstdLevel
	}
	p := &encoderPools{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || isWebSocketUpgrade(r) || w.Header().Get("Content-Encoding") != "" {
				next.ServeHTTP(w, r)
				return
			}
			accept := r.Header.Get("Accept-Encoding")
			switch {
			case strings.Contains(accept, "zstd"):
				zw := p.zstd(w)
				serveCompressed(w, r, next, "zstd", zw, func(discard bool) {
					if discard {
						zw.Reset(io.Discard)
					}
					_ = zw.Close()
					p.zstdPool.Put(zw)
				})
			case strings.Contains(accept, "gzip"):
				gw := p.gzip(w)
				serveCompressed(w, r, next, "gzip", gw, func(discard bool) {
					if discard {
						gw.Reset(io.Discard)
					}
					_ = gw.Close()
					p.gzipPool.Put(gw)
				})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// serveCompressed release 的 discard 為 true 時（204/304）壓縮尾巴不得寫進回應。
func serveCompressed(w http.ResponseWriter, r *http.Request, next http.Handler, enc string, cw io.Writer, release func(discard bool)) {
	w.Header().Set("Content-Encoding", enc)
	w.Header().Add("Vary", "Accept-Encoding")
	rw := &compressResponseWriter{ResponseWriter: w, w: cw}
	defer func() { release(rw.disabled) }()
	next.ServeHTTP(rw, r)
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

// 1xx / 204 / 304 沒有 body
func isNoBodyStatus(code int) bool {
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

type encoderPools struct {
	cfg      CompressConfig
	gzipPool sync.Pool
	zstdPool sync.Pool
}

func (p *encoderPools) zstd(w io.Writer) *zstd.Encoder {
	if v := p.zstdPool.Get(); v != nil {
		zw := v.(*zstd.Encoder)
		zw.Reset(w)
		return zw
	}
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(p.cfg.ZstdLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic(err)
	}
	return zw
}

func (p *encoderPools) gzip(w io.Writer) *gzip.Writer {
	if v := p.gzipPool.Get(); v != nil {
		gw := v.(*gzip.Writer)
		gw.Reset(w)
		return gw
	}
	gw, err := gzip.NewWriterLevel(w, p.cfg.GzipLevel)
	if err != nil {
		gw = gzip.NewWriter(w)
	}
	return gw
}

type compressResponseWriter struct {
	http.ResponseWriter
	w        io.Writer // gzip.Writer 或 zstd.Encoder
	disabled bool      // 無 body 狀態碼時直接寫底層
}

func (cw *compressResponseWriter) Write(b []byte) (int, error) {
	if cw.disabled {
		return cw.ResponseWriter.Write(b)
	}
	cw.Header().Del("Content-Length")
	if cw.Header().Get("Content-Type") == "" {
		cw.Header().Set("Content-Type", http.DetectContentType(b))
	}
	return cw.w.Write(b)
}

func (cw *compressResponseWriter) WriteHeader(code int) {
	cw.Header().Del("Content-Length")
	if isNoBodyStatus(code) {
		cw.disabled = true
		cw.Header().Del("Content-Encoding")
		cw.Header().Del("Vary")
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressResponseWriter) Flush() {
	if !cw.disabled {
		if f, ok := cw.w.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

func (cw *compressResponseWriter) Unwrap() http.ResponseWriter { return cw.ResponseWriter }
