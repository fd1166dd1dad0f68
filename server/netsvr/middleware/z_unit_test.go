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
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var payload = strings.Repeat(`{"roll":"42.17","won":true}`, 64)

func echo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, payload)
}

func TestCompressionGzip(t *testing.T) {
	h := Compression(http.HandlerFunc(echo))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("encoding = %q", rr.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip reader error = %v", err)
	}
	got, _ := io.ReadAll(zr)
	if string(got) != payload {
		t.Fatalf("round trip mismatch")
	}
}

func TestCompressionZstd(t *testing.T) {
	h := Compression(http.HandlerFunc(echo))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "zstd, gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "zstd" {
		t.Fatalf("encoding = %q", rr.Header().Get("Content-Encoding"))
	}
	zr, err := zstd.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("zstd reader error = %v", err)
	}
	defer zr.Close()
	got, _ := io.ReadAll(zr)
	if string(got) != payload {
		t.Fatalf("round trip mismatch")
	}
}

func TestCompressionSkipsNoBody(t *testing.T) {
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 || rr.Header().Get("Content-Encoding") != "" {
		t.Fatalf("204 = %d len %d enc %q", rr.Code, rr.Body.Len(), rr.Header().Get("Content-Encoding"))
	}
}

func TestUser(t *testing.T) {
	var seen string
	h := User("1")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r)
	}))
	tests := []struct {
		header string
		want   string
		status int
	}{
		{"", "1", http.StatusOK},
		{"alice", "alice", http.StatusOK},
		{"  bob ", "bob", http.StatusOK},
		{strings.Repeat("x", 65), "", http.StatusBadRequest},
		{"a\x01b", "", http.StatusBadRequest},
	}
	for _, tc := range tests {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set(UserHeader, tc.header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.status || seen != tc.want {
			t.Fatalf("header %q: status %d user %q, want %d %q", tc.header, rr.Code, seen, tc.status, tc.want)
		}
	}
}

func TestAccessLogAndRecover(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(AccessLog(log)(Recover(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/rounds", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"http.panic"`, `"msg":"http.access"`, `"status":500`, `"path":"/v1/rounds"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s:\n%s", want, out)
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetReqId(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "edge-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "edge-42" || rec.Header().Get("X-Request-Id") != "edge-42" {
		t.Fatalf("upstream id not kept: ctx=%q header=%q", seen, rec.Header().Get("X-Request-Id"))
	}

	for _, bad := range []string{"", "has space", strings.Repeat("x", 129)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if bad != "" {
			req.Header.Set("X-Request-Id", bad)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen == bad || len(seen) != 36 || rec.Header().Get("X-Request-Id") != seen {
			t.Fatalf("id for %q = %q", bad, seen)
		}
	}
}
