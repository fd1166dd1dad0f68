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


package corefmt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/zintix-labs/dicelab/errs"
)

func TestRandomHex(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0xab}, 32))
	s, err := RandomHex(src, 32)
	if err != nil {
		t.Fatalf("RandomHex error = %v", err)
	}
	if s != strings.Repeat("ab", 32) {
		t.Fatalf("RandomHex = %q", s)
	}
	if !IsHex(s, 32) {
		t.Fatalf("IsHex(%q, 32) = false", s)
	}
}

func TestRandomHexShortRead(t *testing.T) {
	_, err := RandomHex(bytes.NewReader([]byte{1, 2, 3}), 32)
	if !errors.Is(err, errs.ErrEntropyUnavailable) {
		t.Fatalf("RandomHex short read error = %v, want entropy unavailable", err)
	}
}

func TestIsHex(t *testing.T) {
	cases := map[string]bool{
		"00ff":   true,
		"00FF":   false,
		"0g":     false,
		"abc":    false,
		"":       true,
		"deadbe": true,
	}
	for in, want := range cases {
		if got := IsHex(in, 0); got != want {
			t.Fatalf("IsHex(%q) = %v, want %v", in, got, want)
		}
	}
	if IsHex("00ff", 3) {
		t.Fatalf("IsHex length check failed")
	}
	if NormalizeHex("  AbCd \n") != "abcd" {
		t.Fatalf("NormalizeHex failed")
	}
}

func TestDecodeHexInvalid(t *testing.T) {
	if _, err := DecodeHex("zz"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("DecodeHex error = %v, want invalid input", err)
	}
}
