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


// Package corefmt 集中 seed 與雜湊的文字編碼。
//
// 所有 seed 在系統邊界上都以小寫 hex 傳遞（JSON / DB / log 皆同），
// 這樣第三方拿到的字串可以直接貼進任何 SHA-256 工具重算。
package corefmt

import (
	"encoding/hex"
	"io"
	"strings"

	"github.com/zintix-labs/dicelab/errs"
)

func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Invalidf("decode hex failed: %v", err)
	}
	return b, nil
}

// IsHex 檢查 s 是否為恰好 nBytes 位元組的小寫 hex。nBytes <= 0 時只檢查字元集與偶數長度。
func IsHex(s string, nBytes int) bool {
	if nBytes > 0 && len(s) != 2*nBytes {
		return false
	}
	if len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// RandomHex 從 r 讀取 n 個位元組並回傳 hex 字串。
//
// 讀取失敗或讀不滿 n 個位元組時回傳 ErrEntropyUnavailable，不做任何降級。
func RandomHex(r io.Reader, n int) (string, error) {
	if r == nil || n <= 0 {
		return "", errs.Entropy(io.ErrUnexpectedEOF)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errs.Entropy(err)
	}
	return EncodeHex(b), nil
}

// NormalizeHex 去除前後空白並轉小寫，供使用者貼上的 seed / hash 比對。
func NormalizeHex(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
