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
	"context"
	"net/http"
	"strings"

	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/server/httperr"
)

// UserHeader 呼叫端身分標頭。身分驗證不在本服務範圍，閘道層負責。
const UserHeader = "X-User-Id"

const maxUserIDLen = 64

type userKey struct{}

// User 從 X-User-Id（websocket 另可用 ?user_id=）讀取使用者，缺省時用 defaultUser。
// 非法的 id（過長或含控制字元）直接回 400。
func User(defaultUser string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(UserHeader))
			// 瀏覽器的 websocket 無法自訂標頭
			if id == "" && isWebSocketUpgrade(r) {
				id = strings.TrimSpace(r.URL.Query().Get("user_id"))
			}
			if id == "" {
				id = defaultUser
			}
			if !validUserID(id) {
				httperr.Errs(w, errs.Invalidf("invalid %s header", UserHeader))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
		})
	}
}

// UserID 回傳 User middleware 放進 context 的使用者；沒有時回空字串（engine 會換成預設使用者）。
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

func validUserID(id string) bool {
	if len(id) == 0 || len(id) > maxUserIDLen {
		return false
	}
	for _, c := range id {
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
