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

package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/dicelab/errs"
)

// Body 錯誤回應本體；code 為穩定錯誤碼，error 為可讀訊息。
type Body struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusCode 將錯誤映射成 HTTP status code。
//
// 規則：
//   - ctx timeout/cancel → 504/408
//   - 領域哨兵優先（invalid 400、insufficient 422、not_found 404、busy 409、closed 503）
//   - 其餘依等級：errs.Warn → 400，errs.Fatal 與外部錯誤 → 500
//
// 本函數屬於 HTTP 邊界層，核心 errs 包不依賴 net/http。
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, errs.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrEntropyUnavailable), errors.Is(err, errs.ErrVerificationMismatch):
		return http.StatusInternalServerError
	}
	if errs.Level(err) == errs.Warn {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Code 回應中的錯誤碼；context 錯誤另外命名。
func Code(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return errs.Code(err)
}

// Errs 寫回 JSON 錯誤 {error, code}。
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := StatusCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: err.Error(), Code: Code(err)})
}

// Log 只記錄值得注意的錯誤：408/409 記 warn，5xx 記 error，其餘 4xx 交給 access log。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil || log == nil {
		return
	}
	status := StatusCode(err)
	if (status == 408) || (status == 409) || (status == 429) {
		log.Warn(msg, slog.Int("status", status), slog.Any("err", err))
	} else if (status >= 500) && (status < 600) {
		log.Error(msg, slog.Int("status", status), slog.String("code", Code(err)), slog.Any("err", err))
	}
}

// Fail 記錄並寫回錯誤。
func Fail(w http.ResponseWriter, log *slog.Logger, msg string, err error) {
	Log(log, msg, err)
	Errs(w, err)
}
