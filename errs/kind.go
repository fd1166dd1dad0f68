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


package errs

import (
	"errors"
	"fmt"
)

// 領域錯誤哨兵。
//
// 呼叫端以 errors.Is(err, errs.ErrInsufficientBalance) 判斷類別；
// 具體訊息由 Invalidf / Insufficientf ... 建構，Cause 指向對應哨兵。
var (
	// ErrInvalidInput 輸入不合法（下注額 <= 0、target 超出 [1,98]、seed 格式錯誤...），任何狀態變更前即拒絕。
	ErrInvalidInput = &E{Message: "invalid input", Code: "invalid_input", ErrLv: Warn}
	// ErrInsufficientBalance 餘額不足，不做部分結算。
	ErrInsufficientBalance = &E{Message: "insufficient balance", Code: "insufficient_balance", ErrLv: Warn}
	// ErrEntropyUnavailable 無法取得足夠熵，該局直接失敗，不可退回弱亂數。
	ErrEntropyUnavailable = &E{Message: "entropy unavailable", Code: "entropy_unavailable", ErrLv: Fatal}
	// ErrVerificationMismatch 重算結果與紀錄不符：資料損毀或邏輯缺陷。
	ErrVerificationMismatch = &E{Message: "verification mismatch", Code: "verification_mismatch", ErrLv: Fatal}
	ErrNotFound             = &E{Message: "not found", Code: "not_found", ErrLv: Warn}
	ErrBusy                 = &E{Message: "busy", Code: "busy", ErrLv: Warn}
	ErrClosed               = &E{Message: "closed", Code: "closed", ErrLv: Fatal}
)

var kinds = []*E{
	ErrInvalidInput,
	ErrInsufficientBalance,
	ErrEntropyUnavailable,
	ErrVerificationMismatch,
	ErrNotFound,
	ErrBusy,
	ErrClosed,
}

func kindf(kind *E, format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), Cause: kind, ErrLv: kind.ErrLv}
}

func Invalidf(format string, a ...any) *E      { return kindf(ErrInvalidInput, format, a...) }
func Insufficientf(format string, a ...any) *E { return kindf(ErrInsufficientBalance, format, a...) }
func NotFoundf(format string, a ...any) *E     { return kindf(ErrNotFound, format, a...) }
func Busyf(format string, a ...any) *E         { return kindf(ErrBusy, format, a...) }
func Closedf(format string, a ...any) *E       { return kindf(ErrClosed, format, a...) }
func Mismatchf(format string, a ...any) *E     { return kindf(ErrVerificationMismatch, format, a...) }

// Entropy 包裝亂數來源的錯誤，固定為 Fatal。
func Entropy(cause error) *E {
	return &E{Message: fmt.Sprintf("read random seed: %v", cause), Cause: ErrEntropyUnavailable, ErrLv: Fatal}
}

// Code 回傳錯誤鏈中第一個領域哨兵的錯誤碼；沒有則依等級回傳 "internal" 或 "bad_request"。
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Code
		}
	}
	if Level(err) == Warn {
		return "bad_request"
	}
	return "internal"
}
