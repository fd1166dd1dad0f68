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

package stats

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"
)

// RollBuckets roll 落點分桶數：[0,1), [1,2), ..., [99,100)，每桶寬 1.00。
//
// 公平的推導下每桶機率相同（各 100 個 roll 值），可直接做均勻性卡方檢定。
const RollBuckets = 100

// UniformAlpha 卡方檢定的顯著水準；p 值低於此值視為偏離均勻。
const UniformAlpha = 0.01

var rollBucketStr = func() []string {
	s := make([]string, RollBuckets)
	for i := range s {
		s[i] = fmt.Sprintf("[%d,%d)", i, i+1)
	}
	return s
}()

// RollBucketStr 各分桶標籤
func RollBucketStr() []string {
	return rollBucketStr
}

// RollIndex 回傳 roll 所在的分桶，超出 [0,100) 時夾在邊界桶。
func RollIndex(roll decimal.Decimal) int {
	i := int(roll.IntPart())
	if i < 0 {
		return 0
	}
	if i >= RollBuckets {
		return RollBuckets - 1
	}
	return i
}

// ChiSquareUniform 對各桶計數做均勻分布卡方適合度檢定。
//
// 回傳卡方統計量、自由度與右尾 p 值；總數為 0 或少於兩桶時回傳 (0, 0, 1)。
func ChiSquareUniform(counts []int) (chi2 float64, dof int, pValue float64) {
	k := len(counts)
	total := 0
	for _, c := range counts {
		total += c
	}
	if k < 2 || total == 0 {
		return 0, 0, 1
	}
	exp := float64(total) / float64(k)
	for _, c := range counts {
		d := float64(c) - exp
		chi2 += d * d / exp
	}
	dof = k - 1
	pValue = distuv.ChiSquared{K: float64(dof)}.Survival(chi2)
	return chi2, dof, pValue
}
