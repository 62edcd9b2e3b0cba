// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package mathutil collects the percentage helpers the rollup publisher
// needs; trimmed down from erigon-lib's math package to the one thing this
// repo actually exercises (spec §4.4 step 2's rounded percentages).
package mathutil

// RoundToTenth rounds a ratio expressed as a percentage to one decimal place
// (spec §4.4 step 2: successRate/cacheHitRate are reported to the nearest
// 0.1%).
func RoundToTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

// Percentage returns 100*numerator/denominator rounded to the nearest 0.1,
// or 0 when denominator is 0 (spec §4.4 step 2 edge case: no tasks yet).
func Percentage(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return RoundToTenth(100 * float64(numerator) / float64(denominator))
}
