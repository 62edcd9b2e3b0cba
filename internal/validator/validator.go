// Package validator implements the pure, synchronous predicates of spec
// §4.1. It performs no I/O and never mutates its input.
package validator

import (
	"math"
	"strconv"
	"strings"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/apperr"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

const (
	maxHashLen    = 64
	minHashLen    = 8
	maxBucketLen  = 20
	maxStringLen  = 64
	nodeIDPrefix  = "node-"
)

var bucketAlphabet = buildBucketAlphabet()

func buildBucketAlphabet() [256]bool {
	var set [256]bool
	for c := '0'; c <= '9'; c++ {
		set[c] = true
	}
	for _, c := range []byte{'-', '<', '>', 'K', 'M', 'G'} {
		set[c] = true
	}
	return set
}

// Validate applies all rules in spec §4.1 to msg and returns a
// *apperr.Error of Kind KindValidation describing the first violation, or
// nil if msg is well-formed. It never panics on malformed input, including
// non-map top-level values.
func Validate(msg any) error {
	m, ok := msg.(model.Raw)
	if !ok {
		asMap, ok2 := msg.(map[string]any)
		if !ok2 {
			return apperr.Validation("message is not a map")
		}
		m = asMap
	}

	if rawNodeID, present := m["nodeId"]; present {
		nodeID, ok := rawNodeID.(string)
		if !ok {
			return apperr.Validation("nodeId is not a string")
		}
		if !ValidNodeID(nodeID) {
			return apperr.Validation("nodeId fails I2 format")
		}
	}

	rawData, present := m["data"]
	if !present {
		return nil
	}
	data, ok := rawData.(map[string]any)
	if !ok {
		return apperr.Validation("data is not a map")
	}

	for _, field := range []string{"taskIdHash", "invoiceIdHash"} {
		if v, ok := data[field]; ok {
			s, ok := v.(string)
			if !ok || !ValidHash(s) {
				return apperr.Validation(field + " fails I1 format")
			}
		}
	}

	for _, field := range []string{
		"executionTimeBucket", "gasUsedBucket", "stepsComputedBucket",
		"memoryUsedBucket", "totalTasksBucket", "activeTasksBucket",
	} {
		if v, ok := data[field]; ok {
			s, ok := v.(string)
			if !ok || !ValidBucket(s) {
				return apperr.Validation(field + " fails I3 format")
			}
		}
	}

	for _, field := range []string{"chainId", "taskType", "status", "operation", "continentBucket"} {
		if v, ok := data[field]; ok {
			s, ok := v.(string)
			if !ok || len(s) > maxStringLen {
				return apperr.Validation(field + " exceeds 64 chars or is not a string")
			}
		}
	}

	if v, ok := data["locationBucket"]; ok {
		s, ok := v.(string)
		if !ok || !ValidLocationBucket(s) {
			return apperr.Validation("locationBucket fails lat,lon format")
		}
	}

	return nil
}

// ValidHash implements invariant I1: lowercase hex, 8–64 characters.
func ValidHash(s string) bool {
	if len(s) < minHashLen || len(s) > maxHashLen {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ValidNodeID implements invariant I2: "node-<36-char-uuid-form>".
func ValidNodeID(s string) bool {
	if !strings.HasPrefix(s, nodeIDPrefix) {
		return false
	}
	uuidPart := s[len(nodeIDPrefix):]
	if len(uuidPart) != 36 {
		return false
	}
	for i, c := range uuidPart {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
	}
	return true
}

// ValidBucket implements invariant I3: short ASCII drawn from
// digits, '-', '<', '>', 'K', 'M', 'G', at most 20 characters.
func ValidBucket(s string) bool {
	if len(s) == 0 || len(s) > maxBucketLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !bucketAlphabet[s[i]] {
			return false
		}
	}
	return true
}

// ValidLocationBucket checks the "<lat>,<lon>" shape from spec §4.1.
func ValidLocationBucket(s string) bool {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return false
	}
	return true
}
