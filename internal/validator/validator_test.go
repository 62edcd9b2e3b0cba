package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

func TestValidHash(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"minimum length", "abcdef01", true},
		{"maximum length", repeat("a", 64), true},
		{"too short", "abc", false},
		{"too long", repeat("a", 65), false},
		{"uppercase rejected", "ABCDEF01", false},
		{"non-hex rejected", "zzzzzzzz", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ValidHash(c.in))
		})
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, s...)
	}
	return string(out[:n])
}

func TestValidNodeID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"valid", "node-123e4567-e89b-12d3-a456-426614174000", true},
		{"missing prefix", "123e4567-e89b-12d3-a456-426614174000", false},
		{"wrong dash positions", "node-123e4567e89b-12d3-a456-426614174000", false},
		{"too short uuid part", "node-123", false},
		{"uppercase hex allowed", "node-123E4567-E89B-12D3-A456-426614174000", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ValidNodeID(c.in))
		})
	}
}

func TestValidBucket(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"numeric range", "100-200", true},
		{"with units", "1K-5M", true},
		{"empty rejected", "", false},
		{"too long", repeat("1", 21), false},
		{"invalid char", "100%", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ValidBucket(c.in))
		})
	}
}

func TestValidLocationBucket(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"valid", "37.7,-122.4", true},
		{"missing comma", "37.7 -122.4", false},
		{"lat out of range", "91,0", false},
		{"lon out of range", "0,181", false},
		{"non-numeric", "abc,def", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ValidLocationBucket(c.in))
		})
	}
}

func TestValidate_WellFormedMessagePasses(t *testing.T) {
	msg := model.Raw{
		"nodeId": "node-123e4567-e89b-12d3-a456-426614174000",
		"data": map[string]any{
			"taskIdHash":          "abcdef0123456789",
			"chainId":             "1",
			"taskType":            "compute",
			"executionTimeBucket": "100-200",
		},
	}
	require.NoError(t, Validate(msg))
}

func TestValidate_RejectsBadNodeID(t *testing.T) {
	msg := model.Raw{"nodeId": "not-a-node-id"}
	err := Validate(msg)
	require.Error(t, err)
}

func TestValidate_RejectsBadHash(t *testing.T) {
	msg := model.Raw{
		"data": map[string]any{"taskIdHash": "short"},
	}
	require.Error(t, Validate(msg))
}

func TestValidate_RejectsOversizedString(t *testing.T) {
	msg := model.Raw{
		"data": map[string]any{"chainId": repeat("x", 65)},
	}
	require.Error(t, Validate(msg))
}

func TestValidate_MissingDataIsFine(t *testing.T) {
	msg := model.Raw{"nodeId": "node-123e4567-e89b-12d3-a456-426614174000"}
	require.NoError(t, Validate(msg))
}

func TestValidate_NonMapRejected(t *testing.T) {
	require.Error(t, Validate("not a map"))
	require.Error(t, Validate(42))
}
