package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		confidence *float64
		min        float64
		showLow    bool
		want       Band
	}{
		{"above threshold", ptr(0.9), 0.5, false, BandHigh},
		{"at threshold", ptr(0.5), 0.5, false, BandHigh},
		{"below, dimmed", ptr(0.3), 0.5, true, BandLow},
		{"below, hidden", ptr(0.3), 0.5, false, BandHidden},
		{"legacy nil confidence is 1.0", nil, 0.99, false, BandHigh},
		{"zero confidence hidden", ptr(0), 0.5, false, BandHidden},
		{"zero threshold everything high", ptr(0), 0, false, BandHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.confidence, tc.min, tc.showLow))
		})
	}
}
