// AngelaMos | 2026
// entity_test.go

package progress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		current, total int
		want           int
		known          bool
	}{
		{1, 200, 1, true},
		{50, 200, 25, true},
		{1, 3, 33, true},
		{2, 3, 67, true},
		{1, 8, 13, true},
		{200, 200, 100, true},
		{250, 200, 100, true},
		{5, 0, 0, false},
		{5, -1, 0, false},
	}

	for _, tc := range tests {
		got, known := Percent(tc.current, tc.total)
		assert.Equal(t, tc.known, known, "%d/%d", tc.current, tc.total)
		assert.Equal(t, tc.want, got, "%d/%d", tc.current, tc.total)
	}
}

func TestPercentStaysInRange(t *testing.T) {
	for total := 1; total <= 60; total++ {
		for current := 1; current <= 80; current++ {
			got, known := Percent(current, total)
			assert.True(t, known)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)

			if current <= total {
				want := int(math.Round(float64(current) / float64(total) * 100))
				assert.Equal(t, want, got)
			}
		}
	}
}
