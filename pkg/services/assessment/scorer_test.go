package assessment

import (
	"testing"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		counts   domain.SeverityCounts
		expected int
	}{
		{
			name:     "no findings is a perfect score",
			counts:   domain.SeverityCounts{},
			expected: 100,
		},
		{
			// weighted = 2*3 + 1*1.5 = 7.5 -> round(100/(1+7.5/20)) = round(72.73)
			name:     "two high one medium",
			counts:   domain.SeverityCounts{Total: 3, High: 2, Medium: 1},
			expected: 73,
		},
		{
			name:     "single low finding",
			counts:   domain.SeverityCounts{Total: 1, Low: 1},
			expected: 98,
		},
		{
			name:     "heavy load never reaches zero",
			counts:   domain.SeverityCounts{Total: 1000, High: 1000},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Score(tt.counts))
		})
	}
}

func TestScore_MonotonicallyDecreasing(t *testing.T) {
	previous := Score(domain.SeverityCounts{})
	for high := 1; high <= 50; high++ {
		current := Score(domain.SeverityCounts{Total: high, High: high})
		assert.LessOrEqual(t, current, previous)
		assert.Greater(t, current, 0)
		previous = current
	}
}

func TestModuleScore_SteeperThanOverall(t *testing.T) {
	counts := domain.SeverityCounts{Total: 3, High: 2, Medium: 1}

	// weighted = 7.5; overall divisor 20 -> 73, module divisor 10 -> 57
	assert.Equal(t, 73, Score(counts))
	assert.Equal(t, 57, ModuleScore(counts))

	assert.Equal(t, 100, ModuleScore(domain.SeverityCounts{}))
}
