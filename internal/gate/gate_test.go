package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func score(n int) *int { return &n }

func TestAdmit(t *testing.T) {
	g := New(70)

	tests := []struct {
		name  string
		score *int
		want  bool
	}{
		{"at threshold", score(70), true},
		{"just below", score(69), false},
		{"above", score(82), true},
		{"max", score(100), true},
		{"zero", score(0), false},
		{"absent", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Admit(tt.score))
		})
	}
	assert.Equal(t, 70, g.Threshold())
}

func TestAdmit_BoundaryThresholds(t *testing.T) {
	assert.True(t, New(0).Admit(score(0)))
	assert.False(t, New(0).Admit(nil))
	assert.True(t, New(100).Admit(score(100)))
	assert.False(t, New(100).Admit(score(99)))
}
