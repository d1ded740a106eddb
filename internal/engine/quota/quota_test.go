package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitFor(t *testing.T) {
	p := NewPolicy(DefaultPlans(), "free")

	assert.Equal(t, Limit(2), p.LimitFor("free"))
	assert.Equal(t, Limit(20), p.LimitFor("pro"))
	assert.True(t, p.LimitFor("enterprise").IsUnbounded())
	assert.Equal(t, Limit(2), p.LimitFor("legacy-gold"), "unknown plans use the default plan")

	empty := NewPolicy(nil, "missing")
	assert.Equal(t, Limit(0), empty.LimitFor("anything"))
}

func TestCanCreateCustomRole(t *testing.T) {
	p := NewPolicy(DefaultPlans(), "free")

	tests := []struct {
		plan    string
		current int
		want    bool
	}{
		{"free", 0, true},
		{"free", 1, true},
		{"free", 2, false},
		{"free", 7, false},
		{"basic", 4, true},
		{"basic", 5, false},
		{"enterprise", 0, true},
		{"enterprise", 100000, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.CanCreateCustomRole(tt.plan, tt.current), "%s with %d", tt.plan, tt.current)
	}
}

func TestUsageStats(t *testing.T) {
	p := NewPolicy(DefaultPlans(), "free")

	assert.Equal(t, Usage{Total: 5, Limit: 5, Used: 3, CanCreateMore: true}, p.UsageStats("basic", 3))
	assert.Equal(t, Usage{Total: 2, Limit: 2, Used: 2, CanCreateMore: false}, p.UsageStats("free", 2))

	// downgraded organization keeps its roles
	assert.Equal(t, Usage{Total: 2, Limit: 2, Used: 9, CanCreateMore: false}, p.UsageStats("free", 9))

	u := p.UsageStats("enterprise", 40)
	assert.Equal(t, -1, u.Limit)
	assert.Equal(t, 40, u.Used)
	assert.True(t, u.CanCreateMore)
}

func TestLimitString(t *testing.T) {
	assert.Equal(t, "unbounded", Unbounded.String())
	assert.Equal(t, "3", Limit(3).String())
}

func TestHas(t *testing.T) {
	p := NewPolicy(DefaultPlans(), "free")

	assert.True(t, p.Has("pro"))
	assert.False(t, p.Has("legacy-gold"))
}
