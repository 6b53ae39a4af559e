package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBuckets(t *testing.T) {
	buckets := []Bucket{
		{ID: "c", Priority: 10, Enabled: true},
		{ID: "a", Priority: 20, Enabled: true},
		{ID: "b", Priority: 10, Enabled: true},
		{ID: "d", Priority: 1, Enabled: false},
	}

	snapshot := SnapshotBuckets(buckets)

	ids := make([]string, 0, len(snapshot))
	for _, b := range snapshot {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, "c", buckets[0].ID, "input must not be reordered")
}

func TestResolveTieBreakIsDeterministic(t *testing.T) {
	email := &Email{From: "x@y.com", Subject: "hello"}
	forward := []Bucket{
		{ID: "zeta", Priority: 5, Enabled: true},
		{ID: "alpha", Priority: 5, Enabled: true},
	}
	reversed := []Bucket{forward[1], forward[0]}

	for i := 0; i < 10; i++ {
		b1, ok1 := Resolve(forward, email)
		b2, ok2 := Resolve(reversed, email)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, "alpha", b1.ID)
		assert.Equal(t, b1, b2)
	}
}

func TestResolve(t *testing.T) {
	buckets := []Bucket{
		{ID: "other", Priority: 1000, Enabled: true},
		{ID: "finance", Priority: 50, Enabled: true, Matchers: Matchers{Keywords: []string{"invoice"}}},
		{ID: "priority", Priority: 10, Enabled: true, Matchers: Matchers{Keywords: []string{"urgent"}}},
		{ID: "disabled", Priority: 1, Enabled: false, Matchers: Matchers{Keywords: []string{"invoice"}}},
	}

	tests := []struct {
		name    string
		email   *Email
		want    string
		matched bool
	}{
		{"highest priority wins", &Email{Subject: "URGENT invoice"}, "priority", true},
		{"disabled never evaluated", &Email{Subject: "invoice"}, "finance", true},
		{"catch-all fallback", &Email{Subject: "lunch?"}, "other", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := Resolve(buckets, tt.email)
			require.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, b.ID)
		})
	}

	t.Run("no match", func(t *testing.T) {
		b, ok := Resolve(buckets[1:], &Email{Subject: "lunch?"})
		assert.False(t, ok)
		assert.Nil(t, b)
	})
}
