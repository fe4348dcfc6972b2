package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	tests := []struct {
		in       Params
		wantSkip int
		want     Params
	}{
		{Params{}, 0, Params{Page: 1, Limit: DefaultLimit}},
		{Params{Page: 3, Limit: 10}, 20, Params{Page: 3, Limit: 10}},
		{Params{Page: -1, Limit: 1000}, 0, Params{Page: 1, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize())
		assert.Equal(t, tt.wantSkip, tt.in.Skip())
	}
}

func TestFromQuery(t *testing.T) {
	p := FromQuery(url.Values{"page": {"2"}, "limit": {"abc"}})
	assert.Equal(t, Params{Page: 2, Limit: DefaultLimit}, p)
}

func TestNewPage(t *testing.T) {
	page := NewPage([]string{"a", "b"}, Params{Page: 1, Limit: 2}, 5)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(5), page.TotalCount)
	assert.True(t, page.HasNext())

	empty := NewPage[string](nil, Params{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.NotNil(t, empty.Items)
	assert.False(t, empty.HasNext())
}
