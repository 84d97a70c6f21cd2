package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Version(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{
			name: "nil context",
			ctx:  nil,
			want: UnknownValue,
		},
		{
			name: "empty version",
			ctx:  NewContext("", "2026-01-01"),
			want: UnknownValue,
		},
		{
			name: "valid version",
			ctx:  NewContext("1.4.0", "2026-01-01"),
			want: "1.4.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContext_Strings(t *testing.T) {
	c := NewContext("1.4.0", "")
	assert.Equal(t, "reviewcore@1.4.0", c.Release())
	assert.Equal(t, "reviewcore 1.4.0 (built unknown)", c.String())
}
