package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain term unchanged", "追逐", "追逐"},
		{"strips 戏 suffix", "追逐戏", "追逐"},
		{"strips 场景 suffix", "战斗场景", "战斗"},
		{"strips 配音 suffix", "旁白配音", "旁白"},
		{"strips 建议 suffix", "混音建议", "混音"},
		{"strips 片段 suffix", "高潮片段", "高潮"},
		{"strips 时刻 suffix", "感人时刻", "感人"},
		{"trims whitespace", "  伏击  ", "伏击"},
		{"trims then strips", " 追逐戏 ", "追逐"},
		{"strips only one suffix", "追逐戏场景", "追逐戏"},
		{"suffix-only term kept", "戏", "戏"},
		{"suffix-only compound kept", "场景", "场景"},
		{"latin term unchanged", "ambush", "ambush"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.True(t, Valid("追逐"))
	assert.True(t, Valid(strings.Repeat("长", MaxTermLength)))
	assert.False(t, Valid(strings.Repeat("长", MaxTermLength+1)))
}
