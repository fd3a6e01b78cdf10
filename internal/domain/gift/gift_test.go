package gift

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransfer(t *testing.T) {
	msg := "thanks!"
	longMsg := strings.Repeat("花", MaxMessageLength+1)
	maxMsg := strings.Repeat("花", MaxMessageLength)
	content := "quote-1"

	tests := []struct {
		name      string
		cost      int64
		content   *string
		message   *string
		wantError error
	}{
		{name: "正常系: メッセージ付き", cost: 100, content: &content, message: &msg},
		{name: "正常系: 任意項目なし", cost: 1},
		{name: "正常系: 最大文字数ちょうど", cost: 100, message: &maxMsg},
		{name: "異常系: メッセージが長すぎる", cost: 100, message: &longMsg, wantError: ErrMessageTooLong},
		{name: "異常系: コストゼロ", cost: 0, wantError: ErrInvalidCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTransfer("gift-1", "alice", "bob", "rose", tt.cost, tt.content, tt.message)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", got.SenderID())
			assert.Equal(t, "bob", got.ReceiverID())
			assert.Equal(t, tt.cost, got.Cost())
			assert.Equal(t, tt.message, got.Message())
			assert.Equal(t, tt.content, got.RelatedContentID())
		})
	}
}
