package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGiftHandler_SendGift(t *testing.T) {
	message := "Great stream!"

	tests := []struct {
		name            string
		senderID        string
		body            interface{}
		disableSender   bool
		expectedStatus  int
		expectedCode    string
		expectedSender  int64
		expectedReceive int64
	}{
		{
			name:            "正常系: ギフト送信成功",
			senderID:        "user123",
			body:            SendGiftRequest{ReceiverID: "user456", GiftKindID: "sunflower", Message: &message},
			expectedStatus:  http.StatusCreated,
			expectedSender:  500,
			expectedReceive: 500,
		},
		{
			name:           "異常系: 残高不足",
			senderID:       "user123",
			body:           SendGiftRequest{ReceiverID: "user456", GiftKindID: "bouquet"},
			expectedStatus: http.StatusConflict,
			expectedCode:   "insufficient_balance",
			expectedSender: 1000,
		},
		{
			name:           "異常系: 存在しないギフト種別",
			senderID:       "user123",
			body:           SendGiftRequest{ReceiverID: "user456", GiftKindID: "tulip"},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "gift_kind_not_found",
			expectedSender: 1000,
		},
		{
			name:           "異常系: 自分自身への送信",
			senderID:       "user123",
			body:           SendGiftRequest{ReceiverID: "user123", GiftKindID: "rose"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "same_account",
			expectedSender: 1000,
		},
		{
			name:           "異常系: ギフト送信が無効化されている",
			senderID:       "user123",
			body:           SendGiftRequest{ReceiverID: "user456", GiftKindID: "rose"},
			disableSender:  true,
			expectedStatus: http.StatusForbidden,
			expectedCode:   "gifting_disabled",
			expectedSender: 1000,
		},
		{
			name:           "異常系: gift_kind_idが空",
			senderID:       "user123",
			body:           SendGiftRequest{ReceiverID: "user456"},
			expectedStatus: http.StatusBadRequest,
			expectedSender: 1000,
		},
		{
			name:           "異常系: 不正なJSON",
			senderID:       "user123",
			body:           `{"receiver_id":`,
			expectedStatus: http.StatusBadRequest,
			expectedSender: 1000,
		},
		{
			name:           "異常系: 未認証",
			body:           SendGiftRequest{ReceiverID: "user456", GiftKindID: "rose"},
			expectedStatus: http.StatusUnauthorized,
			expectedSender: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.fund(t, "user123", 1000)
			if tt.disableSender {
				env.store.SetGiftingEnabled("user123", false)
			}

			rec := env.do(t, http.MethodPost, "/gifts", tt.senderID, tt.body)

			assertStatus(t, rec, tt.expectedStatus)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decode[ErrorResponse](t, rec).Error)
			}
			if tt.expectedStatus == http.StatusCreated {
				resp := decode[SendGiftResponse](t, rec)
				assert.NotEmpty(t, resp.GiftID)
				assert.Equal(t, int64(500), resp.Cost)
				assert.Equal(t, tt.expectedSender, resp.SenderBalance)
			}

			assert.Equal(t, tt.expectedSender, env.balance(t, "user123"))
			assert.Equal(t, tt.expectedReceive, env.balance(t, "user456"))
			assert.Equal(t, int64(1000), env.store.TotalBalance())
		})
	}
}
