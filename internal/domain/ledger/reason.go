package ledger

// Reason 台帳エントリの理由
type Reason string

const (
	ReasonTopUp            Reason = "top-up"
	ReasonGiftSent         Reason = "gift sent"
	ReasonGiftReceived     Reason = "gift received"
	ReasonWithdrawalHold   Reason = "withdrawal hold"
	ReasonWithdrawalRefund Reason = "withdrawal refund"
)

// String 文字列表現を返す
func (r Reason) String() string {
	return string(r)
}
