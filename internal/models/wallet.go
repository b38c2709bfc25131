package models

import (
	"gorm.io/gorm"
)

// WalletTransaction 表示一筆錢包異動，金額有正負號，
// 諮詢結算時會為病患與醫師各寫入一筆
type WalletTransaction struct {
	gorm.Model
	UserID      uint            `json:"user_id"`
	SessionID   uint            `json:"session_id"`
	AmountCents int64           `json:"amount_cents"`
	Kind        TransactionKind `gorm:"type:varchar(30)" json:"kind"`
	Reference   string          `gorm:"type:varchar(100)" json:"reference"`
}

// TransactionKind 定義錢包異動的類型
type TransactionKind string

const (
	TransactionConsultationCharge TransactionKind = "consultation_charge" // 病患扣款
	TransactionConsultationPayout TransactionKind = "consultation_payout" // 醫師入帳
)
