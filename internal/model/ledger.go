package model

import "time"

// User is a points holder and a node in the referral tree.
// ParentID is a plain reference; several users may share one upline.
type User struct {
	ID          string  `gorm:"primaryKey;size:64"`
	Role        string  `gorm:"size:32;not null;default:worker"`
	ParentID    *string `gorm:"size:64;index"`
	Points      int64   `gorm:"not null;default:0"`
	Balance     int64   `gorm:"not null;default:0"`
	TotalEarned int64   `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionKind labels why points moved.
type TransactionKind string

const (
	TxTaskReward           TransactionKind = "task_reward"
	TxCommissionTier1      TransactionKind = "commission_tier1"
	TxCommissionTier2      TransactionKind = "commission_tier2"
	TxDailyReward          TransactionKind = "daily_reward"
	TxDailyCommissionTier1 TransactionKind = "daily_commission_tier1"
	TxDailyCommissionTier2 TransactionKind = "daily_commission_tier2"
)

// TransactionRecord is an immutable ledger entry.
type TransactionRecord struct {
	ID          string          `gorm:"primaryKey;size:36"`
	UserID      string          `gorm:"size:64;not null;index"`
	TaskID      string          `gorm:"size:36;not null;index"`
	SourceUser  string          `gorm:"size:64"`
	Kind        TransactionKind `gorm:"size:32;not null"`
	Amount      int64           `gorm:"not null"`
	PointsAfter int64           `gorm:"not null"`
	CreatedAt   time.Time       `gorm:"not null;index"`
}

// TaskConfig holds pricing per content type. The review core only reads it.
type TaskConfig struct {
	ContentType         ContentType `gorm:"primaryKey;size:16"`
	Price               int64       `gorm:"not null"`
	CommissionTier1     int64       `gorm:"not null;default:0"`
	CommissionTier2     int64       `gorm:"not null;default:0"`
	DailyRewardPoints   int64       `gorm:"not null;default:0"`
	ContinuousCheckDays int         `gorm:"not null;default:0"`
	UpdatedAt           time.Time
}
