package models

import (
	"gorm.io/gorm"
)

// Notification 表示推送給單一用戶的通知，只有已讀旗標會被更新
type Notification struct {
	gorm.Model
	UserID uint   `json:"user_id"`
	Type   string `gorm:"type:varchar(50)" json:"type"`
	Title  string `gorm:"type:varchar(200)" json:"title"`
	Body   string `gorm:"type:text" json:"body"`
	Read   bool   `gorm:"default:false" json:"read"`
}
