package models

import (
	"gorm.io/gorm"
)

// User 表示系統中的用戶
type User struct {
	gorm.Model          // 內嵌 gorm.Model，提供 ID、CreatedAt、UpdatedAt 和 DeletedAt 字段
	Username   string   `gorm:"uniqueIndex;not null" json:"username"` // 用戶名，必須唯一
	Password   string   `gorm:"not null" json:"-"`                    // 密碼，json 序列化時會被忽略
	Role       UserRole `gorm:"not null" json:"role"`                 // 用戶角色
	Active     bool     `gorm:"default:true" json:"active"`           // 停用的帳號無法建立連線
}

// UserRole 定義用戶角色的類型
type UserRole string

const (
	RolePatient   UserRole = "patient"   // 病患
	RolePhysician UserRole = "physician" // 醫師
	RoleAgent     UserRole = "agent"     // 客服人員
)
