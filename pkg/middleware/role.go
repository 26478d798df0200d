package middleware

import (
	"errors"
	"fmt"
)

// Role はユーザーの権限区分を表す。
// 取り得る値は Roles() が返す4種類に限られる。
type Role string

const (
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
	// RoleTeacher は教員。
	RoleTeacher Role = "teacher"
	// RoleClerk は事務職員。
	RoleClerk Role = "clerk"
	// RoleStudent は学生。
	RoleStudent Role = "student"
)

// ErrUnknownRole は定義されていないロール文字列を受け取った場合のエラー。
var ErrUnknownRole = errors.New("未知のロールです")

// Roles は定義済みの全ロールを返す。
func Roles() []Role {
	return []Role{RoleAdmin, RoleTeacher, RoleClerk, RoleStudent}
}

// ParseRole は文字列をRoleに変換する。大文字小文字は区別する。
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid はロールが定義済みの値であるかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleClerk, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// DashboardPath はロールごとのダッシュボードのルートパスを返す。
func (r Role) DashboardPath() string {
	return dashboardPrefix + "/" + string(r)
}
