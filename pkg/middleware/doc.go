// Package middleware はGinベースのポータルで使用する認証・認可と共通ミドルウェアを提供する。
//
// Cookieに格納されたセッショントークン（HS256署名のJWT）の発行と検証、
// ロール別ダッシュボードへのアクセスを判定するGate、
// パニックリカバリ、CORS設定を含む。
package middleware
