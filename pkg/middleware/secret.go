package middleware

import (
	"errors"
	"log"
)

// DefaultInsecureSecret は署名用シークレットが未設定の場合のフォールバック値。
//
// この値はリポジトリに公開されており、誰でも有効なトークンを偽造できる。
// 本番環境では絶対に使用しないこと。ローカル開発とテストでのみ
// ALLOW_INSECURE_SECRET=true を指定して有効化する。
const DefaultInsecureSecret = "campus-dev-insecure-secret"

// ErrSecretNotConfigured は署名用シークレットが未設定でフォールバックも無効な場合のエラー。
var ErrSecretNotConfigured = errors.New("JWT署名用シークレットが設定されていません")

// ResolveSecret は設定値から署名用シークレットを決定する。
// valueが空でallowInsecureDefaultがtrueの場合のみDefaultInsecureSecretを返す。
func ResolveSecret(value string, allowInsecureDefault bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if !allowInsecureDefault {
		return "", ErrSecretNotConfigured
	}
	log.Printf("[Gate] 警告: JWT_SECRETが未設定のため開発用シークレットを使用します。本番環境では使用しないでください")
	return DefaultInsecureSecret, nil
}
