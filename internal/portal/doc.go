// Package portal はカレッジ管理ポータルのWebサービスの内部実装を提供する。
//
// ログイン（セッショントークンのCookie発行）、ログアウト、
// ロール別ダッシュボードのランディングページを担当する。
// /dashboard 配下は middleware.Gate によって保護される。
package portal
