// Package model はドメインモデルを定義する。
package model

import "time"

// Principal は認証プロバイダーが報告した認証済みアイデンティティを表す。
// IDはGoogleのsubクレーム。Emailはプロバイダー側で非公開の場合があるため
// 空文字列になりうる。本サービスはPrincipalを永続化しない（読み取り専用）。
type Principal struct {
	ID    string
	Email string
	Name  string
}

// User はusersコレクションのユーザープロファイルドキュメントを表す。
// principal IDをキーとして、初回サインイン時に1回だけ作成される。
type User struct {
	ID        string // principal ID（ドキュメントID）
	Email     string
	Name      string
	TotalTime string // 表示互換のため文字列で保持する
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// sessionsコレクションのドキュメントとして永続化される。
type Session struct {
	ID          string
	PrincipalID string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
