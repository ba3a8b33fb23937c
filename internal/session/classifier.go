// Package session はセッション評価を提供する。認証状態とプロファイル状態の
// 2軸からアクセス階層を導出し、必要に応じてプロファイルの初回作成を行う。
// 階層は永続化されず、評価のたびに導出される。
package session

import (
	"strings"

	"github.com/hitoshi/classtime/internal/model"
)

// AuthState は認証プロバイダー側の解決状態を表す。
// Loadingは解決中、Errは解決失敗、Principalは解決済みのアイデンティティ。
type AuthState struct {
	Principal *model.Principal
	Loading   bool
	Err       error
}

// ProfileState はユーザープロファイル側の解決状態を表す。
type ProfileState struct {
	Profile *model.User
	Loading bool
	Err     error
}

// Classifier は2軸の状態からアクセス階層を導出する純粋な分類器。
// 副作用を持たず、同一入力に対して常に同一の階層を返す。
type Classifier struct {
	primaryDomain   string
	secondaryDomain string
}

// NewClassifier はClassifierを生成する。
// primaryDomainは機関ドメイン（full_access）、secondaryDomainは
// 公開ドメイン（restricted_access）。
func NewClassifier(primaryDomain, secondaryDomain string) *Classifier {
	return &Classifier{
		primaryDomain:   primaryDomain,
		secondaryDomain: secondaryDomain,
	}
}

// Classify はアクセス階層を導出する。判定は以下の優先順で行う:
//  1. プロファイルが解決済み: メールドメインにより
//     full_access / restricted_access / rejected
//  2. どちらかの軸が解決中: pending
//  3. どちらかの軸がエラー: failed
//  4. 認証済みかつ主ドメイン適格だがプロファイル未作成: provisioning
//  5. それ以外: unauthenticated
func (c *Classifier) Classify(auth AuthState, profile ProfileState) model.AccessTier {
	if profile.Profile != nil && !profile.Loading && profile.Err == nil {
		switch {
		case c.hasDomain(profile.Profile.Email, c.primaryDomain):
			return model.TierFullAccess
		case c.hasDomain(profile.Profile.Email, c.secondaryDomain):
			return model.TierRestrictedAccess
		default:
			return model.TierRejected
		}
	}

	if auth.Loading || profile.Loading {
		return model.TierPending
	}

	if auth.Err != nil || profile.Err != nil {
		return model.TierFailed
	}

	if auth.Principal != nil && c.hasDomain(auth.Principal.Email, c.primaryDomain) {
		return model.TierProvisioning
	}

	return model.TierUnauthenticated
}

// hasDomain はメールアドレスが指定ドメインに属するかを返す。
// 大文字小文字は区別しない。ドメイン未設定時は常にfalse。
func (c *Classifier) hasDomain(email, domain string) bool {
	if email == "" || domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(domain))
}
