package model

// AccessTier はセッション評価の結果として導出されるアクセス階層を表す。
// 閉じた列挙であり、永続化されない。評価のたびに導出される。
type AccessTier string

const (
	// TierFullAccess はプロファイルのメールが主ドメインで終わる場合。
	TierFullAccess AccessTier = "full_access"
	// TierRestrictedAccess はプロファイルのメールが副（公開）ドメインで終わる場合。
	TierRestrictedAccess AccessTier = "restricted_access"
	// TierRejected はプロファイルは存在するがメールがどちらのドメインにも
	// 一致しない場合。
	TierRejected AccessTier = "rejected"
	// TierPending は認証またはプロファイルの解決が進行中の場合。
	TierPending AccessTier = "pending"
	// TierFailed は認証またはプロファイル取得がエラーになった場合。
	TierFailed AccessTier = "failed"
	// TierProvisioning は認証済みかつ主ドメイン適格だが、プロファイルが
	// まだ作成されていない場合。
	TierProvisioning AccessTier = "provisioning"
	// TierUnauthenticated はPrincipalが存在しない場合。
	TierUnauthenticated AccessTier = "unauthenticated"
)

// Authorized は認可済みビューを解放する階層かどうかを返す。
// FullAccessとRestrictedAccessの区別はプレゼンテーション層の関心事であり、
// 本サービスではどちらも同じAPI群を解放する。
func (t AccessTier) Authorized() bool {
	return t == TierFullAccess || t == TierRestrictedAccess
}

// Interim は読み込み中表示に対応する一時的な階層かどうかを返す。
func (t AccessTier) Interim() bool {
	return t == TierPending || t == TierProvisioning
}
