package model

// Class はclassesコレクションのクラスドキュメントを表す。
// ドキュメントIDは正規化済みの "DEPT NUM" 形式（例: "CSCI 0320"）。
// 統計フィールドは既存データとのワイヤ互換のため文字列で保持する
// （初期値は "0"）。統計の更新はワーカーが担い、クラスレジストリは行わない。
type Class struct {
	ID            string
	Department    string
	CourseNumber  string
	Name          string
	DailyAverage  string
	WeeklyAverage string
	TotalTime     string
}

// DepartmentMeta はdepartmentsコレクションの_metaドキュメントを表す。
// AllCodesは学科コードの統制語彙。プロセス生存期間中は不変として扱う。
type DepartmentMeta struct {
	AllCodes []string
}
