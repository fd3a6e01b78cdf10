// Package migrations スキーマ定義（golang-migrate形式）を埋め込む
package migrations

import "embed"

// FS マイグレーションファイル
//
//go:embed *.sql
var FS embed.FS
