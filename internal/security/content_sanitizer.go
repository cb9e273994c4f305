// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はカタログサービスが返すテキストフィールド
// （あらすじ、タイトル、エピソード名等）をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// カタログのテキストはプレーンテキストとして扱う契約のため、
// bluemondayのStrictPolicyで全てのタグを除去する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストコンテンツのサニタイズ機能のインターフェースを定義する。
// カタログAPIレスポンスをドメインモデルへ射影する際に使用される。
type ContentSanitizerService interface {
	// Sanitize は外部由来のテキストから全てのHTMLタグを除去して返す。
	// カタログのあらすじはプレーンテキストの契約だが、
	// 上流のデータ品質に依存しないよう防御的にタグを剥がす。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去し、テキストノードのみを残す。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は外部由来のテキストから全てのHTMLタグを除去して返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
