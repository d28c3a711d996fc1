// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TitleSanitizer はユーザー入力のイベント名をサニタイズし、
// カレンダーUIや上流APIにHTMLが混入することを防ぐ。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TitleSanitizer はイベント名のサニタイズ機能のインターフェースを定義する。
type TitleSanitizer interface {
	// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// 前後の空白もあわせて除去する。同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// titleSanitizer はTitleSanitizerの実装。
// イベント名はプレーンテキストのため、許可タグなしのStrictPolicyを使用する。
type titleSanitizer struct {
	policy *bluemonday.Policy
}

// NewTitleSanitizer はTitleSanitizerの新しいインスタンスを生成する。
func NewTitleSanitizer() *titleSanitizer {
	return &titleSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
func (s *titleSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
