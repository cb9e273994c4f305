package security

import (
	"strings"
	"testing"
)

// TestSanitize_PlainText はプレーンテキストがそのまま通過することを検証する。
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "冬が来る。スターク家の物語。"
	got := sanitizer.Sanitize(input)
	if got != input {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", input, got)
	}
}

// TestSanitize_StripsAllTags は全てのHTMLタグが除去されることを検証する。
func TestSanitize_StripsAllTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
		wantKeep   []string
	}{
		{
			name:       "scriptタグが除去される",
			input:      `あらすじ<script>alert('xss')</script>本文`,
			wantAbsent: []string{"<script", "alert"},
			wantKeep:   []string{"あらすじ", "本文"},
		},
		{
			name:       "装飾タグもテキストだけ残る",
			input:      `<p>第3話は<strong>必見</strong>です</p>`,
			wantAbsent: []string{"<p>", "<strong>"},
			wantKeep:   []string{"第3話は", "必見", "です"},
		},
		{
			name:       "imgタグが除去される",
			input:      `ポスター<img src="https://example.com/p.jpg" onerror="alert(1)">画像`,
			wantAbsent: []string{"<img", "onerror"},
			wantKeep:   []string{"ポスター", "画像"},
		},
		{
			name:       "iframeタグが除去される",
			input:      `本編<iframe src="https://evil.com"></iframe>続き`,
			wantAbsent: []string{"<iframe", "evil.com"},
			wantKeep:   []string{"本編", "続き"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
			for _, keep := range tt.wantKeep {
				if !strings.Contains(got, keep) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, keep)
				}
			}
		})
	}
}

// TestSanitize_EmptyInput は空文字列の入力を安全に処理できることを検証する。
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize("")
	if got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力（冪等性）を検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>あらすじ<strong>重要</strong></p><script>x()</script>本文`

	result1 := sanitizer.Sanitize(input)
	result2 := sanitizer.Sanitize(input)
	result3 := sanitizer.Sanitize(result1) // 二重サニタイズ

	if result1 != result2 {
		t.Errorf("冪等性違反: 1回目=%q, 2回目=%q", result1, result2)
	}
	if result1 != result3 {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 二重=%q", result1, result3)
	}
}

// TestContentSanitizerInterface はContentSanitizerServiceインターフェースの適合を検証する。
func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
