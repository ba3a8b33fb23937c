package security

import "testing"

func TestSanitizeName_PlainText_Unchanged(t *testing.T) {
	s := NewNameSanitizer()
	got := s.SanitizeName("Introduction to Software Engineering")
	if got != "Introduction to Software Engineering" {
		t.Errorf("SanitizeName = %q, want unchanged plain text", got)
	}
}

func TestSanitizeName_StripsScriptTags(t *testing.T) {
	s := NewNameSanitizer()
	got := s.SanitizeName(`<script>alert("xss")</script>Linear Algebra`)
	if got != "Linear Algebra" {
		t.Errorf("SanitizeName = %q, want %q", got, "Linear Algebra")
	}
}

func TestSanitizeName_StripsAllMarkup(t *testing.T) {
	s := NewNameSanitizer()
	got := s.SanitizeName("<b>Operating</b> <i>Systems</i>")
	if got != "Operating Systems" {
		t.Errorf("SanitizeName = %q, want %q", got, "Operating Systems")
	}
}

func TestSanitizeName_TrimsWhitespace(t *testing.T) {
	s := NewNameSanitizer()
	got := s.SanitizeName("  Intro to CS  ")
	if got != "Intro to CS" {
		t.Errorf("SanitizeName = %q, want %q", got, "Intro to CS")
	}
}

func TestSanitizeName_DecodesEntities(t *testing.T) {
	s := NewNameSanitizer()
	// 表示名中のアンパサンドがエスケープされたまま保存されないこと
	got := s.SanitizeName("Logic & Computation")
	if got != "Logic & Computation" {
		t.Errorf("SanitizeName = %q, want %q", got, "Logic & Computation")
	}
}

func TestSanitizeName_EmptyString_ReturnsEmpty(t *testing.T) {
	s := NewNameSanitizer()
	if got := s.SanitizeName(""); got != "" {
		t.Errorf("SanitizeName(\"\") = %q, want \"\"", got)
	}
}

func TestSanitizeName_Idempotent(t *testing.T) {
	s := NewNameSanitizer()
	input := `<img src=x onerror=alert(1)>Data Structures`
	once := s.SanitizeName(input)
	twice := s.SanitizeName(once)
	if once != twice {
		t.Errorf("sanitize not idempotent: %q != %q", once, twice)
	}
}
