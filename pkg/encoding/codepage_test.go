package encoding

import (
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
)

func TestForCodepage(t *testing.T) {
	tests := []struct {
		name  string
		known bool
	}{
		{"ANSI_1252", true},
		{"ansi_1251", true},
		{" ANSI_949 ", true},
		{"ANSI_9999", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ForCodepage(tt.name) != nil; got != tt.known {
			t.Errorf("ForCodepage(%q) known = %v, want %v", tt.name, got, tt.known)
		}
	}
}

func TestDecode(t *testing.T) {
	latin, _ := charmap.Windows1252.NewEncoder().String("Küche")
	hangul, _ := korean.EUCKR.NewEncoder().String("도면")

	tests := []struct {
		name string
		cp   string
		in   string
		want string
	}{
		{"windows-1252", "ANSI_1252", latin, "Küche"},
		{"euc-kr", "ANSI_949", hangul, "도면"},
		{"ascii untouched", "ANSI_1252", "WALLS", "WALLS"},
		{"unknown codepage", "ANSI_9999", latin, latin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(ForCodepage(tt.cp), tt.in); got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnescapeUnicode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`K\U+00FCche`, "Küche"},
		{`\U+00D8 50`, "Ø 50"},
		{`plain`, "plain"},
		{`bad \U+ZZZZ`, `bad \U+ZZZZ`},
		{`short \U+00`, `short \U+00`},
	}
	for _, tt := range tests {
		if got := UnescapeUnicode(tt.in); got != tt.want {
			t.Errorf("UnescapeUnicode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
