package config

import (
	"reflect"
	"testing"
)

func TestSplitQuotedFields(t *testing.T) {
	tests := []struct {
		in    string
		quote rune
		want  []string
	}{
		{`go continue`, '"', []string{"go", "continue"}},
		{`   go    c  `, '"', []string{"go", "c"}},
		{`prompt "(dbg) "`, '"', []string{"prompt", "(dbg) "}},
		{`prompt ""`, '"', []string{"prompt", ""}},
		{`"" prompt`, '"', []string{"", "prompt"}},
		{`prompt "say \"hi\" "`, '"', []string{"prompt", `say "hi" `}},
		{`disable-commands heap stack`, '"', []string{"disable-commands", "heap", "stack"}},
		{`ab"c d"e`, '"', []string{"abc de"}},
		{`'where am i' w`, '\'', []string{"where am i", "w"}},
		{`"where am i" w`, '\'', []string{`"where`, "am", `i"`, "w"}},
		{``, '"', []string{}},
	}
	for _, tt := range tests {
		got := SplitQuotedFields(tt.in, tt.quote)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitQuotedFields(%q, %q) = %#v, want %#v", tt.in, tt.quote, got, tt.want)
		}
	}
}

func TestConfigureListByName(t *testing.T) {
	conf := Default()
	conf.DisableCommands = []string{"heap", "stack"}

	tests := []struct {
		name string
		want string
	}{
		{"prompt", "prompt\t(debug) \n"},
		{"max-line-length", "max-line-length\t32\n"},
		{"disable-commands", "disable-commands\t[heap stack]\n"},
		{"echo", "echo\ttrue\n"},
		{"", ""},
		{"nonexistent", ""},
	}
	for _, tt := range tests {
		if got := ConfigureListByName(conf, tt.name, "yaml"); got != tt.want {
			t.Errorf("ConfigureListByName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
