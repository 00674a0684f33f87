package util

import "testing"

func TestNormalizeLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Thats All for Today!", "thatsallfortoday"},
		{"thatsallfortoday", "thatsallfortoday"},
		{"What can you do?", "whatcanyoudo"},
		{"Não gostei", "naogostei"},
		{"  I loved it!  ", "ilovedit"},
		{"Menu", "menu"},
		{"", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := NormalizeLabel(c.in); got != c.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLabelsMatch(t *testing.T) {
	if !LabelsMatch("Thats All for Today!", "thatsallfortoday") {
		t.Error("expected labels to match modulo case and punctuation")
	}
	if LabelsMatch("Menu", "Doubts") {
		t.Error("distinct labels should not match")
	}
}

func TestRandomItem(t *testing.T) {
	items := []string{"a", "b", "c"}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v := RandomItem(items)
		if v != "a" && v != "b" && v != "c" {
			t.Fatalf("RandomItem returned element outside slice: %q", v)
		}
		seen[v] = true
	}
	if got := RandomItem([]string(nil)); got != "" {
		t.Errorf("RandomItem(nil) = %q, want zero value", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("DIALOGPIPE_TEST_BOOL", "yes")
	if !ParseBoolEnv("DIALOGPIPE_TEST_BOOL", false) {
		t.Error("expected yes to parse as true")
	}
	t.Setenv("DIALOGPIPE_TEST_BOOL", "garbage")
	if ParseBoolEnv("DIALOGPIPE_TEST_BOOL", false) {
		t.Error("invalid value should fall back to default")
	}
	if ParseBoolEnv("DIALOGPIPE_TEST_UNSET", true) != true {
		t.Error("unset variable should return default")
	}
}

func TestParseFloatEnv(t *testing.T) {
	t.Setenv("DIALOGPIPE_TEST_FLOAT", "0.75")
	if got := ParseFloatEnv("DIALOGPIPE_TEST_FLOAT", 0.5); got != 0.75 {
		t.Errorf("ParseFloatEnv = %v, want 0.75", got)
	}
	t.Setenv("DIALOGPIPE_TEST_FLOAT", "nope")
	if got := ParseFloatEnv("DIALOGPIPE_TEST_FLOAT", 0.5); got != 0.5 {
		t.Errorf("invalid value should fall back to default, got %v", got)
	}
}
