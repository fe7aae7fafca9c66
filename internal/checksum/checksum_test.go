package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s", got)
	}
	if got := ETag([]byte("abc")); got != `"`+want+`"` {
		t.Errorf("ETag = %s", got)
	}
}

func TestMatches(t *testing.T) {
	tag := ETag([]byte("png"))
	cases := []struct {
		header string
		want   bool
	}{
		{tag, true},
		{`"other", ` + tag, true},
		{"W/" + tag, true},
		{"*", true},
		{`"other"`, false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Matches(tc.header, tag); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
