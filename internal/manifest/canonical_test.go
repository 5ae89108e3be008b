package manifest

import (
	"bytes"
	"testing"
)

func TestCanonicalBytesExactEncoding(t *testing.T) {
	files := map[string]string{
		"b/c.txt": "bb",
		"a.txt":   "aa",
	}
	got := CanonicalBytes("1.2.3", files)
	want := `{"files":{"a.txt":"aa","b/c.txt":"bb"},"version":"1.2.3"}`
	if string(got) != want {
		t.Fatalf("canonical bytes = %s, want %s", got, want)
	}
}

func TestCanonicalBytesIndependentOfInsertionOrder(t *testing.T) {
	forward := map[string]string{}
	backward := map[string]string{}
	paths := []string{"z.bin", "a/b.txt", "a/a.txt", "m.dat"}
	for _, p := range paths {
		forward[p] = "00"
	}
	for i := len(paths) - 1; i >= 0; i-- {
		backward[paths[i]] = "00"
	}
	if !bytes.Equal(CanonicalBytes("1.0", forward), CanonicalBytes("1.0", backward)) {
		t.Fatal("canonical bytes depend on map insertion order")
	}
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	files := map[string]string{"a.txt": "aa", "b.txt": "bb", "c.txt": "cc"}
	first := CanonicalBytes("2.0", files)
	for i := 0; i < 50; i++ {
		if !bytes.Equal(first, CanonicalBytes("2.0", files)) {
			t.Fatalf("canonical bytes changed on iteration %d", i)
		}
	}
}

func TestCanonicalBytesNonASCIILiteral(t *testing.T) {
	files := map[string]string{"ärger/straße.txt": "aa"}
	got := string(CanonicalBytes("1.0", files))
	want := `{"files":{"ärger/straße.txt":"aa"},"version":"1.0"}`
	if got != want {
		t.Fatalf("non-ASCII path escaped: %s", got)
	}
}

func TestCanonicalBytesControlCharEscapes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a\"b", `a\"b`},
		{"a\\b", `a\\b`},
		{"a\bb", `a\bb`},
		{"a\fb", `a\fb`},
		{"a\nb", `a\nb`},
		{"a\rb", `a\rb`},
		{"a\tb", `a\tb`},
		{"a\x01b", `a\u0001b`},
		{"a\x1fb", `a\u001fb`},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		appendCanonicalString(&buf, tc.in)
		want := `"` + tc.want + `"`
		if buf.String() != want {
			t.Errorf("escape %q = %s, want %s", tc.in, buf.String(), want)
		}
	}
}

func TestCanonicalBytesKeysSortedByCodePoint(t *testing.T) {
	// "Z" < "a" in code-point order; a byte-wise sort must agree.
	files := map[string]string{"a.txt": "11", "Z.txt": "22"}
	got := string(CanonicalBytes("1.0", files))
	want := `{"files":{"Z.txt":"22","a.txt":"11"},"version":"1.0"}`
	if got != want {
		t.Fatalf("key order wrong: %s", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	m := &Manifest{Version: "1.0", Files: map[string]string{"a.txt": "aa"}}
	fp := m.Fingerprint()
	if len(fp) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(fp))
	}
	if fp != m.Fingerprint() {
		t.Fatal("fingerprint not stable")
	}
	m2 := &Manifest{Version: "1.0", Files: map[string]string{"a.txt": "aa"}, Signature: "c2ln"}
	if m2.Fingerprint() != fp {
		t.Fatal("signature field must not affect the fingerprint")
	}
}
