package util

import (
	"path/filepath"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"CL-1A2B-3C4D-5E6F-7A8B": "CL-1...7A8B",
		"abcdef":                 "ab...ef",
		"abc":                    "a...c",
		"ab":                     "ab",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("page=2&token=abcdefghijkl&voucher_code=CL-AAAA-BBBB")
	want := "page=2&token=abcd...ijkl&voucher_code=CL-A...BBBB"
	if got != want {
		t.Fatalf("unexpected masked query %q", got)
	}
	if MaskSensitiveQuery("page=1") != "page=1" {
		t.Fatalf("expected untouched query")
	}
}

func TestResolveWritable(t *testing.T) {
	t.Setenv("WRITABLE_PATH", "/var/lib/coinledger")
	if got := ResolveWritable("data/ledger.db"); got != filepath.Join("/var/lib/coinledger", "data/ledger.db") {
		t.Fatalf("unexpected resolved path %q", got)
	}
	if got := ResolveWritable("postgres://db/ledger"); got != "postgres://db/ledger" {
		t.Fatalf("expected dsn untouched, got %q", got)
	}
	if got := ResolveWritable("/abs/ledger.db"); got != "/abs/ledger.db" {
		t.Fatalf("expected absolute path untouched, got %q", got)
	}
}
