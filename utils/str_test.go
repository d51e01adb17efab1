package utils

import "testing"

func TestParseFloats(t *testing.T) {
	vs, err := ParseFloats(" 1.5|2| |3e2|", "|")
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 3 || vs[0] != 1.5 || vs[1] != 2 || vs[2] != 300 {
		t.Fatalf("unexpected values %v", vs)
	}
	if _, err = ParseFloats("1|__import__('os')", "|"); err == nil {
		t.Fatal("expected error for non-numeric content")
	}
}

func TestStripTrailingDigits(t *testing.T) {
	cases := map[string]string{
		"sigma0":   "sigma",
		"sigma012": "sigma0",
		"lat":      "lat",
		"42":       "",
	}
	for in, want := range cases {
		if got := StripTrailingDigits(in, 2); got != want {
			t.Errorf("StripTrailingDigits(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMetadataEscapes(t *testing.T) {
	wkt := `GEOGCS["WGS 84",DATUM["WGS_1984"]]`
	esc := EscapeMetadata(wkt)
	if esc != `GEOGCS[&WGS 84&|DATUM[&WGS_1984&]]` {
		t.Fatalf("unexpected escape %s", esc)
	}
	if UnescapeMetadata(esc) != wkt {
		t.Fatal("round trip failed")
	}
}

func TestDecodeMetadata(t *testing.T) {
	raw := string([]byte{'c', 'a', 'f', 0xe9})
	got, err := DecodeMetadata(raw, ENC_LATIN1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "café" {
		t.Fatalf("got %q", got)
	}
	if got, _ = DecodeMetadata("plain", ENC_GBK); got != "plain" {
		t.Fatalf("valid utf8 must pass through, got %q", got)
	}
}
