package strx

import "testing"

func TestStripSchemeAndSplit(t *testing.T) {
	cases := []struct {
		in, host, port string
	}{
		{"http://10.0.0.5:8080/api", "10.0.0.5", "8080"},
		{"shelf.local:9000", "shelf.local", "9000"},
		{"https://bins.example.org", "bins.example.org", ""},
	}
	for _, c := range cases {
		h, p := SplitHostPort(StripScheme(c.in))
		if h != c.host || p != c.port {
			t.Fatalf("%q -> (%q,%q), want (%q,%q)", c.in, h, p, c.host, c.port)
		}
	}
	if Coalesce("", "x") != "x" || Coalesce("y", "x") != "y" {
		t.Fatal("coalesce")
	}
}
