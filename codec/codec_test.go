package codec

import (
	"strings"
	"testing"
)

type sample struct {
	Overview string   `json:"overview"`
	Concepts []string `json:"concepts"`
}

func TestByNameResolvesKnownCodecs(t *testing.T) {
	in := sample{Overview: "ratios", Concepts: []string{"unit rate", "tables"}}
	for _, name := range []string{"", "json", "cbor", "msgpack"} {
		c, err := ByName[sample](name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%q encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%q decode: %v", name, err)
		}
		if out.Overview != in.Overview || len(out.Concepts) != 2 || out.Concepts[1] != "tables" {
			t.Fatalf("%q mismatch: %+v", name, out)
		}
	}
	if _, err := ByName[sample]("protobuf"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestLimitRejectsOversizedPayload(t *testing.T) {
	c := Limit[sample]{Inner: JSON[sample]{}, MaxDecode: 16}
	b, err := c.Encode(sample{Overview: strings.Repeat("x", 64)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(b); err == nil {
		t.Fatalf("expected size error")
	}

	c.MaxDecode = 0
	if _, err := c.Decode(b); err != nil {
		t.Fatalf("limit disabled should decode: %v", err)
	}
}
