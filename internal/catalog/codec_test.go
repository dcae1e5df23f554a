package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<components version="0.8" origin="flathub">
  <component type="desktop-application">
    <id>org.gnome.Maps</id>
    <name>Maps</name>
    <name xml:lang="de">Karten</name>
    <summary>Find places around the world</summary>
    <project_license>GPL-2.0+</project_license>
    <bundle type="flatpak" runtime="org.gnome.Platform/x86_64/45" sdk="org.gnome.Sdk/x86_64/45">app/org.gnome.Maps/x86_64/stable</bundle>
    <categories><category>Utility</category></categories>
  </component>
  <component type="runtime">
    <id>org.gnome.Platform</id>
    <name>GNOME Platform</name>
    <summary>Shared libraries</summary>
  </component>
</components>
`

func TestDecodeSample(t *testing.T) {
	cat, err := Decode([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cat.Origin != "flathub" {
		t.Errorf("origin = %q", cat.Origin)
	}
	if len(cat.Components) != 2 {
		t.Fatalf("components = %d, want 2", len(cat.Components))
	}

	maps := cat.Components[0]
	if maps.ID != "org.gnome.Maps" || maps.Type != "desktop-application" {
		t.Errorf("component = %+v", maps)
	}
	if maps.Name() != "Maps" {
		t.Errorf("Name() = %q", maps.Name())
	}
	if maps.Summary() != "Find places around the world" {
		t.Errorf("Summary() = %q", maps.Summary())
	}
	if len(maps.Names) != 2 || maps.Names[1].Lang != "de" {
		t.Errorf("translated names = %+v", maps.Names)
	}

	b, ok := maps.Bundle()
	if !ok {
		t.Fatal("expected bundle")
	}
	want := Bundle{Kind: "flatpak", Runtime: "org.gnome.Platform/x86_64/45", SDK: "org.gnome.Sdk/x86_64/45", Ref: "app/org.gnome.Maps/x86_64/stable"}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}

	if len(maps.Extra) != 2 {
		t.Errorf("extra elements = %d, want 2", len(maps.Extra))
	}

	if _, ok := cat.Components[1].Bundle(); ok {
		t.Error("runtime component should have no bundle")
	}
}

func TestEncodePreservesUnknownElements(t *testing.T) {
	cat, err := Decode([]byte(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}

	out, err := Encode("mirror", "x86_64", cat.Components[:1])
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		`origin="mirror"`,
		`architecture="x86_64"`,
		`<project_license>GPL-2.0+</project_license>`,
		`<category>Utility</category>`,
		`xml:lang="de"`,
		`>app/org.gnome.Maps/x86_64/stable</bundle>`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("encoded catalog missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "org.gnome.Platform</id>") {
		t.Error("encoded catalog should only contain the given components")
	}

	again, err := Decode(out)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if len(again.Components) != 1 || again.Components[0].Name() != "Maps" {
		t.Errorf("re-decoded = %+v", again.Components)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := Component{ID: "b.App", Names: []Text{{Value: "B"}}}
	b := Component{ID: "a.App", Names: []Text{{Value: "A"}}}

	first, err := Encode("o", "x86_64", []Component{a, b})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Encode("o", "x86_64", []Component{b, a})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("encoding should not depend on input order")
	}
	if strings.Index(string(first), "a.App") > strings.Index(string(first), "b.App") {
		t.Error("components should be sorted by id")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	raw := []byte(sampleCatalog)

	gz, err := Compress(raw)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !IsCompressed(gz) {
		t.Fatal("compressed output should carry gzip magic")
	}

	again, err := Compress(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gz, again) {
		t.Error("compression should be deterministic")
	}

	back, err := Decompress(gz)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(back, raw) {
		t.Error("round trip mismatch")
	}

	cat, err := Decode(gz)
	if err != nil {
		t.Fatalf("Decode(gzip): %v", err)
	}
	if len(cat.Components) != 2 {
		t.Errorf("components = %d", len(cat.Components))
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte("<components><component>")); err == nil {
		t.Error("expected error for truncated xml")
	}
	if _, err := Decode([]byte{0x1f, 0x8b, 0x00}); err == nil {
		t.Error("expected error for corrupt gzip")
	}
}
