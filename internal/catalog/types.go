// Package catalog reads and writes the AppStream component catalog that
// describes what a repository offers.
package catalog

import "encoding/xml"

// BundleFlatpak is the bundle type of a deployable application.
const BundleFlatpak = "flatpak"

// Catalog is the <components> document.
type Catalog struct {
	XMLName    xml.Name    `xml:"components"`
	Version    string      `xml:"version,attr,omitempty"`
	Origin     string      `xml:"origin,attr,omitempty"`
	Arch       string      `xml:"architecture,attr,omitempty"`
	Components []Component `xml:"component"`
}

// Component is one entry of the catalog. Child elements the mirror does not
// interpret are kept in Extra so they survive a decode/encode cycle.
type Component struct {
	Type      string       `xml:"type,attr,omitempty"`
	ID        string       `xml:"id"`
	Names     []Text       `xml:"name"`
	Summaries []Text       `xml:"summary"`
	Bundles   []Bundle     `xml:"bundle"`
	Extra     []RawElement `xml:",any"`
}

// Text is a possibly translated string.
type Text struct {
	Lang  string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Bundle describes how a component is shipped. For flatpak bundles the
// element text is the full app ref and Runtime/SDK are id/arch/branch.
type Bundle struct {
	Kind    string `xml:"type,attr"`
	Runtime string `xml:"runtime,attr,omitempty"`
	SDK     string `xml:"sdk,attr,omitempty"`
	Ref     string `xml:",chardata"`
}

// RawElement is an uninterpreted child element.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// Name returns the untranslated name, or the first one present.
func (c Component) Name() string {
	return untranslated(c.Names)
}

// Summary returns the untranslated summary, or the first one present.
func (c Component) Summary() string {
	return untranslated(c.Summaries)
}

// Bundle returns the component's flatpak bundle, falling back to the first
// bundle of any kind. ok is false when the component has no bundle.
func (c Component) Bundle() (b Bundle, ok bool) {
	for _, b := range c.Bundles {
		if b.Kind == BundleFlatpak {
			return b, true
		}
	}
	if len(c.Bundles) > 0 {
		return c.Bundles[0], true
	}
	return Bundle{}, false
}

func untranslated(texts []Text) string {
	for _, t := range texts {
		if t.Lang == "" {
			return t.Value
		}
	}
	if len(texts) > 0 {
		return texts[0].Value
	}
	return ""
}
