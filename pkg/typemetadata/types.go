// Package typemetadata implements SD-JWT VC type metadata (§3.2, §4.3): the unchecked
// document an issuer publishes, the consistency checks that turn it into a usable
// TypeMetadata, its integrity-chained extension graph, and Draft 2020-12 JSON Schema
// validation of the attribute tree it describes.
package typemetadata

import (
	"github.com/eudiwallet/core/pkg/attributes"
)

// SdPolicy indicates whether a claim is selectively disclosable (§3.2).
type SdPolicy int

const (
	// SdAllowed is the default: the issuer MAY make the claim selectively disclosable.
	SdAllowed SdPolicy = iota
	// SdAlways: the issuer MUST make the claim selectively disclosable.
	SdAlways
	// SdNever: the issuer MUST NOT make the claim selectively disclosable; it's embedded
	// directly in the JWT body.
	SdNever
)

func (p SdPolicy) String() string {
	switch p {
	case SdAlways:
		return "always"
	case SdNever:
		return "never"
	default:
		return "allowed"
	}
}

// DisplayMetadata is one language's display information for the attestation type as a whole.
type DisplayMetadata struct {
	Lang        string
	Name        string
	Description string
	Summary     string
}

// ClaimDisplayMetadata is one language's display information for a single claim.
type ClaimDisplayMetadata struct {
	Lang        string
	Label       string
	Description string
}

// ClaimMetadata describes one claim: the path it addresses, its per-language display
// entries, its selective-disclosure policy, and an optional svg_id for template reference.
type ClaimMetadata struct {
	Path    attributes.ClaimPaths
	Display []ClaimDisplayMetadata
	SD      SdPolicy
	SvgID   string
}

// PathString renders the claim path the way the original's Display impl does:
// "[seg1][seg2]...".
func (c ClaimMetadata) PathString() string {
	s := ""
	for _, seg := range c.Path {
		switch seg.Kind {
		case attributes.ClaimPathSelectByKey:
			s += "[" + seg.Key + "]"
		case attributes.ClaimPathSelectAll:
			s += "[*]"
		case attributes.ClaimPathSelectByIndex:
			s += "[#]"
		}
	}
	return s
}

func (c ClaimMetadata) findDuplicateLanguages() []string {
	seen := make(map[string]int, len(c.Display))
	var dups []string
	for _, d := range c.Display {
		seen[d.Lang]++
		if seen[d.Lang] == 2 {
			dups = append(dups, d.Lang)
		}
	}
	return dups
}

// MetadataExtends declares that this type extends a parent vct, with a mandatory integrity
// digest on the extension reference (§3.2: "mandatory integrity digest").
type MetadataExtends struct {
	Extends          string
	ExtendsIntegrity string
}

// SchemaSource is either an embedded JSON Schema document or a reference to a remote one.
// Exactly one of Schema / SchemaURI is set, discriminated by IsRemote.
type SchemaSource struct {
	IsRemote           bool
	Schema             map[string]interface{}
	SchemaURI          string
	SchemaURIIntegrity string
}

// UncheckedTypeMetadata is the raw, as-published type metadata document (§3.2), before
// consistency validation.
type UncheckedTypeMetadata struct {
	VCT         string
	Name        string
	Description string
	Extends     *MetadataExtends
	Display     []DisplayMetadata
	Claims      []ClaimMetadata
	Schema      SchemaSource
}
