package typemetadata

// TypeMetadata is an UncheckedTypeMetadata that has passed check_metadata_consistency
// (§3.2). Construct it with New; there is no way to obtain one without passing the checks.
type TypeMetadata struct {
	unchecked UncheckedTypeMetadata
}

// New validates unchecked against every consistency rule and, on success, returns the
// checked TypeMetadata wrapping it.
func New(unchecked UncheckedTypeMetadata) (*TypeMetadata, error) {
	if err := checkMetadataConsistency(&unchecked); err != nil {
		return nil, err
	}
	return &TypeMetadata{unchecked: unchecked}, nil
}

// Unchecked returns the wrapped document.
func (t *TypeMetadata) Unchecked() UncheckedTypeMetadata { return t.unchecked }

// ChainLink is one entry of an integrity-linked metadata chain (§3.2): each entry after the
// first carries the digest of its parent. The chain's first entry's digest is the de facto
// signature the issuer commits to.
type ChainLink struct {
	Metadata        TypeMetadata
	IntegrityDigest string
	ParentDigest    string
}

// NormalizedTypeMetadata materializes the extension chain into a single value: the leaf
// (most-derived) metadata plus the ordered chain of integrity digests from leaf to root
// (§9 "Metadata extension chain": "materialize the extension resolution once at construction
// into a normalized metadata value + an ordered chain of integrity digests").
type NormalizedTypeMetadata struct {
	leaf       TypeMetadata
	chain      []ChainLink
	claimPaths [][]string
}

// Normalize resolves chain (ordered leaf-to-root, i.e. chain[0] is the leaf's own metadata
// document and chain[len-1] is the root ancestor with no further `extends`) into a
// NormalizedTypeMetadata. It does not itself fetch remote extends documents; the caller
// resolves the chain and passes it in already ordered.
func Normalize(chain []ChainLink) (*NormalizedTypeMetadata, error) {
	if len(chain) == 0 {
		return nil, errEmptyChain
	}

	leaf := chain[0].Metadata

	seen := make(map[string]struct{})
	var paths [][]string
	for _, link := range chain {
		for _, claim := range link.Metadata.unchecked.Claims {
			keys := make([]string, 0, len(claim.Path))
			for _, seg := range claim.Path {
				if k, ok := seg.TryKey(); ok {
					keys = append(keys, k)
				}
			}
			flat := ""
			for i, k := range keys {
				if i > 0 {
					flat += "."
				}
				flat += k
			}
			if _, dup := seen[flat]; dup {
				continue
			}
			seen[flat] = struct{}{}
			paths = append(paths, keys)
		}
	}

	return &NormalizedTypeMetadata{leaf: leaf, chain: chain, claimPaths: paths}, nil
}

var errEmptyChain = claimChainError("metadata chain must contain at least one document")

type claimChainError string

func (e claimChainError) Error() string { return string(e) }

// VCT returns the leaf metadata's attestation type identifier, satisfying the narrow
// metadataView interface pkg/attributes operates against.
func (n *NormalizedTypeMetadata) VCT() string { return n.leaf.unchecked.VCT }

// ClaimKeyPaths returns every declared claim's dotted key path, across the whole extension
// chain, de-duplicated and in chain order (leaf claims first). Declaration order within the
// leaf metadata determines the order attribute insertion follows in FromMdocAttributes.
func (n *NormalizedTypeMetadata) ClaimKeyPaths() [][]string {
	out := make([][]string, len(n.claimPaths))
	copy(out, n.claimPaths)
	return out
}

// IntegrityDigest returns the first (leaf) integrity digest of the chain — the value the
// issuer commits to in the attestation (e.g. the SD-JWT `vct#integrity` claim).
func (n *NormalizedTypeMetadata) IntegrityDigest() string {
	if len(n.chain) == 0 {
		return ""
	}
	return n.chain[0].IntegrityDigest
}

// Leaf returns the most-derived TypeMetadata document in the chain.
func (n *NormalizedTypeMetadata) Leaf() TypeMetadata { return n.leaf }
