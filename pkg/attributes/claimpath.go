package attributes

// ClaimPathKind discriminates the ClaimPath variants of §3.1. Only SelectByKey is legal for
// validation and insertion operations in this core; the other two variants exist so that
// upstream DCQL claim paths can be parsed and rejected with a typed error rather than
// silently truncated.
type ClaimPathKind int

const (
	ClaimPathSelectByKey ClaimPathKind = iota
	ClaimPathSelectAll
	ClaimPathSelectByIndex
)

// ClaimPath is one segment of a claim path.
type ClaimPath struct {
	Kind  ClaimPathKind
	Key   string
	Index int
}

// SelectByKey constructs a SelectByKey segment.
func SelectByKey(key string) ClaimPath {
	return ClaimPath{Kind: ClaimPathSelectByKey, Key: key}
}

// SelectAll constructs a SelectAll segment.
func SelectAll() ClaimPath { return ClaimPath{Kind: ClaimPathSelectAll} }

// SelectByIndex constructs a SelectByIndex segment.
func SelectByIndex(i int) ClaimPath { return ClaimPath{Kind: ClaimPathSelectByIndex, Index: i} }

// TryKey returns the segment's key if it is a SelectByKey, and ok=false otherwise.
func (p ClaimPath) TryKey() (string, bool) {
	if p.Kind != ClaimPathSelectByKey {
		return "", false
	}
	return p.Key, true
}

// ClaimPaths is a non-empty ordered sequence of ClaimPath segments.
type ClaimPaths []ClaimPath

// String returns the dotted representation; SelectAll renders as "*" and SelectByIndex as "#",
// so the result is a key path only when every segment is SelectByKey (see keyPath).
func (p ClaimPaths) String() string {
	s := ""
	for i, seg := range p {
		if i > 0 {
			s += "."
		}
		switch seg.Kind {
		case ClaimPathSelectByKey:
			s += seg.Key
		case ClaimPathSelectAll:
			s += "*"
		case ClaimPathSelectByIndex:
			s += "#"
		}
	}
	return s
}

// keyPath converts ClaimPaths entirely made of SelectByKey segments into a plain []string,
// returning ok=false if any segment is SelectAll/SelectByIndex (§3.1: "only SelectByKey paths
// are legal in validation and insertion operations").
func (p ClaimPaths) keyPath() ([]string, bool) {
	keys := make([]string, 0, len(p))
	for _, seg := range p {
		k, ok := seg.TryKey()
		if !ok {
			return nil, false
		}
		keys = append(keys, k)
	}
	return keys, true
}

// KeyPathFrom converts a plain dotted key path into ClaimPaths made entirely of SelectByKey
// segments.
func KeyPathFrom(keys ...string) ClaimPaths {
	out := make(ClaimPaths, 0, len(keys))
	for _, k := range keys {
		out = append(out, SelectByKey(k))
	}
	return out
}
