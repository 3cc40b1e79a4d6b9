package attributes

import (
	"fmt"
	"strings"

	"github.com/eudiwallet/core/pkg/apierror"
)

// AttributeKind discriminates the Attribute variants of §3.1.
type AttributeKind int

const (
	AttributeSingle AttributeKind = iota
	AttributeNested
)

// Attribute is a tagged variant: Single(AttributeValue) or Nested(Attributes). Leaf values
// never contain a Nested Attributes (§3.1 invariant) — that's enforced structurally, since
// AttributeValue has no Nested case of its own.
type Attribute struct {
	Kind   AttributeKind
	Single AttributeValue
	Nested *Attributes
}

// NewSingle wraps a leaf value as a Single Attribute.
func NewSingle(v AttributeValue) Attribute {
	return Attribute{Kind: AttributeSingle, Single: v}
}

// NewNested wraps an Attributes map as a Nested Attribute.
func NewNested(a *Attributes) Attribute {
	return Attribute{Kind: AttributeNested, Nested: a}
}

// Attributes is an ordered mapping from string key to Attribute. Order is insertion order
// and is observable: it seeds claim-path ordering and mdoc namespace ordering (§3.1).
type Attributes struct {
	order []string
	byKey map[string]Attribute
}

// New returns an empty Attributes map.
func New() *Attributes {
	return &Attributes{byKey: make(map[string]Attribute)}
}

// Len returns the number of direct children.
func (a *Attributes) Len() int { return len(a.order) }

// Keys returns the direct child keys in insertion order.
func (a *Attributes) Keys() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Get returns the direct child at key, if present.
func (a *Attributes) Get(key string) (Attribute, bool) {
	v, ok := a.byKey[key]
	return v, ok
}

// Set inserts or overwrites the direct child at key, appending to the insertion order the
// first time the key is seen.
func (a *Attributes) Set(key string, attr Attribute) {
	if _, exists := a.byKey[key]; !exists {
		a.order = append(a.order, key)
	}
	a.byKey[key] = attr
}

// Delete removes the direct child at key, if present.
func (a *Attributes) Delete(key string) {
	if _, exists := a.byKey[key]; !exists {
		return
	}
	delete(a.byKey, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// FlatEntry is one leaf of a flattened Attributes tree.
type FlatEntry struct {
	Path  []string
	Value AttributeValue
}

// Flattened returns the depth-first, insertion-order enumeration of all leaves, each keyed
// by its full key path (§3.1 "flattened view").
func (a *Attributes) Flattened() []FlatEntry {
	result := make([]FlatEntry, 0, a.Len())
	traverseFlatten(nil, a, &result)
	return result
}

func traverseFlatten(prefix []string, attrs *Attributes, result *[]FlatEntry) {
	for _, key := range attrs.order {
		attr := attrs.byKey[key]
		path := append(append([]string{}, prefix...), key)
		switch attr.Kind {
		case AttributeNested:
			traverseFlatten(path, attr.Nested, result)
		case AttributeSingle:
			*result = append(*result, FlatEntry{Path: path, Value: attr.Single})
		}
	}
}

// metadataView is the narrow slice of NormalizedTypeMetadata that attribute operations need:
// its vct (for the mdoc root namespace) and the ordered set of leaf claim key paths.
type metadataView interface {
	VCT() string
	ClaimKeyPaths() [][]string
}

// Validate checks that every leaf in the tree corresponds to a declared claim in
// type_metadata, per §4.3 "validate(metadata)". Any leaf without a matching claim key path
// yields AttributesWithoutClaim listing the offending paths.
func (a *Attributes) Validate(metadata metadataView) error {
	flattened := a.Flattened()
	remaining := make(map[string]FlatEntry, len(flattened))
	order := make([]string, 0, len(flattened))
	for _, e := range flattened {
		k := strings.Join(e.Path, ".")
		remaining[k] = e
		order = append(order, k)
	}

	for _, claimPath := range metadata.ClaimKeyPaths() {
		delete(remaining, strings.Join(claimPath, "."))
	}

	if len(remaining) == 0 {
		return nil
	}

	offending := make([][]string, 0, len(remaining))
	for _, k := range order {
		if e, ok := remaining[k]; ok {
			offending = append(offending, e.Path)
		}
	}

	return apierror.Newf(apierror.KindAttributesWithoutClaim, "attributes without claim: %v", offending)
}

// Entry is a single mdoc namespace entry (name/value pair), mirroring the mdoc wire model
// (pkg/mdocmodel.Entry uses the same shape; kept local here to avoid a dependency cycle,
// since mdocmodel depends on attributes, not the reverse).
type Entry struct {
	Name  string
	Value AttributeValue
}

// NamespacedEntries is an ordered mapping from mdoc namespace to its entries.
type NamespacedEntries struct {
	order []string
	byNS  map[string][]Entry
}

// NewNamespacedEntries returns an empty NamespacedEntries map.
func NewNamespacedEntries() *NamespacedEntries {
	return &NamespacedEntries{byNS: make(map[string][]Entry)}
}

// Keys returns namespace keys in insertion order.
func (n *NamespacedEntries) Keys() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Get returns the entries for a namespace.
func (n *NamespacedEntries) Get(ns string) ([]Entry, bool) {
	v, ok := n.byNS[ns]
	return v, ok
}

func (n *NamespacedEntries) append(ns string, e Entry) {
	if _, exists := n.byNS[ns]; !exists {
		n.order = append(n.order, ns)
	}
	n.byNS[ns] = append(n.byNS[ns], e)
}

func (n *NamespacedEntries) isEmpty() bool {
	for _, ns := range n.order {
		if len(n.byNS[ns]) > 0 {
			return false
		}
	}
	return true
}

// FromMdocAttributes reconstructs a nested Attributes tree from mdoc namespace/entry form,
// driven by the order of type_metadata's claim key paths (§4.3). Remaining unconsumed
// entries yield SomeAttributesNotProcessed; missing (optional) claims do not error.
func FromMdocAttributes(metadata metadataView, namespaced *NamespacedEntries) (*Attributes, error) {
	result := New()
	keyPaths := metadata.ClaimKeyPaths()

	for _, keyPath := range keyPaths {
		if err := traverseAttributesByClaim(metadata.VCT(), keyPath, namespaced, result); err != nil {
			return nil, err
		}
	}

	if !namespaced.isEmpty() {
		remaining := make(map[string][]Entry, len(namespaced.order))
		for _, ns := range namespaced.order {
			if len(namespaced.byNS[ns]) > 0 {
				remaining[ns] = namespaced.byNS[ns]
			}
		}
		return nil, apierror.Newf(apierror.KindSomeAttributesNotProcessed,
			"some attributes have not been processed by metadata: %v", remaining)
	}

	return result, nil
}

func traverseAttributesByClaim(prefix string, keys []string, namespaced *NamespacedEntries, result *Attributes) error {
	if namespaced.isEmpty() {
		return nil
	}

	switch len(keys) {
	case 0:
		return apierror.New(apierror.KindInvalidClaimPath, "unexpected empty key path")
	case 1:
		head := keys[0]
		entries, ok := namespaced.byNS[prefix]
		if ok {
			remaining, err := insertEntry(head, entries, result)
			if err != nil {
				return fmt.Errorf("attribute error at %s.%s: %w", prefix, head, err)
			}
			namespaced.byNS[prefix] = remaining
		}
		return nil
	default:
		head := keys[0]
		prefixedKey := prefix + "." + head

		child, ok := result.Get(head)
		if !ok || child.Kind != AttributeNested {
			child = NewNested(New())
			result.Set(head, child)
		}
		return traverseAttributesByClaim(prefixedKey, keys[1:], namespaced, child.Nested)
	}
}

func insertEntry(key string, entries []Entry, group *Attributes) ([]Entry, error) {
	for i, entry := range entries {
		if entry.Name == key {
			group.Set(entry.Name, NewSingle(entry.Value))
			out := append(append([]Entry{}, entries[:i]...), entries[i+1:]...)
			return out, nil
		}
	}
	return entries, nil
}

// ToMdocAttributes flattens the tree into mdoc namespace/entry form, namespacing each leaf by
// attestationType joined with its parent path segments (§4.3 "to_mdoc_attributes").
func (a *Attributes) ToMdocAttributes(attestationType string) *NamespacedEntries {
	result := NewNamespacedEntries()
	for _, e := range a.Flattened() {
		parents := e.Path[:len(e.Path)-1]
		name := e.Path[len(e.Path)-1]

		nsParts := append([]string{attestationType}, parents...)
		ns := strings.Join(nsParts, ".")

		result.append(ns, Entry{Name: name, Value: e.Value})
	}
	return result
}

// ClaimPaths returns the depth-first POST-order enumeration of all non-empty prefixes: for a
// parent node, every descendant path is emitted before the parent's own path (§3.1, §4.3).
// This ordering is contractual for SD-JWT selective-disclosure concealment.
func (a *Attributes) ClaimPaths() []ClaimPaths {
	result := make([]ClaimPaths, 0, a.Len())
	traverseClaimPaths(nil, a, &result)
	return result
}

func traverseClaimPaths(prefix ClaimPaths, attrs *Attributes, result *[]ClaimPaths) {
	for _, key := range attrs.order {
		attr := attrs.byKey[key]
		path := append(append(ClaimPaths{}, prefix...), SelectByKey(key))

		if attr.Kind == AttributeNested {
			traverseClaimPaths(path, attr.Nested, result)
		}

		*result = append(*result, path)
	}
}

// GetPath retrieves the attribute value at claimPaths, returning (nil, nil) if absent and an
// InvalidClaimPath error if any segment is not SelectByKey (§4.3). This is the claim-path-
// addressed counterpart of Get, which only looks up a single direct child key.
func (a *Attributes) GetPath(claimPaths ClaimPaths) (*AttributeValue, error) {
	keys, ok := claimPaths.keyPath()
	if !ok || len(keys) == 0 {
		return nil, apierror.New(apierror.KindInvalidClaimPath, "claim path must consist only of SelectByKey segments")
	}

	attr, ok := a.Get(keys[0])
	if !ok {
		return nil, nil
	}

	for _, key := range keys[1:] {
		if attr.Kind == AttributeSingle {
			return nil, nil
		}
		attr, ok = attr.Nested.Get(key)
		if !ok {
			return nil, nil
		}
	}

	if attr.Kind != AttributeSingle {
		return nil, nil
	}
	v := attr.Single
	return &v, nil
}

// ErrClaimAlreadyExists is returned by Insert when the target path already holds a Single leaf.
var ErrClaimAlreadyExists = apierror.New(apierror.KindInvalidClaimPath, "claim already exists")

// Insert places attr at claimPaths, creating intermediate Nested nodes as needed. It fails
// with InvalidClaimPath if an intermediate segment is already a Single leaf, with
// ErrClaimAlreadyExists if the target path already holds a Single leaf, and with
// InvalidClaimPath if the target path already holds a Nested attribute (§4.3).
func (a *Attributes) Insert(claimPaths ClaimPaths, attr Attribute) error {
	keys, ok := claimPaths.keyPath()
	if !ok || len(keys) == 0 {
		return apierror.New(apierror.KindInvalidClaimPath, "claim path must consist only of SelectByKey segments")
	}

	current := a
	for _, key := range keys[:len(keys)-1] {
		child, exists := current.Get(key)
		if !exists {
			child = NewNested(New())
			current.Set(key, child)
		}
		if child.Kind != AttributeNested {
			return apierror.New(apierror.KindInvalidClaimPath, "intermediate path segment is a leaf")
		}
		current = child.Nested
	}

	last := keys[len(keys)-1]
	if existing, exists := current.Get(last); exists {
		if existing.Kind == AttributeSingle {
			return ErrClaimAlreadyExists
		}
		return apierror.New(apierror.KindInvalidClaimPath, "claim path already holds a nested attribute")
	}

	current.Set(last, attr)
	return nil
}
