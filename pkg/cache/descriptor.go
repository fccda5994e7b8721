package cache

import (
	"fmt"
	"strings"
)

// Kind names a family of queries.
type Kind string

const (
	KindAll     Kind = "all"
	KindForSale Kind = "for-sale"
	KindByOwner Kind = "by-owner"
	KindByID    Kind = "by-id"
)

// Descriptor identifies one cached query. Its string form is "kind:scope".
type Descriptor struct {
	Kind  Kind
	Scope string
}

func (d Descriptor) String() string {
	return string(d.Kind) + ":" + d.Scope
}

func (d Descriptor) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func AllNFTs() Descriptor             { return Descriptor{Kind: KindAll, Scope: "all"} }
func ForSale() Descriptor             { return Descriptor{Kind: KindForSale, Scope: "all"} }
func ByOwner(owner string) Descriptor { return Descriptor{Kind: KindByOwner, Scope: owner} }
func ByID(id string) Descriptor       { return Descriptor{Kind: KindByID, Scope: id} }

// ParseDescriptor is the inverse of Descriptor.String.
func ParseDescriptor(s string) (Descriptor, error) {
	kind, scope, ok := strings.Cut(s, ":")
	if !ok || scope == "" {
		return Descriptor{}, fmt.Errorf("invalid descriptor %q", s)
	}
	switch Kind(kind) {
	case KindAll, KindForSale, KindByOwner, KindByID:
		return Descriptor{Kind: Kind(kind), Scope: scope}, nil
	}
	return Descriptor{}, fmt.Errorf("unknown descriptor kind %q", kind)
}

// Predicate selects descriptors for invalidation.
type Predicate func(Descriptor) bool

// All matches every descriptor.
func All(Descriptor) bool { return true }

// Exact matches exactly the given descriptors.
func Exact(ds ...Descriptor) Predicate {
	set := make(map[Descriptor]struct{}, len(ds))
	for _, d := range ds {
		set[d] = struct{}{}
	}
	return func(d Descriptor) bool {
		_, ok := set[d]
		return ok
	}
}

// OfKind matches every descriptor of kind k, whatever its scope.
func OfKind(k Kind) Predicate {
	return func(d Descriptor) bool { return d.Kind == k }
}

func Or(ps ...Predicate) Predicate {
	return func(d Descriptor) bool {
		for _, p := range ps {
			if p(d) {
				return true
			}
		}
		return false
	}
}
