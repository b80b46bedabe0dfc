package ir

import (
	"errors"
	"fmt"
	"slices"
)

// Validation errors for incoming versions.
var (
	ErrMissingDocID     = errors.New("missing docId")
	ErrMissingVersionID = errors.New("missing versionId")
	ErrEmptyLink        = errors.New("empty link")
)

// DocumentVersion is one immutable edit of a document.
//
// Links names the prior versions this version supersedes. UpdatedAt is the
// recency token used by the default winner rule; it compares lexically, so
// timestamps must be written in a fixed-width format such as RFC 3339 UTC.
// An empty UpdatedAt means "absent" and sorts before every other value.
//
// Deleted and Fields are payload. They are stored with the record and never
// inspected by the merge algorithm.
type DocumentVersion struct {
	DocID     string   `json:"docId" yaml:"docId"`
	VersionID string   `json:"versionId" yaml:"versionId"`
	Links     []string `json:"links" yaml:"links"`
	UpdatedAt string   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Deleted   bool     `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Fields    Object   `json:"fields,omitempty" yaml:"-"`
}

// Validate reports whether v carries the fields the merge engine requires.
func (v DocumentVersion) Validate() error {
	if v.DocID == "" {
		return ErrMissingDocID
	}
	if v.VersionID == "" {
		return ErrMissingVersionID
	}
	for i, link := range v.Links {
		if link == "" {
			return fmt.Errorf("links[%d]: %w", i, ErrEmptyLink)
		}
	}
	return nil
}

// Clone returns a deep copy of v so callers may hold it past a transaction.
func (v DocumentVersion) Clone() DocumentVersion {
	out := v
	out.Links = slices.Clone(v.Links)
	if out.Links == nil {
		out.Links = []string{}
	}
	if v.Fields != nil {
		out.Fields = v.Fields.Clone()
	}
	return out
}

// CanonicalRecord is the single winning version persisted for a DocID,
// together with the concurrent versions that lost to it.
type CanonicalRecord struct {
	DocumentVersion
	Forks []string `json:"forks"`
}

// NewCanonicalRecord builds a record for v with the given fork set.
// The fork set is normalized and never contains v's own VersionID.
func NewCanonicalRecord(v DocumentVersion, forks []string) CanonicalRecord {
	rec := CanonicalRecord{DocumentVersion: v.Clone()}
	rec.Forks = ForkSet(forks).Without(v.VersionID)
	return rec
}

// Version returns the DocumentVersion part of the record.
func (r CanonicalRecord) Version() DocumentVersion {
	return r.DocumentVersion.Clone()
}

// Clone returns a deep copy of r.
func (r CanonicalRecord) Clone() CanonicalRecord {
	return CanonicalRecord{
		DocumentVersion: r.DocumentVersion.Clone(),
		Forks:           slices.Clone(NormalizeForks(r.Forks)),
	}
}

// HasFork reports whether versionID is one of r's forks.
func (r CanonicalRecord) HasFork(versionID string) bool {
	_, found := slices.BinarySearch(r.Forks, versionID)
	return found
}

// ForkSet is an immutable sorted set of version ids.
// Every operation returns a new slice; the receiver is never modified.
type ForkSet []string

// NormalizeForks sorts and de-duplicates ids into a new slice.
// A nil or empty input yields an empty, non-nil slice.
func NormalizeForks(ids []string) []string {
	out := slices.Clone(ids)
	if out == nil {
		return []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// With returns the set plus ids.
func (f ForkSet) With(ids ...string) []string {
	out := make([]string, 0, len(f)+len(ids))
	out = append(out, f...)
	out = append(out, ids...)
	return NormalizeForks(out)
}

// Without returns the set minus ids.
func (f ForkSet) Without(ids ...string) []string {
	out := make([]string, 0, len(f))
	for _, id := range NormalizeForks(f) {
		if !slices.Contains(ids, id) {
			out = append(out, id)
		}
	}
	return out
}
