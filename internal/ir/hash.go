package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Domain prefixes for digests. The version suffix leaves room for
// algorithm migration.
const (
	DomainRecord = "docindex/record/v1"
	DomainState  = "docindex/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordObject renders r as a payload Object with the persisted field names.
// Forks are normalized, so equal fork sets render identically. Ids and the
// timestamp are Opaque; only Fields are NFC normalized.
func RecordObject(r CanonicalRecord) Object {
	fields := r.Fields
	if fields == nil {
		fields = Object{}
	}
	return Object{
		"docId":     Opaque(r.DocID),
		"versionId": Opaque(r.VersionID),
		"links":     idList(r.Links),
		"forks":     idList(NormalizeForks(r.Forks)),
		"updatedAt": Opaque(r.UpdatedAt),
		"deleted":   Bool(r.Deleted),
		"fields":    fields,
	}
}

func idList(ids []string) List {
	out := make(List, len(ids))
	for i, id := range ids {
		out[i] = Opaque(id)
	}
	return out
}

// RecordJSON returns the canonical JSON of r.
func RecordJSON(r CanonicalRecord) ([]byte, error) {
	data, err := MarshalCanonical(RecordObject(r))
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", r.DocID, err)
	}
	return data, nil
}

// RecordDigest computes the content digest of a single record.
func RecordDigest(r CanonicalRecord) (string, error) {
	data, err := RecordJSON(r)
	if err != nil {
		return "", fmt.Errorf("RecordDigest: %w", err)
	}
	return hashWithDomain(DomainRecord, data), nil
}

// StateDigest computes a digest over a whole set of canonical records.
//
// Records are ordered by DocID first, so the digest depends only on the set
// of records and not on the order a store returns them. Two replicas that
// ingested the same versions in any order report the same digest.
func StateDigest(records []CanonicalRecord) (string, error) {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b CanonicalRecord) int {
		return strings.Compare(a.DocID, b.DocID)
	})

	state := make(List, len(sorted))
	for i, r := range sorted {
		state[i] = RecordObject(r)
	}
	data, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateDigest: %w", err)
	}
	return hashWithDomain(DomainState, data), nil
}
