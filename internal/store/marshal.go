package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/docindex/internal/ir"
)

// marshalLinks converts links to canonical JSON TEXT, keeping their order.
func marshalLinks(links []string) (string, error) {
	data, err := ir.MarshalIDs(links)
	if err != nil {
		return "", fmt.Errorf("marshal links: %w", err)
	}
	return data, nil
}

// marshalForks converts a fork set to canonical JSON TEXT. Forks are
// normalized first, so equal sets store identical text.
func marshalForks(forks []string) (string, error) {
	data, err := ir.MarshalIDs(ir.NormalizeForks(forks))
	if err != nil {
		return "", fmt.Errorf("marshal forks: %w", err)
	}
	return data, nil
}

// marshalFields converts the payload object to canonical JSON TEXT.
func marshalFields(fields ir.Object) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses canonical JSON TEXT to an Object.
// Uses ir.Object.UnmarshalJSON which keeps large integers exact.
func unmarshalFields(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return obj, nil
}

// recordColumns holds a record in its column encoding.
type recordColumns struct {
	docID     string
	versionID string
	links     string
	forks     string
	updatedAt string
	deleted   bool
	fields    string
}

func encodeRecord(rec ir.CanonicalRecord) (recordColumns, error) {
	links, err := marshalLinks(rec.Links)
	if err != nil {
		return recordColumns{}, err
	}
	forks, err := marshalForks(rec.Forks)
	if err != nil {
		return recordColumns{}, err
	}
	fields, err := marshalFields(rec.Fields)
	if err != nil {
		return recordColumns{}, err
	}
	return recordColumns{
		docID:     rec.DocID,
		versionID: rec.VersionID,
		links:     links,
		forks:     forks,
		updatedAt: rec.UpdatedAt,
		deleted:   rec.Deleted,
		fields:    fields,
	}, nil
}

func decodeRecord(c recordColumns) (ir.CanonicalRecord, error) {
	links, err := ir.UnmarshalIDs(c.links)
	if err != nil {
		return ir.CanonicalRecord{}, fmt.Errorf("record %q links: %w", c.docID, err)
	}
	forks, err := ir.UnmarshalIDs(c.forks)
	if err != nil {
		return ir.CanonicalRecord{}, fmt.Errorf("record %q forks: %w", c.docID, err)
	}
	fields, err := unmarshalFields(c.fields)
	if err != nil {
		return ir.CanonicalRecord{}, fmt.Errorf("record %q: %w", c.docID, err)
	}
	return ir.CanonicalRecord{
		DocumentVersion: ir.DocumentVersion{
			DocID:     c.docID,
			VersionID: c.versionID,
			Links:     links,
			UpdatedAt: c.updatedAt,
			Deleted:   c.deleted,
			Fields:    fields,
		},
		Forks: ir.NormalizeForks(forks),
	}, nil
}
