package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// DomainSnapshot prefixes snapshot fingerprints. The version suffix allows
// future algorithm changes.
const DomainSnapshot = "typedsql/snapshot/v1"

// Fingerprint returns the content hash of a snapshot.
//
// The snapshot is encoded as canonical JSON (sorted keys, NFC strings) and
// hashed with SHA-256 under DomainSnapshot. Table order is significant because
// it is part of the declared snapshot.
func Fingerprint(tables []*Table) (string, error) {
	data, err := MarshalCanonical(snapshotDocument(tables))
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainSnapshot))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func snapshotDocument(tables []*Table) []any {
	doc := make([]any, 0, len(tables))
	for _, t := range tables {
		cols := make([]any, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, map[string]any{
				"member":         c.MemberName,
				"name":           c.SqlName,
				"type":           c.Type.String(),
				"primary_key":    c.PrimaryKey,
				"auto_increment": c.AutoIncrement,
				"length":         c.Info.StringLength,
				"nvarchar":       c.Info.NVarChar,
				"precision":      c.Info.Precision,
				"scale":          c.Info.Scale,
			})
		}
		fks := make([]any, 0, len(t.ForeignKeys))
		for _, fk := range t.ForeignKeys {
			fks = append(fks, map[string]any{
				"name":              fk.Name,
				"columns":           stringsToAny(fk.Columns),
				"reference_table":   string(fk.ReferenceTable),
				"reference_columns": stringsToAny(fk.ReferenceColumns),
			})
		}
		ixs := make([]any, 0, len(t.Indices))
		for _, ix := range t.Indices {
			ixs = append(ixs, map[string]any{
				"name":    ix.Name,
				"columns": stringsToAny(ix.Columns),
				"unique":  ix.Unique,
			})
		}
		doc = append(doc, map[string]any{
			"id":           string(t.ID),
			"name":         t.Name,
			"columns":      cols,
			"foreign_keys": fks,
			"indices":      ixs,
		})
	}
	return doc
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// MarshalCanonical encodes strings, integers, bools, []any and map[string]any
// as canonical JSON: object keys sorted by UTF-16 code units, strings NFC
// normalized, no HTML escaping. Floats and nulls are rejected.
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareUTF16)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := MarshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func compareUTF16(a, b string) int {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	return slices.Compare(ua, ub)
}
