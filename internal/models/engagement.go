package models

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

type Kind string

const (
	KindView    Kind = "view"
	KindLike    Kind = "like"
	KindCollect Kind = "collect"
)

const VisitCountKey = "visit_count"

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindView, KindLike, KindCollect:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Toggleable reports whether the kind is driven by a per-user toggle set.
func (k Kind) Toggleable() bool {
	return k == KindLike || k == KindCollect
}

func (k Kind) CounterPrefix() string {
	switch k {
	case KindLike:
		return "article_like_count_"
	case KindCollect:
		return "article_collection_count_"
	default:
		return "article_count_"
	}
}

func (k Kind) CounterKey(subjectID string) string {
	return k.CounterPrefix() + subjectID
}

func (k Kind) ToggleKey(userID string) string {
	if k == KindCollect {
		return "user_collections_" + userID
	}
	return "user_likes_" + userID
}

type CounterRecord struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type ToggleResult struct {
	IsOn  bool
	Count int
}

// DecodeCounter accepts the {id, count} document as well as bare numbers and
// numeric strings written by older clients. Negative values read as zero.
func DecodeCounter(raw []byte) (CounterRecord, error) {
	var rec CounterRecord
	if len(raw) == 0 {
		return rec, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		n, castErr := cast.ToIntE(string(raw))
		if castErr != nil {
			return rec, fmt.Errorf("decode counter: %w", err)
		}
		rec.Count = max(n, 0)
		return rec, nil
	}

	switch val := v.(type) {
	case map[string]any:
		rec.ID = cast.ToString(val["id"])
		rec.Count = cast.ToInt(val["count"])
	case nil:
	default:
		rec.Count = cast.ToInt(val)
	}
	rec.Count = max(rec.Count, 0)
	return rec, nil
}

func EncodeCounter(rec CounterRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// DecodeToggleSet reads a JSON array of ids, or a JSON string holding one.
// Duplicates are collapsed so membership stays binary.
func DecodeToggleSet(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		var nested string
		if json.Unmarshal(raw, &nested) != nil {
			return []string{}, fmt.Errorf("decode toggle set: %w", err)
		}
		if err := json.Unmarshal([]byte(nested), &ids); err != nil {
			return []string{}, fmt.Errorf("decode toggle set: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func EncodeToggleSet(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}
