package model

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

type LanguageCount struct {
	Language string
	Bytes    int64
}

// LanguageStats is an ordered mapping language -> bytes
// it is encoded as a JSON object whose key order is the slice order
type LanguageStats []LanguageCount

// Total returns the sum of all byte counts
func (s LanguageStats) Total() int64 {
	var total int64
	for _, lc := range s {
		total += lc.Bytes
	}

	return total
}

// Languages returns the language names in slice order
func (s LanguageStats) Languages() []string {
	languages := make([]string, 0, len(s))
	for _, lc := range s {
		languages = append(languages, lc.Language)
	}

	return languages
}

// SortByBytes sorts descending by bytes, ties keep their current order
func (s LanguageStats) SortByBytes() {
	slices.SortStableFunc(s, func(a, b LanguageCount) int {
		return cmp.Compare(b.Bytes, a.Bytes)
	})
}

func (s LanguageStats) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, lc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(lc.Language)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", lc.Bytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the document key order
// a duplicated key keeps its first position and its last value
func (s *LanguageStats) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if tok == nil {
		*s = nil
		return nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("language stats: expected object, got %v", tok)
	}

	stats := make(LanguageStats, 0)
	index := make(map[string]int)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}

		language, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("language stats: expected string key, got %v", keyTok)
		}

		var count int64
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("language stats: invalid byte count for %q: %w", language, err)
		}

		if i, found := index[language]; found {
			stats[i].Bytes = count
			continue
		}

		index[language] = len(stats)
		stats = append(stats, LanguageCount{Language: language, Bytes: count})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = stats
	return nil
}

// LanguageAccumulator sums byte counts per language and remembers
// the order in which each language was first seen
type LanguageAccumulator struct {
	index map[string]int
	stats LanguageStats
}

func NewLanguageAccumulator() *LanguageAccumulator {
	return &LanguageAccumulator{
		index: make(map[string]int),
		stats: make(LanguageStats, 0),
	}
}

// Add adds bytes to the language total
// non positive counts never create an entry
func (a *LanguageAccumulator) Add(language string, count int64) {
	if count <= 0 {
		return
	}

	if i, found := a.index[language]; found {
		a.stats[i].Bytes += count
		return
	}

	a.index[language] = len(a.stats)
	a.stats = append(a.stats, LanguageCount{Language: language, Bytes: count})
}

func (a *LanguageAccumulator) AddAll(stats LanguageStats) {
	for _, lc := range stats {
		a.Add(lc.Language, lc.Bytes)
	}
}

func (a *LanguageAccumulator) Len() int {
	return len(a.stats)
}

// Stats returns a copy of the totals in first seen order
func (a *LanguageAccumulator) Stats() LanguageStats {
	return slices.Clone(a.stats)
}

// Sorted returns a copy of the totals sorted by bytes descending
func (a *LanguageAccumulator) Sorted() LanguageStats {
	sorted := a.Stats()
	sorted.SortByBytes()

	return sorted
}
