package models

import (
	"encoding/json"
	"fmt"
)

// MatchTier records which rule of the match-key cascade produced a key.
// Higher values mean higher matching confidence.
type MatchTier int

const (
	TierFallback MatchTier = iota
	TierBrandCategory
	TierBrandSizeCategory
	TierIdentifier
	TierSemanticNoSize
	TierSemantic
)

var tierNames = map[MatchTier]string{
	TierFallback:          "fallback",
	TierBrandCategory:     "brand_category",
	TierBrandSizeCategory: "brand_size_category",
	TierIdentifier:        "identifier",
	TierSemanticNoSize:    "semantic_no_size",
	TierSemantic:          "semantic",
}

func (t MatchTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseMatchTier is the inverse of String.
func ParseMatchTier(s string) (MatchTier, error) {
	for tier, name := range tierNames {
		if name == s {
			return tier, nil
		}
	}
	return TierFallback, fmt.Errorf("unknown match tier %q", s)
}

func (t MatchTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MatchTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMatchTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
