package suitability

import "strings"

// the only keys the classifier ever reads.
const (
	KeyHighway       = "highway"
	KeyBicycle       = "bicycle"
	KeySidewalk      = "sidewalk"
	KeyCycleway      = "cycleway"
	KeyCyclewayLeft  = "cycleway:left"
	KeyCyclewayRight = "cycleway:right"
	KeyCyclewayBoth  = "cycleway:both"
	KeyOneway        = "oneway"
	KeyOnewayBicycle = "oneway:bicycle"
	KeyJunction      = "junction"
)

var (
	cyclewayKeys = []string{KeyCycleway, KeyCyclewayLeft, KeyCyclewayRight, KeyCyclewayBoth}

	// bicycle values that lift the hostile-highway exclusion.
	bicycleOverride = map[string]struct{}{
		"yes":         {},
		"designated":  {},
		"permissive":  {},
		"destination": {},
		"dismount":    {},
	}

	permissiveSidewalk = map[string]struct{}{
		"yes":   {},
		"both":  {},
		"left":  {},
		"right": {},
	}

	noCycleway = map[string]struct{}{
		"no":   {},
		"none": {},
	}
)

type Classifier struct {
	policy Policy
}

func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// Classify maps a way's tags to its suitability. It is total: unknown or malformed values fall
// back to the highway default tier.
//
// Precedence:
//  1. hostile highway class without bicycle override -> Unusable
//  2. cycleway-type tag -> MaxTier
//  3. highway default tier shifted by the bicycle tag
//  4. permissive sidewalk raises by SidewalkBonus
//
// the result is clamped to [MinTier, MaxTier].
func (c *Classifier) Classify(tags map[string]string) Score {
	highway := normalize(tags[KeyHighway])
	bicycle := normalize(tags[KeyBicycle])
	cycleway := HasCycleway(tags)

	if _, hostile := c.policy.Hostile[highway]; hostile && !cycleway {
		if _, ok := bicycleOverride[bicycle]; !ok {
			return Unusable
		}
	}

	if cycleway {
		return MaxTier
	}

	tier := int(c.baseTier(highway))
	tier += int(c.policy.BicycleShift[bicycle])

	if _, ok := permissiveSidewalk[normalize(tags[KeySidewalk])]; ok {
		tier += int(c.policy.SidewalkBonus)
	}

	if tier < int(MinTier) {
		return MinTier
	}
	if tier > int(MaxTier) {
		return MaxTier
	}
	return Score(tier)
}

func (c *Classifier) baseTier(highway string) Score {
	if tier, ok := c.policy.HighwayTiers[highway]; ok {
		return clamp(tier, MinTier, MaxTier)
	}
	return clamp(c.policy.DefaultTier, MinTier, MaxTier)
}

// HasCycleway reports highway=cycleway or any cycleway key whose value is not no/none.
func HasCycleway(tags map[string]string) bool {
	if normalize(tags[KeyHighway]) == "cycleway" {
		return true
	}
	for _, key := range cyclewayKeys {
		val, ok := tags[key]
		if !ok {
			continue
		}
		if _, no := noCycleway[normalize(val)]; !no {
			return true
		}
	}
	return false
}

func normalize(val string) string {
	return strings.ToLower(strings.TrimSpace(val))
}
