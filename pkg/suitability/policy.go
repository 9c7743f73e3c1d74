package suitability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"github.com/spf13/viper"
)

// Policy holds the numeric tiers of the classifier. The defaults follow the unsuitability table of
// the cycle-routing extractor, inverted so that a higher tier is friendlier.
type Policy struct {
	DefaultTier   Score            `validate:"min=1,max=6"`
	SidewalkBonus Score            `validate:"min=0,max=5"`
	HighwayTiers  map[string]Score `validate:"required"`
	BicycleShift  map[string]Score
	Hostile       map[string]struct{} `validate:"required"`
}

func DefaultPolicy() Policy {
	return Policy{
		DefaultTier:   MinTier,
		SidewalkBonus: 1,
		HighwayTiers: map[string]Score{
			"living_street":  5,
			"service":        5,
			"track":          5,
			"path":           5,
			"footway":        5,
			"pedestrian":     5,
			"bridleway":      5,
			"platform":       5,
			"residential":    4,
			"unclassified":   4,
			"traffic_island": 4,
			"tertiary":       3,
			"tertiary_link":  3,
			"road":           3,
			"secondary":      2,
			"secondary_link": 2,
			"primary":        1,
			"primary_link":   1,
			"trunk":          1,
			"trunk_link":     1,
		},
		BicycleShift: map[string]Score{
			"designated": 2,
			"yes":        1,
			"permissive": 1,
			"dismount":   -2,
			"no":         -3,
		},
		Hostile: map[string]struct{}{
			"motorway":      {},
			"motorway_link": {},
			"trunk":         {},
			"trunk_link":    {},
			"construction":  {},
			"proposed":      {},
			"steps":         {},
			"elevator":      {},
			"corridor":      {},
			"raceway":       {},
			"rest_area":     {},
		},
	}
}

// PolicyFromViper starts from DefaultPolicy and applies the suitability.* keys:
//
//	suitability.default_tier, suitability.sidewalk_bonus,
//	suitability.highway.<class>, suitability.bicycle.<value>, suitability.hostile (list)
func PolicyFromViper(v *viper.Viper) (Policy, error) {
	p := DefaultPolicy()

	if v.IsSet("suitability.default_tier") {
		p.DefaultTier = Score(v.GetInt("suitability.default_tier"))
	}
	if v.IsSet("suitability.sidewalk_bonus") {
		p.SidewalkBonus = Score(v.GetInt("suitability.sidewalk_bonus"))
	}
	for class := range v.GetStringMap("suitability.highway") {
		p.HighwayTiers[normalize(class)] = Score(v.GetInt("suitability.highway." + class))
	}
	for value := range v.GetStringMap("suitability.bicycle") {
		p.BicycleShift[normalize(value)] = Score(v.GetInt("suitability.bicycle." + value))
	}
	if v.IsSet("suitability.hostile") {
		p.Hostile = make(map[string]struct{})
		for _, class := range v.GetStringSlice("suitability.hostile") {
			p.Hostile[normalize(class)] = struct{}{}
		}
	}

	return p, p.Validate()
}

func (p Policy) Validate() error {
	if err := util.ValidateStruct(p); err != nil {
		return err
	}

	classes := make([]string, 0, len(p.HighwayTiers))
	for class := range p.HighwayTiers {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	bad := []string{}
	for _, class := range classes {
		tier := p.HighwayTiers[class]
		if tier < MinTier || tier > MaxTier {
			bad = append(bad, fmt.Sprintf("highway=%s tier %d", class, tier))
		}
	}
	if len(bad) > 0 {
		return util.NewErrorf(util.ErrBadParamInput, "suitability tiers must be within [%d, %d]: %s",
			MinTier, MaxTier, strings.Join(bad, ", "))
	}
	return nil
}
