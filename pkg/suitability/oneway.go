package suitability

import "strings"

// OneWay reports whether a way may only be ridden in one direction and whether that direction is
// against the order of its node references (oneway=-1).
func OneWay(tags map[string]string) (oneWay bool, reversed bool) {
	switch normalize(tags[KeyOnewayBicycle]) {
	case "no", "false", "0":
		return false, false
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return true, true
	}

	// contraflow lanes open one-way streets to bicycles.
	for _, key := range cyclewayKeys {
		if strings.HasPrefix(normalize(tags[key]), "opposite") {
			return false, false
		}
	}

	switch normalize(tags[KeyOneway]) {
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return true, true
	case "no", "false", "0":
		return false, false
	}

	switch normalize(tags[KeyJunction]) {
	case "roundabout", "circular":
		return true, false
	}

	switch normalize(tags[KeyHighway]) {
	case "motorway", "motorway_link":
		return true, false
	}
	return false, false
}
