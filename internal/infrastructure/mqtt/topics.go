package mqtt

import (
	"fmt"
	"strings"
)

// MQTT topic wildcards.
const (
	// WildcardMultiLevel matches any number of trailing levels.
	WildcardMultiLevel = "#"

	// WildcardSingleLevel matches exactly one level.
	WildcardSingleLevel = "+"

	// CatchAllFilter matches every topic except $-prefixed system topics.
	CatchAllFilter = WildcardMultiLevel

	topicSeparator = "/"
)

// maxTopicLength is the MQTT limit on encoded topic length.
const maxTopicLength = 65535

// ValidateTopicFilter checks a subscription filter against MQTT wildcard rules.
//
//   - the filter must be non-empty and contain no NUL byte
//   - "#" must be the last level and occupy the whole level
//   - "+" must occupy a whole level
//
// Returns an error wrapping ErrInvalidTopic.
func ValidateTopicFilter(filter string) error {
	if err := validateTopicCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, topicSeparator)
	for i, level := range levels {
		if strings.Contains(level, WildcardMultiLevel) {
			if level != WildcardMultiLevel || i != len(levels)-1 {
				return fmt.Errorf("%w: %q: '#' must be the last level on its own", ErrInvalidTopic, filter)
			}
		}
		if strings.Contains(level, WildcardSingleLevel) && level != WildcardSingleLevel {
			return fmt.Errorf("%w: %q: '+' must occupy a whole level", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// ValidateTopicName checks a publish topic: non-empty and wildcard free.
func ValidateTopicName(topic string) error {
	if err := validateTopicCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, WildcardMultiLevel+WildcardSingleLevel) {
		return fmt.Errorf("%w: %q: wildcards are not allowed when publishing", ErrInvalidTopic, topic)
	}
	return nil
}

func validateTopicCommon(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains a NUL byte", ErrInvalidTopic)
	}
	return nil
}

// MatchTopic reports whether topic matches the subscription filter.
//
// Wildcards at the first level never match topics starting with '$'.
// A trailing "#" also matches the parent level ("a/#" matches "a").
func MatchTopic(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, WildcardMultiLevel) || strings.HasPrefix(filter, WildcardSingleLevel)) {
		return false
	}

	filterLevels := strings.Split(filter, topicSeparator)
	topicLevels := strings.Split(topic, topicSeparator)

	for i, fl := range filterLevels {
		if fl == WildcardMultiLevel {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if fl != WildcardSingleLevel && fl != topicLevels[i] {
			return false
		}
	}
	return len(filterLevels) == len(topicLevels)
}

// normaliseSubscriptions validates filters, collapses duplicates and applies
// the catch-all default when none are given.
func normaliseSubscriptions(filters []string) ([]string, error) {
	if len(filters) == 0 {
		return []string{CatchAllFilter}, nil
	}

	seen := make(map[string]struct{}, len(filters))
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		if err := ValidateTopicFilter(f); err != nil {
			return nil, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}
