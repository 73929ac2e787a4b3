package metrics

import "strings"

// Namespace prefixes every metric exported by arag.
const Namespace = "arag"

// MetricName returns "<namespace>_<name>".
func MetricName(name string) string {
	return Namespace + "_" + sanitize(name)
}

// MetricNameWithSubsystem returns "<namespace>_<subsystem>_<name>".
func MetricNameWithSubsystem(subsystem, name string) string {
	if subsystem == "" {
		return MetricName(name)
	}
	return Namespace + "_" + sanitize(subsystem) + "_" + sanitize(name)
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
