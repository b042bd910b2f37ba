package mqclient

import "strings"

// matchTopic reports whether topic matches filter under MQTT 3.1.1
// wildcard rules: '+' matches exactly one non-empty level, '#' is
// only valid as the final level and matches that level and everything
// beneath it (including nothing). A filter whose first level begins
// with a wildcard never matches a topic whose first level begins with
// '$', per the standard "no wildcard match against $ topics" rule.
//
// Grounded on the teacher's matchTopic (topic.go), which this client
// keeps close to verbatim; the surrounding session-store wiring is
// new (spec.md §4.G; open question §9.7 resolved by implementing
// wildcards rather than the source's equality-only match).
func matchTopic(filter, topic string) bool {
	if len(topic) > 0 && topic[0] == '$' {
		if len(filter) > 0 && (filter[0] == '+' || filter[0] == '#') {
			return false
		}
	}

	fIdx, tIdx := 0, 0
	fLen, tLen := len(filter), len(topic)

	for fIdx <= fLen {
		var fLevel string
		var fNext int
		if idx := strings.IndexByte(filter[fIdx:], '/'); idx >= 0 {
			fNext = fIdx + idx
			fLevel = filter[fIdx:fNext]
		} else {
			fNext = fLen
			fLevel = filter[fIdx:]
		}

		if fLevel == "#" {
			return true
		}

		if tIdx > tLen {
			return false
		}

		var tLevel string
		var tNext int
		if idx := strings.IndexByte(topic[tIdx:], '/'); idx >= 0 {
			tNext = tIdx + idx
			tLevel = topic[tIdx:tNext]
		} else {
			tNext = tLen
			tLevel = topic[tIdx:]
		}

		if fLevel == "+" {
			// matches this level unconditionally
		} else if fLevel != tLevel {
			return false
		}

		if fNext == fLen {
			fIdx = fLen + 1
		} else {
			fIdx = fNext + 1
		}

		if tNext == tLen {
			tIdx = tLen + 1
		} else {
			tIdx = tNext + 1
		}
	}

	return tIdx > tLen
}
