package engine

import "bytes"

// findEarliest returns the marker whose first occurrence at or after from
// starts lowest in buf. On equal start positions the marker listed first
// wins. It returns -1 when no marker occurs.
func findEarliest(buf []byte, from int, markers []string) (int, string) {
	if from < 0 {
		from = 0
	}
	if from > len(buf) {
		return -1, ""
	}

	best, winner := -1, ""
	for _, m := range markers {
		if m == "" {
			continue
		}
		i := bytes.Index(buf[from:], []byte(m))
		if i < 0 {
			continue
		}
		if i += from; best < 0 || i < best {
			best, winner = i, m
		}
	}
	return best, winner
}

// skipWhitespace returns the first index at or after pos that is not a
// space, tab, carriage return or newline.
func skipWhitespace(buf []byte, pos int) int {
	for pos < len(buf) {
		switch buf[pos] {
		case ' ', '\t', '\r', '\n':
			pos++
		default:
			return pos
		}
	}
	return pos
}
