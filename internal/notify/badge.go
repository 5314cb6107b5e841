package notify

import "strconv"

// DefaultBadgeCap is the largest count the badge shows as a number.
const DefaultBadgeCap = 9

// Badge renders count for the unread badge: empty when there is nothing
// unread, the number up to limit, and "<limit>+" beyond it.
func Badge(count, limit int) string {
	if count <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = DefaultBadgeCap
	}
	if count > limit {
		return strconv.Itoa(limit) + "+"
	}
	return strconv.Itoa(count)
}
