package components

// Pure cursor arithmetic for scrolling lists. Callers own the state.

// MoveCursor computes a new cursor position within bounds.
func MoveCursor(cursor, delta, itemCount int) int {
	if itemCount == 0 {
		return 0
	}
	next := cursor + delta
	if next < 0 {
		return 0
	}
	if next >= itemCount {
		return itemCount - 1
	}
	return next
}

// AdjustOffset ensures the cursor is visible within the viewport.
func AdjustOffset(cursor, offset, visibleHeight int) int {
	if visibleHeight < 1 {
		visibleHeight = 1
	}
	if cursor < offset {
		return cursor
	}
	if cursor >= offset+visibleHeight {
		return cursor - visibleHeight + 1
	}
	return offset
}

// VisibleRange returns the half-open [start, end) window of items to draw.
func VisibleRange(offset, visibleHeight, itemCount int) (int, int) {
	if itemCount == 0 || visibleHeight < 1 {
		return 0, 0
	}
	if offset < 0 {
		offset = 0
	}
	if offset > itemCount-1 {
		offset = itemCount - 1
	}
	end := offset + visibleHeight
	if end > itemCount {
		end = itemCount
	}
	return offset, end
}

// IndexOf returns the position of id in ids, or -1.
func IndexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
