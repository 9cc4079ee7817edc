package listing

// PagerDelta is how many pages either side of the current one are shown.
const PagerDelta = 2

// PageItem is one entry of the pagination strip.
type PageItem struct {
	Page     int
	Current  bool
	Ellipsis bool
}

// PageWindow builds the pagination strip: the first and last page, pages
// within delta of current, and one ellipsis per gap. A gap hiding exactly
// one page shows that page instead.
func PageWindow(current, last, delta int) []PageItem {
	if last < 1 {
		last = 1
	}
	current = min(max(current, 1), last)

	shown := []int{1}
	for p := max(current-delta, 2); p <= min(current+delta, last-1); p++ {
		shown = append(shown, p)
	}
	if last > 1 {
		shown = append(shown, last)
	}

	items := make([]PageItem, 0, len(shown)+2)
	prev := 0
	for _, p := range shown {
		switch gap := p - prev - 1; {
		case prev == 0 || gap == 0:
		case gap == 1:
			items = append(items, PageItem{Page: prev + 1})
		default:
			items = append(items, PageItem{Ellipsis: true})
		}
		items = append(items, PageItem{Page: p, Current: p == current})
		prev = p
	}
	return items
}
