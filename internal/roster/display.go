package roster

const DefaultDisplayLimit = 15

// Display is the truncated, display-only view of a roster.
type Display struct {
	Visible     []string
	HiddenCount int
	ShowMore    bool
}

// DisplayRoster shows every entry when the roster fits in maxInitial, otherwise the first
// maxInitial-1 entries followed by a show-more affordance.
func DisplayRoster(emails []string, maxInitial int) Display {
	if maxInitial <= 0 {
		maxInitial = DefaultDisplayLimit
	}

	if len(emails) <= maxInitial {
		visible := make([]string, len(emails))
		copy(visible, emails)
		return Display{Visible: visible}
	}

	shown := maxInitial - 1
	visible := make([]string, shown)
	copy(visible, emails[:shown])

	return Display{
		Visible:     visible,
		HiddenCount: len(emails) - shown,
		ShowMore:    true,
	}
}
