package columns

// Selection names the three columns a diagram is built from. Value holds
// the display label; use Classification.Resolve for the table header.
type Selection struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  string `json:"value"`
}

// DefaultSelection picks "Source", "Target" and "FY26" when present, and
// otherwise the first, second and third candidates. When the list is too
// short the value falls back to the last time label and the target to
// an empty string.
func DefaultSelection(c *Classification) Selection {
	return Selection{
		Source: pick(c.Categorical, "Source", 0),
		Target: pick(c.Categorical, "Target", 1),
		Value:  pickOrLast(c.TimeLabels, "FY26", 2),
	}
}

func pick(options []string, preferred string, fallback int) string {
	for _, o := range options {
		if o == preferred {
			return o
		}
	}
	if fallback < len(options) {
		return options[fallback]
	}
	return ""
}

func pickOrLast(options []string, preferred string, fallback int) string {
	if v := pick(options, preferred, fallback); v != "" {
		return v
	}
	if len(options) > 0 {
		return options[len(options)-1]
	}
	return ""
}
