package core

// Authorize decides which downstream actions are permitted for a bucket's
// action policy, given a classification when one is available.
//
// Ignore suppresses everything. Without a classification push and draft fall
// back to their static flags. With one, each must also clear its optional
// minimum confidence (inclusive). Summarize is never confidence gated.
func Authorize(a Actions, c *Classification) AuthorizedActions {
	if a.Ignore {
		return AuthorizedActions{}
	}

	return AuthorizedActions{
		Classify:  a.Classify,
		Summarize: a.Summarize,
		Draft:     a.Draft && meetsThreshold(c, a.DraftMinConfidence),
		Push:      a.Push && meetsThreshold(c, a.PushMinConfidence),
	}
}

func meetsThreshold(c *Classification, min *float64) bool {
	if c == nil || min == nil {
		return true
	}
	return c.Confidence >= *min
}
