package escrow

// ReviewWindowElapsed reports whether the review window that opened at
// submittedAt has elapsed at the supplied instant. The window duration is
// fixed per escrow at creation. Eligibility is computed lazily from the
// caller's clock; no background scheduler is assumed.
func ReviewWindowElapsed(submittedAt, now, windowSecs int64) bool {
	return now >= submittedAt+windowSecs
}
