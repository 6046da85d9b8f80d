package placement

// Worst is best-first with the reversed sign, kept as its own
// constructor for testability (§4.4.4 "same as best-first with
// reversed sign, for testing").
func NewWorst() Algorithm {
	return BestFirst{Invert: true}
}

func NewBestFirst() Algorithm {
	return BestFirst{}
}
