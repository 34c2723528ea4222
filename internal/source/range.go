package source

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// nextRange returns the first batch of at most batchSize blocks in [from, head].
// The caller must ensure from <= head.
func nextRange(from, head, batchSize uint64) BlockRange {
	if batchSize == 0 {
		batchSize = 1
	}
	to := head
	if head-from+1 > batchSize {
		to = from + batchSize - 1
	}
	return BlockRange{From: from, To: to}
}
