package events

import (
	"fmt"

	"loanKit/internal/apperr"
)

// BlockRange is a closed block interval.
type BlockRange struct {
	From uint64
	To   uint64
}

// Validate rejects ranges whose start is after their end.
func (r BlockRange) Validate() error {
	if r.From > r.To {
		return fmt.Errorf("%w: from %d > to %d", apperr.ErrInvalidBlockRange, r.From, r.To)
	}
	return nil
}

// Split cuts the range into consecutive spans of at most span blocks. A
// zero span returns the range unchanged.
func (r BlockRange) Split(span uint64) ([]BlockRange, error) {
	if span == 0 {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		return []BlockRange{r}, nil
	}
	return SplitRange(r.From, r.To, span)
}

// SplitRange splits [from, to] into batches of batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("%w: from %d > to %d", apperr.ErrInvalidBlockRange, from, to)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return ranges, nil
}
