package indexer

import (
	"time"

	"loanKit/internal/events"
	"loanKit/internal/model"
)

func buildEventRecord(chainID uint64, contract string, ev events.DecodedLogEvent[events.Args], timestamp uint64, ingestedAt time.Time) model.EventRecord {
	record := model.NewEventRecord(chainID, contract, ev, ingestedAt)
	record.Timestamp = timestamp
	return record
}
