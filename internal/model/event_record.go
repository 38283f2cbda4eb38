package model

import (
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"loanKit/internal/events"
)

// EventRecord is the normalized representation of a decoded protocol event
// for storage.
type EventRecord struct {
	ChainID     uint64                 `json:"chain_id"`
	Contract    string                 `json:"contract"`
	Address     string                 `json:"address"`
	EventName   string                 `json:"event_name"`
	BlockNumber uint64                 `json:"block_number"`
	BlockHash   string                 `json:"block_hash"`
	TxHash      string                 `json:"tx_hash"`
	LogIndex    uint64                 `json:"log_index"`
	Removed     bool                   `json:"removed"`
	Timestamp   uint64                 `json:"timestamp,omitempty"`
	Args        map[string]interface{} `json:"args"`
	IngestedAt  string                 `json:"ingested_at"`
}

// NewEventRecord builds a record from a decoded event. Integers wider than
// 64 bits are written as decimal strings and byte values as 0x-hex.
func NewEventRecord(chainID uint64, contract string, ev events.DecodedLogEvent[events.Args], ingestedAt time.Time) EventRecord {
	return EventRecord{
		ChainID:     chainID,
		Contract:    contract,
		Address:     ev.Address.Hex(),
		EventName:   ev.EventName,
		BlockNumber: ev.BlockNumber,
		BlockHash:   ev.BlockHash.Hex(),
		TxHash:      ev.TransactionHash.Hex(),
		LogIndex:    uint64(ev.LogIndex),
		Removed:     ev.Removed,
		Args:        NormalizeArgs(ev.Args),
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Key identifies the log an event came from.
func (r EventRecord) Key() string {
	return r.TxHash + ":" + hexutil.EncodeUint64(r.LogIndex)
}

// NormalizeArgs converts ABI-decoded values into JSON-stable values.
func NormalizeArgs(args events.Args) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for name, value := range args {
		out[name] = normalizeValue(value)
	}
	return out
}

func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case *big.Int:
		if v == nil {
			return nil
		}
		return v.String()
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case []byte:
		return hexutil.Encode(v)
	case string, bool:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return hexutil.Encode(b)
		}
		fallthrough
	case reflect.Slice:
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = normalizeValue(rv.Index(i).Interface())
		}
		return items
	}
	return value
}
