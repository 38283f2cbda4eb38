package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Args is the untyped argument record of a decoded event, keyed by ABI
// argument name.
type Args map[string]interface{}

// DecodedLogEvent is one raw log decoded against the contract ABI.
type DecodedLogEvent[T any] struct {
	BlockNumber     uint64
	BlockHash       common.Hash
	TransactionHash common.Hash
	LogIndex        uint
	Address         common.Address
	EventName       string
	Removed         bool
	Args            T
}

// Decode decodes a log into untyped arguments.
func (c *Codec) Decode(log types.Log) (DecodedLogEvent[Args], error) {
	return DecodeAs[Args](c, log)
}

// DecodeAs decodes a log into T. T is either Args or a struct whose field
// names are the camel-cased ABI argument names.
func DecodeAs[T any](c *Codec, log types.Log) (DecodedLogEvent[T], error) {
	var out DecodedLogEvent[T]
	if len(log.Topics) == 0 {
		return out, fmt.Errorf("log has no topics")
	}
	event, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return out, fmt.Errorf("unknown topic0 %s", log.Topics[0].Hex())
	}

	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return out, fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(log.Topics))
	}

	out = DecodedLogEvent[T]{
		BlockNumber:     log.BlockNumber,
		BlockHash:       log.BlockHash,
		TransactionHash: log.TxHash,
		LogIndex:        log.Index,
		Address:         log.Address,
		EventName:       event.Name,
		Removed:         log.Removed,
	}

	if untyped, ok := any(&out.Args).(*Args); ok {
		args := make(Args, len(event.Inputs))
		if err := event.Inputs.UnpackIntoMap(args, log.Data); err != nil {
			return out, fmt.Errorf("unpack %s: %w", event.Name, err)
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
			return out, fmt.Errorf("parse topics %s: %w", event.Name, err)
		}
		*untyped = args
		return out, nil
	}

	if err := c.abi.UnpackIntoInterface(&out.Args, event.Name, log.Data); err != nil {
		return out, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if err := abi.ParseTopics(&out.Args, indexed, log.Topics[1:]); err != nil {
		return out, fmt.Errorf("parse topics %s: %w", event.Name, err)
	}
	return out, nil
}
