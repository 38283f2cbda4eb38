package events

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"loanKit/internal/apperr"
)

// Codec maps event names to log filters and raw logs back to events for a
// single contract ABI.
type Codec struct {
	abi abi.ABI
}

func NewCodec(contractABI abi.ABI) *Codec {
	return &Codec{abi: contractABI}
}

// Events returns the declared event names, sorted.
func (c *Codec) Events() []string {
	names := make([]string, 0, len(c.abi.Events))
	for name := range c.abi.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether eventName is declared by the ABI.
func (c *Codec) Has(eventName string) bool {
	_, ok := c.abi.Events[eventName]
	return ok
}

// LogFilter selects logs of one event from one contract.
type LogFilter struct {
	Address     string
	EventName   string
	Topic       common.Hash
	Constraints map[string]interface{}

	topics [][]common.Hash
}

// Query builds the node-side filter. Nil bounds leave the range open.
func (f LogFilter) Query(from, to *big.Int) ethereum.FilterQuery {
	topics := make([][]common.Hash, 0, len(f.topics)+1)
	topics = append(topics, []common.Hash{f.Topic})
	topics = append(topics, f.topics...)
	for len(topics) > 1 && len(topics[len(topics)-1]) == 0 {
		topics = topics[:len(topics)-1]
	}
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{common.HexToAddress(f.Address)},
		Topics:    topics,
	}
}

// Filter builds a LogFilter. Keys of values must be indexed argument names
// of the event; a nil value matches anything and a slice matches any of its
// elements.
func (c *Codec) Filter(address, eventName string, values map[string]interface{}) (LogFilter, error) {
	if !common.IsHexAddress(address) {
		return LogFilter{}, fmt.Errorf("%w: %q", apperr.ErrInvalidAddress, address)
	}
	event, ok := c.abi.Events[eventName]
	if !ok {
		return LogFilter{}, fmt.Errorf("%w: %q", apperr.ErrInvalidEventName, eventName)
	}

	indexed := indexedArguments(event.Inputs)
	positions := make(map[string]int, len(indexed))
	for i, arg := range indexed {
		positions[arg.Name] = i
	}

	rules := make([][]interface{}, len(indexed))
	constraints := make(map[string]interface{}, len(values))
	for name, raw := range values {
		pos, ok := positions[name]
		if !ok {
			return LogFilter{}, fmt.Errorf("%w: %q is not an indexed argument of %s", apperr.ErrInvalidFilterSchema, name, eventName)
		}
		if raw == nil {
			continue
		}
		rule, err := coerceRule(indexed[pos].Type, raw)
		if err != nil {
			return LogFilter{}, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidFilterSchema, name, err)
		}
		rules[pos] = rule
		constraints[name] = raw
	}

	topics, err := abi.MakeTopics(rules...)
	if err != nil {
		return LogFilter{}, fmt.Errorf("%w: %v", apperr.ErrInvalidFilterSchema, err)
	}

	return LogFilter{
		Address:     strings.ToLower(common.HexToAddress(address).Hex()),
		EventName:   eventName,
		Topic:       event.ID,
		Constraints: constraints,
		topics:      topics,
	}, nil
}

func coerceRule(typ abi.Type, raw interface{}) ([]interface{}, error) {
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []string:
		items = make([]interface{}, 0, len(v))
		for _, s := range v {
			items = append(items, s)
		}
	default:
		items = []interface{}{raw}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty value list")
	}

	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		value, err := coerceValue(typ, item)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func coerceValue(typ abi.Type, raw interface{}) (interface{}, error) {
	switch typ.T {
	case abi.AddressTy:
		switch v := raw.(type) {
		case common.Address:
			return v, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("invalid address %q", v)
			}
			return common.HexToAddress(v), nil
		}
	case abi.FixedBytesTy:
		switch v := raw.(type) {
		case common.Hash:
			return v, nil
		case [32]byte:
			return common.Hash(v), nil
		case []byte:
			if len(v) > typ.Size {
				return nil, fmt.Errorf("value longer than bytes%d", typ.Size)
			}
			var h common.Hash
			copy(h[:], v)
			return h, nil
		case string:
			data, err := hexutil.Decode(v)
			if err != nil {
				return nil, fmt.Errorf("invalid bytes%d %q", typ.Size, v)
			}
			if len(data) > typ.Size {
				return nil, fmt.Errorf("value longer than bytes%d", typ.Size)
			}
			var h common.Hash
			copy(h[:], data)
			return h, nil
		}
	case abi.IntTy, abi.UintTy:
		n, err := toBigInt(raw)
		if err != nil {
			return nil, err
		}
		if typ.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value for %s", typ.String())
		}
		return n, nil
	case abi.BoolTy:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	case abi.StringTy:
		if v, ok := raw.(string); ok {
			return v, nil
		}
	case abi.BytesTy:
		switch v := raw.(type) {
		case []byte:
			return v, nil
		case string:
			data, err := hexutil.Decode(v)
			if err != nil {
				return nil, fmt.Errorf("invalid bytes %q", v)
			}
			return data, nil
		}
	default:
		return nil, fmt.Errorf("unsupported indexed type %s", typ.String())
	}
	return nil, fmt.Errorf("unsupported value %T for %s", raw, typ.String())
}

func toBigInt(raw interface{}) (*big.Int, error) {
	switch v := raw.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("non-integer value %v", v)
		}
		return big.NewInt(int64(v)), nil
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v), 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported integer type %T", raw)
	}
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
