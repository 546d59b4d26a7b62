package transfer

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/shopspring/decimal"
)

// FromPrimitive serializes a primitive value deterministically:
// text as UTF-8, numbers as canonical decimal text, booleans as true/false,
// and structured values as JSON with sorted map keys.
func FromPrimitive(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, errs.Invalid("primitive value is nil")
	case string:
		return []byte(x), nil
	case []byte:
		return append([]byte(nil), x...), nil
	case json.RawMessage:
		return append([]byte(nil), x...), nil
	case bool:
		return []byte(strconv.FormatBool(x)), nil
	case int:
		return decimalText(decimal.NewFromInt(int64(x))), nil
	case int8:
		return decimalText(decimal.NewFromInt(int64(x))), nil
	case int16:
		return decimalText(decimal.NewFromInt(int64(x))), nil
	case int32:
		return decimalText(decimal.NewFromInt32(x)), nil
	case int64:
		return decimalText(decimal.NewFromInt(x)), nil
	case uint:
		return decimalText(fromUint(uint64(x))), nil
	case uint8:
		return decimalText(fromUint(uint64(x))), nil
	case uint16:
		return decimalText(fromUint(uint64(x))), nil
	case uint32:
		return decimalText(fromUint(uint64(x))), nil
	case uint64:
		return decimalText(fromUint(x)), nil
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, errs.Invalid("cannot serialize %v", x)
		}
		return decimalText(decimal.NewFromFloat32(x)), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, errs.Invalid("cannot serialize %v", x)
		}
		return decimalText(decimal.NewFromFloat(x)), nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil, errs.Invalid("number %q: %v", x.String(), err)
		}
		return decimalText(d), nil
	case decimal.Decimal:
		return decimalText(x), nil
	case *big.Int:
		if x == nil {
			return nil, errs.Invalid("primitive value is nil")
		}
		return []byte(x.String()), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, errs.Invalid("cannot serialize %T: %v", v, err)
		}
		return b, nil
	}
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func decimalText(d decimal.Decimal) []byte {
	return []byte(d.String())
}
