package auth

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

// FloatPlaces is the number of fractional digits sent for decimal values.
const FloatPlaces = 8

// Params are request parameters. Values are strings, integers, floats,
// decimal.Decimal, or bools.
type Params map[string]any

// Clone returns a shallow copy of p. A nil p yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ProtectFloats returns a copy of p in which every floating point or decimal
// value is rendered with exactly FloatPlaces fractional digits and never in
// exponent notation (7.1e-07 becomes "0.00000071"). Other values are kept
// as they are.
func ProtectFloats(p Params) Params {
	out := p.Clone()
	for k, v := range out {
		switch n := v.(type) {
		case float64:
			out[k] = FormatDecimal(decimal.NewFromFloat(n))
		case float32:
			out[k] = FormatDecimal(decimal.NewFromFloat32(n))
		case decimal.Decimal:
			out[k] = FormatDecimal(n)
		}
	}
	return out
}

// FormatDecimal renders d with FloatPlaces fractional digits.
func FormatDecimal(d decimal.Decimal) string {
	return d.StringFixed(FloatPlaces)
}

// Values converts p to url.Values after ProtectFloats.
func Values(p Params) url.Values {
	values := make(url.Values, len(p))
	for k, v := range ProtectFloats(p) {
		values.Set(k, formatValue(v))
	}
	return values
}

// EncodeForm encodes p as an application/x-www-form-urlencoded body.
// Keys are sorted, so equal params always produce equal bytes.
func EncodeForm(p Params) string {
	return Values(p).Encode()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
