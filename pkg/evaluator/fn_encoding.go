package evaluator

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/sandrolain/sonata/pkg/types"
)

func fnFormatBase(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	n, ok := args[0].(types.Number)
	if !ok {
		return nil, nil
	}
	radix := int64(10)
	if r, ok := args[1].(types.Number); ok {
		radix = int64(r)
	}
	if radix < 2 || radix > 36 {
		return nil, types.NewError(types.ErrFormatBaseRadix, -1).WithValue(types.Number(radix))
	}
	rounded := decimal.NewFromFloat(float64(n)).RoundBank(0)
	return types.String(strconv.FormatInt(rounded.IntPart(), int(radix))), nil
}

func fnBase64Encode(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return types.String(base64.StdEncoding.EncodeToString([]byte(s))), nil
}

func fnBase64Decode(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	enc := base64.StdEncoding
	if !strings.HasSuffix(s, "=") && len(s)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	b, err := enc.DecodeString(s)
	if err != nil {
		return nil, types.NewError(types.ErrArgumentType, -1).WithIndex(1).WithValue(types.String(s)).WithCause(err)
	}
	return types.String(b), nil
}

const (
	// unreserved characters are never escaped
	unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.!~*'()"
	// reserved characters are kept by the whole-URL variants
	reserved = ";/?:@&=+$,#"
)

// encodeURI percent-encodes the UTF-8 bytes of s, leaving the characters in
// keep untouched. Invalid UTF-8 cannot be encoded.
func encodeURI(s, keep, fnName string) (types.Value, error) {
	if !utf8.ValidString(s) {
		return nil, types.NewError(types.ErrMalformedURL, -1).WithToken(fnName).WithValue(types.String(s))
	}
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < utf8.RuneSelf && strings.IndexByte(keep, c) >= 0 {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return types.String(sb.String()), nil
}

// decodeURI reverses encodeURI. Escapes that decode to a character in
// keep are left escaped. Truncated escapes or escapes that do not form
// valid UTF-8 are malformed.
func decodeURI(s, keep, fnName string) (types.Value, error) {
	malformed := types.NewError(types.ErrMalformedURL, -1).WithToken(fnName).WithValue(types.String(s))
	var sb strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '%' {
			sb.WriteByte(s[i])
			i++
			continue
		}
		var buf []byte
		start := i
		for i < len(s) && s[i] == '%' {
			if i+3 > len(s) {
				return nil, malformed
			}
			b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, malformed
			}
			buf = append(buf, byte(b))
			i += 3
			if utf8.FullRune(buf) {
				break
			}
		}
		if !utf8.Valid(buf) {
			return nil, malformed
		}
		if len(buf) == 1 && strings.IndexByte(keep, buf[0]) >= 0 {
			sb.WriteString(s[start:i])
			continue
		}
		sb.Write(buf)
	}
	return types.String(sb.String()), nil
}

func fnEncodeURLComponent(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return encodeURI(s, unreserved, "encodeUrlComponent")
}

func fnEncodeURL(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return encodeURI(s, unreserved+reserved, "encodeUrl")
}

func fnDecodeURLComponent(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return decodeURI(s, "", "decodeUrlComponent")
}

func fnDecodeURL(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return decodeURI(s, reserved, "decodeUrl")
}
