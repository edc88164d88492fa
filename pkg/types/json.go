package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// FormatNumber renders n the way the language prints numbers: rounded to 15
// significant digits, then in the shortest form that round-trips, switching
// to exponent notation outside [1e-7, 1e21).
func FormatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(n, 'e', 14, 64), 64)
	if err != nil {
		rounded = n
	}
	return shortestNumber(rounded)
}

func shortestNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	mant, expPart, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mant, ".", "", 1)
	k := len(digits)
	n := exp + 1

	var out string
	switch {
	case k <= n && n <= 21:
		out = digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		out = digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		out = "0." + strings.Repeat("0", -n) + digits
	default:
		e := n - 1
		sign := "+"
		if e < 0 {
			sign = "-"
			e = -e
		}
		if k == 1 {
			out = digits + "e" + sign + strconv.Itoa(e)
		} else {
			out = digits[:1] + "." + digits[1:] + "e" + sign + strconv.Itoa(e)
		}
	}
	if neg {
		return "-" + out
	}
	return out
}

// QuoteString renders s as a JSON string literal without HTML escaping.
func QuoteString(s string) string {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Stringify renders v as JSON. Keys keep insertion order, numbers use
// FormatNumber and functions become empty strings. With pretty set the
// output is indented by two spaces. Undefined renders as "".
func Stringify(v Value, pretty bool) (string, error) {
	if v == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := writeJSON(&sb, v, pretty, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeIndent(sb *strings.Builder, pretty bool, depth int) {
	if !pretty {
		return
	}
	sb.WriteByte('\n')
	for i := 0; i < depth; i++ {
		sb.WriteString("  ")
	}
}

func writeJSON(sb *strings.Builder, v Value, pretty bool, depth int) error {
	switch x := v.(type) {
	case nil, Null:
		sb.WriteString("null")
	case Bool:
		if x {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case Number:
		f := float64(x)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			sb.WriteString("null")
		} else {
			sb.WriteString(FormatNumber(f))
		}
	case String:
		sb.WriteString(QuoteString(string(x)))
	case *Array:
		if len(x.Items) == 0 {
			sb.WriteString("[]")
			return nil
		}
		sb.WriteByte('[')
		for i, it := range x.Items {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeIndent(sb, pretty, depth+1)
			if err := writeJSON(sb, it, pretty, depth+1); err != nil {
				return err
			}
		}
		writeIndent(sb, pretty, depth)
		sb.WriteByte(']')
	case *Object:
		if x.Len() == 0 {
			sb.WriteString("{}")
			return nil
		}
		sb.WriteByte('{')
		for i, k := range x.keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeIndent(sb, pretty, depth+1)
			sb.WriteString(QuoteString(k))
			sb.WriteByte(':')
			if pretty {
				sb.WriteByte(' ')
			}
			if err := writeJSON(sb, x.vals[k], pretty, depth+1); err != nil {
				return err
			}
		}
		writeIndent(sb, pretty, depth)
		sb.WriteByte('}')
	case Function:
		sb.WriteString(`""`)
	default:
		return fmt.Errorf("types: cannot stringify %T", v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a *Array) MarshalJSON() ([]byte, error) {
	s, err := Stringify(a, false)
	return []byte(s), err
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	s, err := Stringify(o, false)
	return []byte(s), err
}

// DecodeJSON parses a single JSON document, keeping object key order.
func DecodeJSON(data []byte) (Value, error) {
	d := NewDecoder(bytes.NewReader(data))
	v, err := d.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("types: empty JSON document")
		}
		return nil, err
	}
	if _, err := d.dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("types: trailing data after JSON document")
	}
	return v, nil
}

// Decoder reads consecutive JSON documents from a stream.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Decoder{dec: dec}
}

// Next decodes the next document. It returns io.EOF when the stream is
// exhausted.
func (d *Decoder) Next() (Value, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return nil, err
	}
	return d.fromToken(tok)
}

// token reads a token inside a document, where running out of input is an
// error rather than the end of the stream.
func (d *Decoder) token() (json.Token, error) {
	tok, err := d.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

func (d *Decoder) value() (Value, error) {
	tok, err := d.token()
	if err != nil {
		return nil, err
	}
	return d.fromToken(tok)
}

func (d *Decoder) fromToken(tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			arr := &Array{Items: []Value{}}
			for d.dec.More() {
				v, err := d.value()
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, v)
			}
			if _, err := d.token(); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			obj := NewObject(4)
			for d.dec.More() {
				kt, err := d.token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("types: object key is %T", kt)
				}
				v, err := d.value()
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := d.token(); err != nil {
				return nil, err
			}
			return obj, nil
		}
		return nil, fmt.Errorf("types: unexpected delimiter %q", rune(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return NullValue, nil
	}
	return nil, fmt.Errorf("types: unexpected JSON token %T", tok)
}

// FromGo converts a Go value into a Value. Maps are converted with sorted
// keys; structs and other types go through a JSON round trip.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return NullValue, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(x), nil
	case int:
		return Number(x), nil
	case int8:
		return Number(x), nil
	case int16:
		return Number(x), nil
	case int32:
		return Number(x), nil
	case int64:
		return Number(x), nil
	case uint:
		return Number(x), nil
	case uint8:
		return Number(x), nil
	case uint16:
		return Number(x), nil
	case uint32:
		return Number(x), nil
	case uint64:
		return Number(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case []any:
		arr := &Array{Items: make([]Value, 0, len(x))}
		for _, it := range x {
			cv, err := FromGo(it)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, cv)
		}
		return arr, nil
	case []string:
		arr := &Array{Items: make([]Value, len(x))}
		for i, s := range x {
			arr.Items[i] = String(s)
		}
		return arr, nil
	case []float64:
		arr := &Array{Items: make([]Value, len(x))}
		for i, f := range x {
			arr.Items[i] = Number(f)
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject(len(keys))
		for _, k := range keys {
			cv, err := FromGo(x[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, cv)
		}
		return obj, nil
	case []byte:
		return DecodeJSON(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("types: cannot convert %T: %w", v, err)
	}
	return DecodeJSON(data)
}

// ToGo converts a Value into plain Go data: nil, bool, float64, string,
// []any and map[string]any. Functions convert to nil.
func ToGo(v Value) any {
	switch x := v.(type) {
	case Bool:
		return bool(x)
	case Number:
		return float64(x)
	case String:
		return string(x)
	case *Array:
		out := make([]any, 0, len(x.Items))
		for _, it := range x.Items {
			if it != nil {
				out = append(out, ToGo(it))
			}
		}
		return out
	case *Object:
		out := make(map[string]any, x.Len())
		for _, k := range x.keys {
			out[k] = ToGo(x.vals[k])
		}
		return out
	}
	return nil
}
