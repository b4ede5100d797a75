package instrument

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedArgs is returned when an input log entry is not a tuple.
var ErrMalformedArgs = errors.New("malformed argument tuple")

// Codec turns call arguments and results into the text kept in the logs.
type Codec interface {
	EncodeArgs(in any) (string, error)
	DecodeArgs(text string) ([]any, error)
	EncodeResult(out any) (string, error)
}

// TupleCodec writes arguments as a parenthesised tuple of JSON values:
// "()", "(1,)", `("a", 2)`, "(NaN,)". Results are written as their JSON form,
// except strings and byte slices which are stored verbatim.
type TupleCodec struct{}

// EncodeArgs renders in as a tuple. An Args value spreads into its elements.
func (TupleCodec) EncodeArgs(in any) (string, error) {
	args, ok := in.(Args)
	if !ok {
		args = Args{in}
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		part, err := encodeArg(arg)
		if err != nil {
			return "", fmt.Errorf("encode argument %d: %w", i, err)
		}
		parts[i] = part
	}

	switch len(parts) {
	case 0:
		return "()", nil
	case 1:
		return "(" + parts[0] + ",)", nil
	default:
		return "(" + strings.Join(parts, ", ") + ")", nil
	}
}

// encodeArg writes one tuple element. Byte slices are written as the string
// they hold, non-finite floats as the bare tokens NaN, +Inf and -Inf.
func encodeArg(arg any) (string, error) {
	switch v := arg.(type) {
	case []byte:
		arg = string(v)
	case float32:
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 32), nil
		}
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		}
	}

	b, err := json.Marshal(arg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeArgs parses a tuple written by EncodeArgs. Numbers come back as
// json.Number so integers survive unchanged; NaN and ±Inf come back as float64.
func (TupleCodec) DecodeArgs(text string) ([]any, error) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '(' || text[len(text)-1] != ')' {
		return nil, fmt.Errorf("%w: %q", ErrMalformedArgs, text)
	}

	inner := strings.TrimSpace(text[1 : len(text)-1])
	inner = strings.TrimSuffix(inner, ",")
	if strings.TrimSpace(inner) == "" {
		return []any{}, nil
	}

	elems, err := splitTuple(inner)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(elems))
	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		switch elem {
		case "":
			return nil, fmt.Errorf("%w: empty element in %q", ErrMalformedArgs, text)
		case "NaN", "+Inf", "-Inf":
			f, _ := strconv.ParseFloat(elem, 64)
			args = append(args, f)
			continue
		}

		dec := json.NewDecoder(strings.NewReader(elem))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArgs, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("%w: trailing data in %q", ErrMalformedArgs, elem)
		}
		args = append(args, v)
	}
	return args, nil
}

// splitTuple cuts a tuple body at top-level commas. Commas inside strings,
// arrays and objects do not split.
func splitTuple(inner string) ([]string, error) {
	var (
		elems    []string
		depth    int
		inString bool
		escaped  bool
		start    int
	)

	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced %q", ErrMalformedArgs, c)
			}
		case ',':
			if depth == 0 {
				elems = append(elems, inner[start:i])
				start = i + 1
			}
		}
	}

	if inString || depth != 0 {
		return nil, fmt.Errorf("%w: unterminated element", ErrMalformedArgs)
	}
	return append(elems, inner[start:]), nil
}

// EncodeResult renders a call result.
func (TupleCodec) EncodeResult(out any) (string, error) {
	switch v := out.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case float32, float64:
		if part, err := encodeArg(v); err == nil {
			return part, nil
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
