package datapoint

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var jsonNull = []byte("null")

// Text is a string field that older archives sometimes stored as a
// number or boolean. Non-string scalars keep their literal spelling.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, jsonNull):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// Number is a nullable float. Numeric strings are accepted on read;
// null, empty strings and anything unparseable read as absent.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a present Number
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// NumFloat converts an optional float
func NumFloat(v *float64) Number {
	if v == nil {
		return Number{}
	}
	return Num(*v)
}

// NumInt converts an optional int
func NumInt(v *int) Number {
	if v == nil {
		return Number{}
	}
	return Num(float64(*v))
}

// Float returns the value and whether it is present
func (n Number) Float() (float64, bool) {
	return n.Value, n.Valid
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return jsonNull, nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, jsonNull) || bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("false")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		if v, err := cast.ToFloat64E(s); err == nil {
			*n = Num(v)
		}
		return nil
	}
	if v, err := strconv.ParseFloat(string(b), 64); err == nil {
		*n = Num(v)
	}
	return nil
}

// Flag is a boolean that also reads "True"/"False" strings, 0/1 and null
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := cast.ToBoolE(v)
	if err != nil {
		parsed = false
	}
	*f = Flag(parsed)
	return nil
}
