package engine

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sorengranfeldt/mre/internal/core"
)

var (
	lower = cases.Lower(language.Und)
	upper = cases.Upper(language.Und)
)

// Normalization are the string adjustments of a copy flow,
// applied as lowercase, uppercase, trim, prefix.
type Normalization struct {
	Lowercase bool
	Uppercase bool
	Trim      bool
	Prefix    string
}

func normalizationOf(f *core.Flow) Normalization {
	return Normalization{
		Lowercase: f.Lowercase,
		Uppercase: f.Uppercase,
		Trim:      f.Trim,
		Prefix:    f.Prefix,
	}
}

func (n Normalization) Apply(s string) string {
	if n.Lowercase {
		s = lower.String(s)
	}
	if n.Uppercase {
		s = upper.String(s)
	}
	if n.Trim {
		s = strings.TrimSpace(s)
	}
	return n.Prefix + s
}

// Coerce converts v to the target type. toDN marks a name target, which is
// always a string and never accepts a boolean.
func Coerce(v core.Value, to core.AttrType, toDN bool, n Normalization) (core.Value, error) {
	if toDN {
		to = core.TypeString
	}
	fail := func(err error) (core.Value, error) {
		return core.Value{}, core.ConversionError{From: v.Type, To: to, Value: v.Text(), Err: err}
	}

	switch v.Type {
	case core.TypeString:
		switch to {
		case core.TypeString:
			return core.Str(n.Apply(v.Str)), nil
		case core.TypeInteger:
			i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
			if err != nil {
				return fail(err)
			}
			return core.Int(i), nil
		case core.TypeBinary:
			return core.Bin([]byte(v.Str)), nil
		case core.TypeBoolean:
			switch s := strings.TrimSpace(v.Str); {
			case strings.EqualFold(s, "true") || s == "1":
				return core.Bool(true), nil
			case strings.EqualFold(s, "false") || s == "0":
				return core.Bool(false), nil
			}
			return fail(nil)
		}

	case core.TypeInteger:
		switch to {
		case core.TypeInteger:
			return v, nil
		case core.TypeString:
			return core.Str(strconv.FormatInt(v.Int, 10)), nil
		case core.TypeBoolean:
			switch v.Int {
			case 0:
				return core.Bool(false), nil
			case 1:
				return core.Bool(true), nil
			}
			return fail(nil)
		}

	case core.TypeBinary:
		switch to {
		case core.TypeBinary:
			return v, nil
		case core.TypeString:
			return core.Str(v.Text()), nil
		}

	case core.TypeBoolean:
		if toDN {
			return fail(nil)
		}
		switch to {
		case core.TypeBoolean:
			return v, nil
		case core.TypeInteger:
			if v.Bool {
				return core.Int(1), nil
			}
			return core.Int(0), nil
		case core.TypeString:
			return core.Str(n.Apply(v.Text())), nil
		}

	case core.TypeReference:
		if to == core.TypeReference && !toDN {
			return v, nil
		}
	}

	return fail(nil)
}
