package howlhouse

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamType selects one of the closed set of argument converters.
type ParamType int

const (
	// ParamString passes the raw token through.
	ParamString ParamType = iota
	// ParamInt parses a base-10 integer.
	ParamInt
	// ParamFloat parses a float.
	ParamFloat
	// ParamBool parses a boolean ("true", "1", "false", ...).
	ParamBool
	// ParamUser resolves the token against the current room's members:
	// ID first, then username, then display name.
	ParamUser
)

// Param declares one command parameter.
type Param struct {
	Name       string
	Type       ParamType
	Default    string // raw default token, converted like user input
	HasDefault bool
	// Rest captures all remaining tokens joined by spaces; only
	// meaningful on the last parameter.
	Rest bool
}

// Arg is one converted argument. Type says which field is set; Str is
// always the raw token.
type Arg struct {
	Type  ParamType
	Str   string
	Int   int64
	Float float64
	Bool  bool
	User  *User
}

// convertArgs resolves raw tokens against the declared parameter
// specs. Missing tokens take the declared default or fail with
// ErrNotEnoughArguments.
func (c *Client) convertArgs(def *Command, tokens []string) ([]Arg, error) {
	args := make([]Arg, 0, len(def.Params))
	for i, p := range def.Params {
		var raw string
		usedDefault := false
		switch {
		case i < len(tokens) && p.Rest:
			raw = strings.Join(tokens[i:], " ")
		case i < len(tokens):
			raw = tokens[i]
		case p.HasDefault:
			raw = p.Default
			usedDefault = true
		default:
			return nil, fmt.Errorf("%w: missing parameter %q", ErrNotEnoughArguments, p.Name)
		}

		arg, err := c.convertArg(p, strings.TrimSpace(raw), usedDefault)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func (c *Client) convertArg(p Param, raw string, usedDefault bool) (Arg, error) {
	arg := Arg{Type: p.Type, Str: raw}

	switch p.Type {
	case ParamString:
		return arg, nil

	case ParamInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Arg{}, fmt.Errorf("%w: parameter %q wants an integer, got %q", ErrNotEnoughArguments, p.Name, raw)
		}
		arg.Int = n
		return arg, nil

	case ParamFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Arg{}, fmt.Errorf("%w: parameter %q wants a number, got %q", ErrNotEnoughArguments, p.Name, raw)
		}
		arg.Float = f
		return arg, nil

	case ParamBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Arg{}, fmt.Errorf("%w: parameter %q wants a boolean, got %q", ErrNotEnoughArguments, p.Name, raw)
		}
		arg.Bool = b
		return arg, nil

	case ParamUser:
		if u, ok := c.cache.lookupMember(raw); ok {
			arg.User = &u
			return arg, nil
		}
		if usedDefault {
			// A declared default that matches no member stays a plain
			// token rather than failing the whole invocation.
			return arg, nil
		}
		return Arg{}, fmt.Errorf("%w: parameter %q matched no member for %q", ErrMemberNotFound, p.Name, raw)

	default:
		return Arg{}, fmt.Errorf("unknown parameter type %d for %q", p.Type, p.Name)
	}
}

// userMatches reports whether a user record answers the given argument
// by ID, username, or display name.
func userMatches(u User, argument string) bool {
	arg := strings.ToLower(strings.TrimPrefix(argument, "@"))
	return strings.ToLower(u.ID) == arg ||
		strings.ToLower(u.Username) == arg ||
		strings.ToLower(u.DisplayName) == arg
}
