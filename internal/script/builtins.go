package script

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Predeclared returns the builtins available to every snippet:
// money(n) formats a number with two decimals and thousands separators,
// date(s) trims an ISO-8601 timestamp to its date part,
// coalesce(a, b, ...) returns the first argument that is not None or "".
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"money":    starlark.NewBuiltin("money", money),
		"date":     starlark.NewBuiltin("date", date),
		"coalesce": starlark.NewBuiltin("coalesce", coalesce),
	}
}

func money(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	if v == starlark.None {
		return starlark.String(""), nil
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		if s, isStr := v.(starlark.String); isStr {
			return s, nil
		}
		return nil, fmt.Errorf("%s: want number, got %s", fn.Name(), v.Type())
	}
	return starlark.String(printer.Sprintf("%.2f", f)), nil
}

func date(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	s, ok := v.(starlark.String)
	if !ok {
		return starlark.String(""), nil
	}
	str := string(s)
	if i := strings.IndexAny(str, "T "); i == 10 {
		str = str[:10]
	}
	return starlark.String(str), nil
}

func coalesce(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	for _, a := range args {
		if a == starlark.None {
			continue
		}
		if s, ok := a.(starlark.String); ok && s == "" {
			continue
		}
		return a, nil
	}
	return starlark.None, nil
}
