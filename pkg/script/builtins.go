package script

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

var backrefPattern = regexp.MustCompile(`\\(\d+)`)

func compilePattern(fnName, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnName, err)
	}

	return re, nil
}

func groups(match []string) starlark.Value {
	if match == nil {
		return starlark.None
	}

	items := make(starlark.Tuple, 0, len(match))
	for _, group := range match {
		items = append(items, starlark.String(group))
	}

	return items
}

// reModule exposes Go regular expressions. match and search return a tuple of
// the whole match followed by its groups, or None.
func reModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "re",
		Members: starlark.StringDict{
			"match":   starlark.NewBuiltin("re.match", reMatch),
			"search":  starlark.NewBuiltin("re.search", reSearch),
			"findall": starlark.NewBuiltin("re.findall", reFindAll),
			"sub":     starlark.NewBuiltin("re.sub", reSub),
			"split":   starlark.NewBuiltin("re.split", reSplit),
		},
	}
}

func reMatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, err
	}

	re, err := compilePattern(b.Name(), `\A(?:`+pattern+`)`)
	if err != nil {
		return nil, err
	}

	return groups(re.FindStringSubmatch(s)), nil
}

func reSearch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, err
	}

	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}

	return groups(re.FindStringSubmatch(s)), nil
}

// reFindAll returns the matched strings, the single group when the pattern has
// one, or a tuple of groups otherwise.
func reFindAll(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s); err != nil {
		return nil, err
	}

	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}

	matches := re.FindAllStringSubmatch(s, -1)
	items := make([]starlark.Value, 0, len(matches))

	for _, match := range matches {
		switch len(match) {
		case 1:
			items = append(items, starlark.String(match[0]))
		case 2:
			items = append(items, starlark.String(match[1]))
		default:
			items = append(items, groups(match[1:]))
		}
	}

	return starlark.NewList(items), nil
}

func reSub(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, repl, s string

	count := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "repl", &repl, "string", &s, "count?", &count); err != nil {
		return nil, err
	}

	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}

	template := backrefPattern.ReplaceAllString(strings.ReplaceAll(repl, "$", "$$"), "$${$1}")

	if count <= 0 {
		return starlark.String(re.ReplaceAllString(s, template)), nil
	}

	replaced := 0
	result := re.ReplaceAllStringFunc(s, func(match string) string {
		if replaced >= count {
			return match
		}

		replaced++

		return re.ReplaceAllString(match, template)
	})

	return starlark.String(result), nil
}

func reSplit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string

	maxSplit := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s, "maxsplit?", &maxSplit); err != nil {
		return nil, err
	}

	re, err := compilePattern(b.Name(), pattern)
	if err != nil {
		return nil, err
	}

	n := -1
	if maxSplit > 0 {
		n = maxSplit + 1
	}

	parts := re.Split(s, n)
	items := make([]starlark.Value, 0, len(parts))

	for _, part := range parts {
		items = append(items, starlark.String(part))
	}

	return starlark.NewList(items), nil
}

func pathModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "path",
		Members: starlark.StringDict{
			"join":     starlark.NewBuiltin("path.join", pathJoin),
			"basename": starlark.NewBuiltin("path.basename", pathUnary(path.Base)),
			"dirname":  starlark.NewBuiltin("path.dirname", pathUnary(path.Dir)),
			"splitext": starlark.NewBuiltin("path.splitext", pathSplitExt),
		},
	}
}

func pathJoin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}

	parts := make([]string, 0, len(args))

	for i, arg := range args {
		part, ok := starlark.AsString(arg)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is not a string", b.Name(), i+1)
		}

		parts = append(parts, part)
	}

	return starlark.String(path.Join(parts...)), nil
}

func pathUnary(fn func(string) string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var p string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &p); err != nil {
			return nil, err
		}

		return starlark.String(fn(p)), nil
	}
}

func pathSplitExt(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &p); err != nil {
		return nil, err
	}

	ext := path.Ext(p)

	return starlark.Tuple{starlark.String(strings.TrimSuffix(p, ext)), starlark.String(ext)}, nil
}

// osModule only reads variables named in allowed; anything else yields the default.
func osModule(allowed map[string]struct{}) *starlarkstruct.Module {
	getenv := func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string

		var fallback starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &name, "default?", &fallback); err != nil {
			return nil, err
		}

		if _, ok := allowed[name]; !ok {
			return fallback, nil
		}

		value, ok := os.LookupEnv(name)
		if !ok {
			return fallback, nil
		}

		return starlark.String(value), nil
	}

	return &starlarkstruct.Module{
		Name: "os",
		Members: starlark.StringDict{
			"getenv": starlark.NewBuiltin("os.getenv", getenv),
			"sep":    starlark.String("/"),
		},
	}
}
