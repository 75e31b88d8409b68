package theme

import (
	"fmt"
	"strings"
)

// Source renders the compiler entry point for the theme. Framework and preset
// files are imported by path; the compiler is expected to resolve them from
// its include paths.
//
// Layer defaults are emitted latest first so that, with !default semantics,
// the most recently added value wins.
func Source(t *Theme) []byte {
	return render(t, nil, false)
}

// PartialSource renders an entry that sees the theme's functions, variables
// and mixins but emits only rules. The framework's own rules, the preset's
// and the layers' are left out, so the output holds just the given rules
// compiled against the theme.
func PartialSource(t *Theme, rules []string) []byte {
	return render(t, rules, true)
}

func render(t *Theme, partialRules []string, partial bool) []byte {
	var b strings.Builder
	fw := "bs" + t.version

	fmt.Fprintf(&b, "@import \"%s/functions\";\n", fw)
	for _, l := range t.layers {
		for _, fn := range l.Functions {
			b.WriteString(fn)
			b.WriteString("\n")
		}
	}

	for i := len(t.layers) - 1; i >= 0; i-- {
		for _, v := range t.layers[i].Defaults {
			fmt.Fprintf(&b, "$%s: %s !default;\n", strings.TrimPrefix(v.Name, "$"), v.Value)
		}
	}

	if t.preset != "" {
		fmt.Fprintf(&b, "@import \"presets/%s/%s/defaults\";\n", fw, t.preset)
	}
	fmt.Fprintf(&b, "@import \"%s/defaults\";\n", fw)
	fmt.Fprintf(&b, "@import \"%s/mixins\";\n", fw)

	for _, l := range t.layers {
		for _, m := range l.Mixins {
			b.WriteString(m)
			b.WriteString("\n")
		}
	}

	if partial {
		for _, r := range partialRules {
			b.WriteString(r)
			b.WriteString("\n")
		}
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "@import \"%s/rules\";\n", fw)
	if t.preset != "" {
		fmt.Fprintf(&b, "@import \"presets/%s/%s/rules\";\n", fw, t.preset)
	}

	for _, l := range t.layers {
		for _, r := range l.Rules {
			b.WriteString(r)
			b.WriteString("\n")
		}
	}

	return []byte(b.String())
}
