package mdv

import (
	"fmt"
	"path"
	"strings"
)

// ComponentName derives the registered component name from a component file path:
// `../ui/fancy-title.vue` -> `FancyTitle`, `docs/intro.v.md` -> `Intro`
func ComponentName(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	base = strings.TrimSuffix(base, ".vue")
	base = strings.TrimSuffix(base, ".v.md")
	return pascalCase(base)
}

// pascalCase drops every non alphanumeric run and upper-cases the first letter of each word
func pascalCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})

	var b strings.Builder
	for _, w := range words {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

// GlobalComponentsModule renders a type declaration module registering compiled documents as
// global components. Document paths are imported from their compiled `.vue` counterparts.
func GlobalComponentsModule(paths []string) string {
	var b strings.Builder
	b.WriteString("import type { DefineComponent } from 'vue'\n")

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		name := ComponentName(p)
		names = append(names, name)
		target := p
		if strings.HasSuffix(target, ".v.md") {
			target = strings.TrimSuffix(target, ".v.md") + ".vue"
		}
		fmt.Fprintf(&b, "import %s from '%s'\n", name, target)
	}

	b.WriteString("\ndeclare module '@vue/runtime-core' {\n")
	b.WriteString("  interface GlobalComponents {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "    %s: typeof %s\n", name, name)
	}
	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}
