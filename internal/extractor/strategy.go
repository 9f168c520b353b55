package extractor

// Strategy extracts the language-specific part of a record from file content.
// Implementations must be pure: no I/O and no shared mutable state.
type Strategy interface {
	Name() string
	Extract(content string) Partial
}

// StrategyFunc adapts a plain function to the Strategy interface.
type StrategyFunc struct {
	ID string
	Fn func(content string) Partial
}

func (s StrategyFunc) Name() string                   { return s.ID }
func (s StrategyFunc) Extract(content string) Partial { return s.Fn(content) }

// Table maps language tags to strategies. Lookup is total: any tag without
// an entry resolves to the fallback.
type Table struct {
	byLang   map[Language]Strategy
	fallback Strategy
}

// NewTable builds an immutable dispatch table. A nil fallback is replaced by
// the generic strategy.
func NewTable(entries map[Language]Strategy, fallback Strategy) *Table {
	if fallback == nil {
		fallback = Generic()
	}
	t := &Table{
		byLang:   make(map[Language]Strategy, len(entries)),
		fallback: fallback,
	}
	for lang, s := range entries {
		if s != nil {
			t.byLang[lang] = s
		}
	}
	return t
}

// DefaultTable routes python to the Python strategy, javascript and
// typescript to the curly-brace strategy and everything else to the generic
// fallback.
func DefaultTable() *Table {
	curly := Curly()
	return NewTable(map[Language]Strategy{
		LangPython:     Python(),
		LangJavaScript: curly,
		LangTypeScript: curly,
	}, Generic())
}

// Lookup returns the strategy for lang and whether it is a dedicated one.
func (t *Table) Lookup(lang Language) (Strategy, bool) {
	if s, ok := t.byLang[lang]; ok {
		return s, true
	}
	return t.fallback, false
}

// Fallback returns the strategy used for languages without an entry.
func (t *Table) Fallback() Strategy {
	return t.fallback
}

// Languages reports the tags that have a dedicated strategy.
func (t *Table) Languages() []Language {
	out := make([]Language, 0, len(t.byLang))
	for lang := range t.byLang {
		out = append(out, lang)
	}
	return out
}
