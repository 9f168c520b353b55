package extractor

import (
	"regexp"
	"strings"
)

const jsIdentifier = `[\p{L}\p{N}_$]+`

var (
	// Alternatives in precedence order: function declaration, const arrow
	// function, bare call shape followed by a block.
	curlyFunctionRe = regexp.MustCompile(
		`\bfunction\s+(` + jsIdentifier + `)\s*\(` +
			`|\bconst\s+(` + jsIdentifier + `)\s*=\s*\([^)]*\)\s*=>` +
			`|(` + jsIdentifier + `)\s*\([^)]*\)\s*\{`)
	curlyClassRe = regexp.MustCompile(`\bclass\s+(` + jsIdentifier + `)`)
)

// Names the block-call shape picks up that are statements, not functions.
var curlyKeywords = map[string]bool{
	"if":       true,
	"for":      true,
	"while":    true,
	"switch":   true,
	"catch":    true,
	"function": true,
	"return":   true,
}

// Curly returns the strategy for C-family and JavaScript-like sources.
func Curly() Strategy {
	return StrategyFunc{ID: "curly", Fn: extractCurly}
}

func extractCurly(content string) Partial {
	return Partial{
		Functions: curlyFunctions(content),
		Classes:   scanClasses(curlyClassRe, content),
		Imports:   curlyImports(content),
	}
}

func curlyFunctions(content string) []FunctionInfo {
	var out []FunctionInfo
	for _, m := range curlyFunctionRe.FindAllStringSubmatch(content, -1) {
		var name string
		switch {
		case m[1] != "":
			name = m[1]
		case m[2] != "":
			name = m[2]
		case m[3] != "" && !curlyKeywords[m[3]]:
			name = m[3]
		}
		if name == "" {
			continue
		}
		out = append(out, FunctionInfo{Name: name, Parameters: []string{}})
	}
	return out
}

// curlyImports matches anywhere in the line, which also catches dynamic
// imports and CommonJS requires at the cost of some false positives.
func curlyImports(content string) []string {
	var out []string
	for _, line := range splitLines(content) {
		if strings.Contains(line, "import") || strings.Contains(line, "require(") {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}
