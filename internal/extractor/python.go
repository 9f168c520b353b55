package extractor

import (
	"regexp"
	"strings"
)

const identifier = `[\p{L}\p{N}_]+`

var (
	pyFunctionRe = regexp.MustCompile(`\bdef\s+(` + identifier + `)\(([^)]*)\)`)
	pyClassRe    = regexp.MustCompile(`\bclass\s+(` + identifier + `)`)
)

// Python returns the strategy for Python-like sources.
func Python() Strategy {
	return StrategyFunc{ID: "python", Fn: extractPython}
}

func extractPython(content string) Partial {
	return Partial{
		Functions: pythonFunctions(content),
		Classes:   scanClasses(pyClassRe, content),
		Imports:   pythonImports(content),
	}
}

func pythonFunctions(content string) []FunctionInfo {
	var out []FunctionInfo
	for _, m := range pyFunctionRe.FindAllStringSubmatch(content, -1) {
		params := []string{}
		if m[2] != "" {
			params = strings.Split(m[2], ",")
		}
		out = append(out, FunctionInfo{Name: m[1], Parameters: params})
	}
	return out
}

// pythonImports keeps single-line import statements. Continuation lines of
// parenthesised imports are evaluated on their own and usually dropped.
func pythonImports(content string) []string {
	var out []string
	for _, line := range splitLines(content) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "from ") {
			out = append(out, line)
		}
	}
	return out
}

func scanClasses(re *regexp.Regexp, content string) []ClassInfo {
	var out []ClassInfo
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		out = append(out, ClassInfo{Name: m[1]})
	}
	return out
}
