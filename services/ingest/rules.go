package ingest

import (
	"regexp"
	"strings"
)

// Separator splits an upload into its main and handler segments.
const Separator = "#Event Handlers"

const (
	// MainHeader opens the generated main artifact. The import sits at
	// module level so the wrapped body is exactly the uploaded lines.
	MainHeader = "import uasyncio as asyncio\n\nasync def mainLoop():\n"
	// HandlerPrefix opens the generated handler artifact.
	HandlerPrefix = "import uasyncio as asyncio\nfrom machine import Pin\nimport neopixel\n"

	// Yield is the suspension statement inserted into unconditional loops.
	Yield = "await asyncio.sleep(0)"

	bodyIndent = "    "
)

// loopHeader matches an unconditional loop header. Group 1 is the
// indentation, group 2 anything after the colon.
var loopHeader = regexp.MustCompile(`^(\s*)while\s*\(?\s*(?:True|1)\s*\)?\s*:(.*)$`)

// rule is one line-level rewrite of the handler segment.
type rule struct {
	name    string
	re      *regexp.Regexp
	rewrite func(line string, loc []int) string
}

var handlerRules = []rule{
	{
		// def f(): -> async def f():
		name: "async-def",
		re:   regexp.MustCompile(`^(\s*)def\s`),
		rewrite: func(line string, loc []int) string {
			return line[loc[2]:loc[3]] + "async " + line[loc[3]:]
		},
	},
	{
		// time.sleep(x) -> await asyncio.sleep(x); sleep_ms likewise.
		name:    "await-sleep",
		re:      sleepCall,
		rewrite: awaitSleep,
	},
}

var sleepCall = regexp.MustCompile(`\btime\.sleep(_ms)?\b`)

// awaitSleep rewrites every blocking sleep on the line to the asyncio
// form, adding await unless the call is already awaited.
func awaitSleep(line string, _ []int) string {
	var b strings.Builder
	last := 0
	for _, m := range sleepCall.FindAllStringSubmatchIndex(line, -1) {
		b.WriteString(line[last:m[0]])
		if !strings.HasSuffix(strings.TrimRight(line[:m[0]], " "), "await") {
			b.WriteString("await ")
		}
		b.WriteString("asyncio.sleep")
		if m[2] >= 0 {
			b.WriteString(line[m[2]:m[3]])
		}
		last = m[1]
	}
	b.WriteString(line[last:])
	return b.String()
}

func applyRules(rules []rule, line string) string {
	for _, r := range rules {
		if loc := r.re.FindStringSubmatchIndex(line); loc != nil {
			line = r.rewrite(line, loc)
		}
	}
	return line
}

func indentOf(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// isCode reports whether a line holds a statement (not blank, not a comment).
func isCode(s string) bool {
	t := strings.TrimSpace(s)
	return t != "" && t[0] != '#'
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
