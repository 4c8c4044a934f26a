// Package ingest turns an uploaded program into the two logic artifacts
// and persists them.
package ingest

import (
	"log/slog"
	"strings"

	"neolink-go/errcode"
	"neolink-go/services/store"
	"neolink-go/types"
)

// SplitSegments splits on the first Separator; later occurrences are
// dropped and the remaining pieces rejoined into the handler segment.
func SplitSegments(src string) (main, handlers string) {
	parts := strings.Split(src, Separator)
	return parts[0], strings.Join(parts[1:], "")
}

// TransformMain wraps seg into the generated routine. Each line is
// indented one level; each unconditional loop gets Yield as its first
// inner statement. An empty segment yields a routine whose body is pass.
func TransformMain(seg string) string {
	lines := splitLines(seg)
	var b strings.Builder
	b.WriteString(MainHeader)
	body := false
	for i, line := range lines {
		if line == "" || strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		body = body || isCode(line)
		m := loopHeader.FindStringSubmatch(line)
		if m == nil {
			b.WriteString(bodyIndent + line + "\n")
			continue
		}
		rest := strings.TrimSpace(m[2])
		if rest != "" && rest[0] != '#' {
			// while True: stmt -> header, yield, stmt
			inner := bodyIndent + m[1] + "    "
			b.WriteString(bodyIndent + m[1] + line[len(m[1]):len(line)-len(m[2])] + "\n")
			b.WriteString(inner + Yield + "\n")
			b.WriteString(inner + rest + "\n")
			continue
		}
		b.WriteString(bodyIndent + line + "\n")
		b.WriteString(bodyIndent + loopIndent(lines, i) + Yield + "\n")
	}
	if !body {
		b.WriteString(bodyIndent + "pass\n")
	}
	return b.String()
}

// loopIndent is the indentation of the first statement inside the loop at
// lines[i], or one level deeper than the header when the body is missing.
func loopIndent(lines []string, i int) string {
	hdr := indentOf(lines[i])
	for _, l := range lines[i+1:] {
		if !isCode(l) {
			continue
		}
		if in := indentOf(l); len(in) > len(hdr) {
			return in
		}
		break
	}
	return hdr + "    "
}

// UnwrapMain reverses TransformMain's wrapping for input without loops.
func UnwrapMain(artifact string) string {
	body := strings.TrimPrefix(artifact, MainHeader)
	var b strings.Builder
	for _, l := range splitLines(body) {
		b.WriteString(strings.TrimPrefix(l, bodyIndent) + "\n")
	}
	return b.String()
}

// TransformHandlers applies the handler rule table to every line of seg
// and prefixes the fixed imports.
func TransformHandlers(seg string) string {
	var b strings.Builder
	b.WriteString(HandlerPrefix)
	for _, line := range splitLines(seg) {
		b.WriteString(applyRules(handlerRules, line) + "\n")
	}
	return b.String()
}

// Transform produces both artifacts from an upload.
func Transform(src string) (main, handlers string) {
	m, h := SplitSegments(src)
	return TransformMain(m), TransformHandlers(h)
}

// Pipeline transforms uploads and writes the artifacts to their fixed
// locations. Each write replaces the whole file.
type Pipeline struct {
	store store.Store
	paths types.StorageConfig
	log   *slog.Logger
}

func NewPipeline(s store.Store, paths types.StorageConfig, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{store: s, paths: paths, log: log}
}

func (p *Pipeline) Ingest(src string) error {
	main, handlers := Transform(src)
	if err := p.store.WriteFile(p.paths.Main, []byte(main)); err != nil {
		return errcode.Wrap(errcode.StoreFailed, "write "+p.paths.Main, err)
	}
	if err := p.store.WriteFile(p.paths.Handlers, []byte(handlers)); err != nil {
		return errcode.Wrap(errcode.StoreFailed, "write "+p.paths.Handlers, err)
	}
	p.log.Info("artifacts written", "main_bytes", len(main), "handler_bytes", len(handlers))
	return nil
}
