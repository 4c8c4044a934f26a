package config

import (
	"embed"
	"strings"
)

// Board profiles, keyed by file name without extension.
//
//go:embed boards/*.jsonc
var boards embed.FS

var embeddedConfigs = func() map[string][]byte {
	m := map[string][]byte{}
	entries, _ := boards.ReadDir("boards")
	for _, e := range entries {
		b, err := boards.ReadFile("boards/" + e.Name())
		if err != nil {
			continue
		}
		m[strings.TrimSuffix(e.Name(), ".jsonc")] = b
	}
	return m
}()

// Default is the profile used when none is named.
const Default = "magicbit"
