//go:build !baremetal

package config

import (
	"os"

	"neolink-go/types"
)

// LoadFile overlays the file at path onto cfg.
func LoadFile(cfg *types.BoardConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Overlay(cfg, path, data)
}
