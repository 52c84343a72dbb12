package toolchain

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// toolchainFile is the TOML schema of an optional toolchain file:
//
//	[toolchain]
//	linker = "lld"
//	stdlib = "libc++"
//	archiver = "/usr/bin/ar"
type toolchainFile struct {
	Toolchain struct {
		Linker   string `toml:"linker"`
		StdLib   string `toml:"stdlib"`
		Archiver string `toml:"archiver"`
	} `toml:"toolchain"`
}

func (tc *Toolchain) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read toolchain file: %w", err)
	}

	var file toolchainFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse toolchain file %s: %w", path, err)
	}

	switch file.Toolchain.Linker {
	case "", "default":
	case "gold":
		tc.Linker = LinkerGold
	case "lld":
		tc.Linker = LinkerLLD
	case "bfd":
		tc.Linker = LinkerBFD
	default:
		return fmt.Errorf("toolchain file %s: unknown linker %q", path, file.Toolchain.Linker)
	}

	switch file.Toolchain.StdLib {
	case "", "libstdc++":
	case "libc++":
		tc.StdLib = LibCXX
	default:
		return fmt.Errorf("toolchain file %s: unknown stdlib %q", path, file.Toolchain.StdLib)
	}

	tc.ArchiverPath = file.Toolchain.Archiver
	return nil
}
