// mbs init [name]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mbs-build/mbs/internal/manifest"
	"github.com/mbs-build/mbs/internal/msg"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "mbs"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// initIn scaffolds a project in an existing directory
func initIn(dir, name string, lib bool) {
	if lib {
		writefile(`[library.`+name+`]
sources = ["src/**.cpp", "src/**.cc"]
lib_type = "static"
`, dir, manifest.FileName)
	} else {
		writefile(`[executable.`+name+`]
sources = ["src/**.cpp", "src/**.cc"]
`, dir, manifest.FileName)
	}

	mkdir(dir, "src")

	if lib {
		writefile(`#include "hello.h"

#include <iostream>

void hello()
{
    std::cout << "Hello, World!\n";
}
`, dir, "src", "hello.cpp")

		writefile(`#ifndef HELLO_H
#define HELLO_H

void hello();

#endif
`, dir, "src", "hello.h")
	} else {
		writefile(`#include <iostream>

int main()
{
    std::cout << "Hello, World!\n";
    return 0;
}
`, dir, "src", "main.cpp")
	}

	writefile(`.build/
`, dir, ".gitignore")

	programName := getProgramName()
	fmt.Printf("You can now do %s to generate and build.\n", color.HiCyanString(programName+" "+dir))
}

var library bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library)
	},
}

func init() {
	// mbs init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library target")

	// mbs new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library target")
}
