// mbs [path], mbs build [path]
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mbs-build/mbs/internal/builder"
	"github.com/mbs-build/mbs/internal/configure"
	"github.com/mbs-build/mbs/internal/msg"
)

var (
	flagBuildType = NewEnumValue("debug", map[string]string{
		"debug":   "Build with -g -O0 and debugger support (default)",
		"release": "Build with -O3 -DNDEBUG",
	})
	flagStd            string
	flagSanitizer      string
	flagToolchainFile  string
	flagPkgConfigPaths []string
	flagBuildDir       string
	flagJobs           int
	flagDotGraph       bool
	flagGenerateOnly   bool
	flagVerbose        bool
)

func doBuild(cmd *cobra.Command, args []string) {
	msg.SetVerbose(flagVerbose)

	dir := "."
	var makeArgs []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		makeArgs = args[dash:]
		args = args[:dash]
	}
	if len(args) > 0 {
		dir = args[0]
	}

	buildType, err := configure.ParseBuildType(flagBuildType.Value())
	if err != nil {
		msg.Fatal("%v", err)
	}
	standard := configure.DefaultCXXStandard
	if flagStd != "" {
		if standard, err = configure.ParseCXXStandard(flagStd); err != nil {
			msg.Fatal("%v", err)
		}
	}
	var sanitizer configure.Sanitizer
	if flagSanitizer != "" {
		if sanitizer, err = configure.ParseSanitizer(flagSanitizer); err != nil {
			msg.Fatal("%v", err)
		}
	}

	opts := builder.Options{
		ManifestDir:    dir,
		BuildDirName:   flagBuildDir,
		BuildType:      buildType,
		Standard:       standard,
		Sanitizer:      sanitizer,
		ToolchainFile:  flagToolchainFile,
		PkgConfigPaths: flagPkgConfigPaths,
		DotGraph:       flagDotGraph,
		GenerateOnly:   flagGenerateOnly,
		Jobs:           flagJobs,
		MakeArgs:       makeArgs,
	}
	if err := builder.Run(opts); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mbs [target path]",
	Short: "Makefile generator for C++ projects",
	Long:  `Generates GNU Make build files for C++ projects described by mbs.toml manifests, then runs make on them.`,
	Args:  cobra.ArbitraryArgs,
	Run:   doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [target path] [-- make args]",
	Short: "Generate build files and build the project",
	Long:  `Generate build files and build the project. If no target path is given, uses "."`,
	Args:  cobra.ArbitraryArgs,
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)

	// mbs build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().VarP(&flagBuildType, "build-type", "t", "Build type, one of "+flagBuildType.HelpString())
	cmd.RegisterFlagCompletionFunc("build-type", flagBuildType.CompletionFunc())
	cmd.Flags().StringVar(&flagStd, "std", "", "C++ standard passed to the compiler (default c++20)")
	cmd.Flags().StringVar(&flagSanitizer, "sanitizer", "", "Enable a sanitizer (address, thread, leak, undefined)")
	cmd.Flags().StringVar(&flagToolchainFile, "toolchain-file", "", "Toolchain file selecting linker, stdlib and archiver")
	cmd.Flags().StringArrayVar(&flagPkgConfigPaths, "pkg-config-path", nil, "Additional pkg-config search path (repeatable)")
	cmd.Flags().StringVarP(&flagBuildDir, "build-directory", "b", "", "Build subdirectory name (default .build)")
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", runtime.NumCPU(), "Parallel jobs passed to make")
	cmd.Flags().BoolVar(&flagDotGraph, "dot-graph", false, "Write a Graphviz graph of the build targets and exit")
	cmd.Flags().BoolVarP(&flagGenerateOnly, "generate-only", "g", false, "Generate build files without running make")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
