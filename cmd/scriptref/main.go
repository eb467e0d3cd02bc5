package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/scriptref/internal/config"
	"github.com/standardbeagle/scriptref/internal/debug"
	"github.com/standardbeagle/scriptref/internal/version"
)

// loadConfig loads configuration and applies CLI flag overrides
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(c.String("root"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = config.DeduplicatePatterns(append(cfg.Exclude, excludeFlags...))
	}
	if c.IsSet("workers") {
		cfg.Performance.ParallelFileWorkers = c.Int("workers")
	}
	// One-shot commands index once; watch and mcp turn watching back on
	cfg.Index.WatchMode = false

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:                   "scriptref",
		Usage:                  "Find the Unity prefabs and scenes that use a MonoBehaviour script",
		Version:                version.FullInfo(),
		UseShortOptionHandling: true,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Unity project root (default: current directory)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file (.kdl or .toml)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Additional exclude globs, relative to the root",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel document scanners (0 = NumCPU-1)",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Write debug logs to a file under the temp dir",
				EnvVars: []string{"SCRIPTREF_DEBUG"},
			},
		},
		Before: func(c *cli.Context) error {
			if !c.Bool("debug") {
				return nil
			}
			path, err := debug.OpenLogFile("")
			if err != nil {
				return err
			}
			debug.Enable(true)
			fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", path)
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.Close()
		},
		Commands: []*cli.Command{
			{
				Name:      "find",
				Usage:     "List the documents that use a C# script",
				ArgsUsage: "<file.cs>",
				Flags:     outputFlags(),
				Action:    findCommand,
			},
			{
				Name:      "guid",
				Usage:     "List the documents that reference a script guid",
				ArgsUsage: "<guid>",
				Flags:     outputFlags(),
				Action:    guidCommand,
			},
			{
				Name:      "refs",
				Usage:     "List the script guids a prefab or scene references",
				ArgsUsage: "<document>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: refsCommand,
			},
			{
				Name:  "status",
				Usage: "Index the project and print statistics",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "verify", Usage: "Check that the forward and reverse relations agree"},
				},
				Action: statusCommand,
			},
			{
				Name:  "watch",
				Usage: "Index the project and keep it current until interrupted",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "debounce", Usage: "Coalesce events per path for this many ms", Value: config.DefaultWatchDebounceMs},
				},
				Action: watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the index as MCP tools over stdio",
				Action: mcpCommand,
			},
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
		&cli.BoolFlag{Name: "name-only", Aliases: []string{"n"}, Usage: "Print only document names without extension"},
	}
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
