package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Daemon  *DaemonCommand
	Report  *ReportCommand
	Export  *ExportCommand
	Add     *AddCommand
	Prune   *PruneCommand
	Options *OptionsCommand
	Status  *StatusCommand
	Purge   *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "taskheatmap"
	parser.LongDescription = "Local time accounting for browser activity: per-domain active and idle time, trends and streaks."

	cmds := &commands{
		Daemon:  &DaemonCommand{globals: &globals, version: version},
		Report:  &ReportCommand{globals: &globals, version: version},
		Export:  &ExportCommand{globals: &globals, version: version},
		Add:     &AddCommand{globals: &globals, version: version},
		Prune:   &PruneCommand{globals: &globals, version: version},
		Options: &OptionsCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Purge:   &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("daemon", "Start the taskheatmap daemon", "Run the tracker and the local HTTP bridge the browser extension reports to.", cmds.Daemon)
	parser.AddCommand("report", "Show totals, trend, streak and top domains", "Show totals, the trend against the previous window, the streak and the top domains.", cmds.Report)
	parser.AddCommand("export", "Export per-domain time as CSV or JSON", "Export one row per domain (and the idle bucket) for a window.", cmds.Export)
	parser.AddCommand("add", "Manually record time", "Manually record time against a domain or the idle bucket.", cmds.Add)
	parser.AddCommand("prune", "Apply retention pruning", "Remove days that fall outside the retention window.", cmds.Prune)
	parser.AddCommand("options", "Show or change tracking options", "Show or change the checkpoint interval and the daily summary.", cmds.Options)
	parser.AddCommand("status", "Show daemon and storage health", "Show daemon health, storage statistics, and configuration summary.", cmds.Status)
	parser.AddCommand("purge", "Delete ALL tracked data", "Delete ALL tracked data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("taskheatmap %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
