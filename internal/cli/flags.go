package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// DaemonCommand: run the tracker and the local bridge.
type DaemonCommand struct {
	Host     string `long:"host" description:"Override bridge host"`
	Port     int    `long:"port" description:"Override bridge port"`
	LogLevel string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
	sess    *session // injectable for testing; nil means build from globals
}

// ReportCommand: totals, trend, streak and top domains for a window.
type ReportCommand struct {
	Timeframe string `long:"timeframe" description:"Window length" choice:"day" choice:"week" choice:"month" default:"day"`
	Filter    string `long:"filter" description:"Activity filter" choice:"active" choice:"idle" choice:"all" default:"all"`
	Date      string `long:"date" description:"Last day of the window, YYYY-MM-DD (default today, UTC)"`
	Top       int    `long:"top" description:"Number of top domains to show" default:"5"`
	Rollup    bool   `long:"rollup" description:"Merge subdomains into their registrable domain"`

	globals *GlobalFlags
	version string
	sess    *session
}

// ExportCommand: write per-domain rows for a window as CSV or JSON.
type ExportCommand struct {
	Format    string `long:"format" description:"Output format" choice:"csv" choice:"json" default:"csv"`
	Output    string `long:"output" short:"o" description:"Write to file instead of stdout"`
	Timeframe string `long:"timeframe" description:"Window length" choice:"day" choice:"week" choice:"month" default:"week"`
	Filter    string `long:"filter" description:"Activity filter" choice:"active" choice:"idle" choice:"all" default:"all"`
	Date      string `long:"date" description:"Last day of the window, YYYY-MM-DD (default today, UTC)"`

	globals *GlobalFlags
	version string
	sess    *session
}

// AddCommand: manually record time against a domain or the idle bucket.
type AddCommand struct {
	Domain   string `long:"domain" description:"Domain or URL to credit"`
	Idle     bool   `long:"idle-bucket" description:"Credit the idle bucket instead of a domain"`
	Duration string `long:"duration" description:"Time to add (e.g., 25m, 2h) (required)"`
	Activity string `long:"activity" description:"Activity type" choice:"active" choice:"idle"`
	At       string `long:"at" description:"When the time was spent, YYYY-MM-DD or RFC3339 (default now)"`

	globals *GlobalFlags
	version string
	sess    *session
}

// PruneCommand: drop days outside the retention window.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d, 2w)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
	sess    *session
}

// OptionsCommand: show or change the persisted tracking options.
type OptionsCommand struct {
	Interval     int    `long:"interval" description:"Checkpoint interval in minutes"`
	DailySummary string `long:"daily-summary" description:"Enable or disable the daily summary" choice:"on" choice:"off"`
	SummaryHour  int    `long:"summary-hour" description:"Local hour (0-23) of the daily summary" default:"-1"`

	globals *GlobalFlags
	version string
	sess    *session
}

// StatusCommand: show daemon health, storage stats and config summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	sess    *session
}

// PurgeCommand: delete ALL tracked data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	sess    *session
}
