package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/maa-copilot-filter/internal/fetcher"
	"github.com/bnema/maa-copilot-filter/internal/filter"
	"github.com/bnema/maa-copilot-filter/internal/logger"
	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/roster"
	"github.com/bnema/maa-copilot-filter/internal/state"
	"github.com/bnema/maa-copilot-filter/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     models.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "maa-copilot-filter",
	Short: "Hide copilot jobs your operator roster cannot run",
	Long: `A filtering proxy for the MAA copilot site. Listing query responses are
checked against your imported operator roster and jobs you cannot run
are removed before they reach the page.`,
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

var importCmd = &cobra.Command{
	Use:   "import <file|url|->",
	Short: "Import an operator roster export",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List imported operators",
	RunE:  runRoster,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change filter settings",
	RunE:  runSettings,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show roster and filter status",
	RunE:  runStatus,
}

var filterCmd = &cobra.Command{
	Use:   "filter <response.json|->",
	Short: "Filter a saved copilot query response",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilter,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/copilot_filter.toml)")

	settingsCmd.Flags().Bool("enabled", true, "enable filtering")
	settingsCmd.Flags().Bool("allow-one-missing", false, "keep jobs missing at most one operator")
	settingsCmd.Flags().Bool("require-elite-two", true, "treat top-rarity operators below elite 2 as not owned")

	statusCmd.Flags().Bool("json", false, "print status as JSON")

	filterCmd.Flags().StringP("output", "o", "", "write the filtered response here instead of stdout")
	filterCmd.Flags().String("roster", "", "use this roster export instead of the imported roster")
	filterCmd.Flags().Bool("allow-one-missing", false, "override the allow-one-missing setting")
	filterCmd.Flags().Bool("verbose", false, "print every decision to stderr")

	rootCmd.AddCommand(initCmd, serveCmd, importCmd, rosterCmd, settingsCmd, statusCmd, filterCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("copilot_filter")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("COPILOT_FILTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("proxy.listen", "127.0.0.1:8848")
	viper.SetDefault("proxy.upstream", "https://prts.maa.plus")
	viper.SetDefault("proxy.endpoints", []string{models.DefaultQueryEndpoint})
	viper.SetDefault("proxy.allowed_origins", models.DefaultAllowedOrigins)
	viper.SetDefault("store.path", defaultStorePath())
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", true)
	viper.SetDefault("filter.top_rarity", models.DefaultTopRarity)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "maa-copilot-filter", "filter.db")
}

// app bundles what every command needs
type app struct {
	log   zerolog.Logger
	store *store.Store
	state *state.State
}

func openApp(ctx context.Context) (*app, error) {
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}

	settings, err := st.Load(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings.Filter.TopRarity = topRarity()

	return &app{
		log:   log,
		store: st,
		state: state.New(settings.Roster, settings.Filter, st),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func topRarity() int {
	return topRarityOf(cfg.Filter)
}

func topRarityOf(f models.FilterSection) int {
	if f.TopRarity <= 0 {
		return models.DefaultTopRarity
	}
	return f.TopRarity
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := readSource(ctx, args[0], a.log)
	if err != nil {
		return err
	}

	im := roster.NewImporter()
	ops, err := im.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	if err := a.state.ReplaceRoster(ctx, ops); err != nil {
		return err
	}

	stats := im.Stats()
	fmt.Printf("Imported %d operators (%d entries, %d skipped", stats.Owned, stats.Total, stats.Skipped)
	if stats.Duplicates > 0 {
		fmt.Printf(", %d duplicates", stats.Duplicates)
	}
	fmt.Println(")")
	for reason, count := range stats.SkipReasons {
		fmt.Printf("  - %s: %d\n", reason, count)
	}
	return nil
}

// readSource reads a local file, stdin ("-") or an http(s) URL
func readSource(ctx context.Context, src string, log zerolog.Logger) ([]byte, error) {
	switch {
	case src == "-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return fetcher.New(cfg.HTTP, log).Fetch(ctx, src)
	default:
		return os.ReadFile(src)
	}
}

func runRoster(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ops := a.state.Roster()
	if len(ops) == 0 {
		fmt.Println("No roster imported. Run `maa-copilot-filter import <file>` first.")
		return nil
	}

	top := a.state.Config().TopRarity
	fmt.Printf("Imported operators (%d):\n\n", len(ops))
	for _, op := range ops {
		note := ""
		if op.Rarity == top && op.Elite < 2 {
			note = "  (top rarity, below elite 2)"
		}
		fmt.Printf("  %-20s elite %d  lv %-3d rarity %d  max skill %d%s\n",
			op.Name, op.Elite, op.Level, op.Rarity, op.MaxSkill, note)
	}
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	flags := cmd.Flags()
	if flags.Changed("enabled") || flags.Changed("allow-one-missing") || flags.Changed("require-elite-two") {
		_, err := a.state.UpdateConfig(ctx, func(c *models.FilterConfig) {
			if flags.Changed("enabled") {
				c.Enabled, _ = flags.GetBool("enabled")
			}
			if flags.Changed("allow-one-missing") {
				c.AllowOneMissing, _ = flags.GetBool("allow-one-missing")
			}
			if flags.Changed("require-elite-two") {
				c.RequireEliteTwoForTopRarity, _ = flags.GetBool("require-elite-two")
			}
		})
		if err != nil {
			return err
		}
		fmt.Println("Settings saved. Running proxies pick them up after a restart.")
	}

	c := a.state.Config()
	fmt.Printf("enabled            %v\n", c.Enabled)
	fmt.Printf("allow-one-missing  %v\n", c.AllowOneMissing)
	fmt.Printf("require-elite-two  %v\n", c.RequireEliteTwoForTopRarity)
	fmt.Printf("top rarity tier    %d\n", c.TopRarity)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status := a.state.Status()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(os.Stdout, status)
	}

	fmt.Println(status.Message)
	fmt.Printf("store: %s\n", cfg.Store.Path)
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Printf("config: %s\n", used)
	}
	return nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	outputPath, _ := cmd.Flags().GetString("output")
	rosterPath, _ := cmd.Flags().GetString("roster")
	verbose, _ := cmd.Flags().GetBool("verbose")

	snap := a.state.Snapshot()
	if rosterPath != "" {
		data, err := readSource(ctx, rosterPath, a.log)
		if err != nil {
			return err
		}
		ops, err := roster.NewImporter().Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("roster %s: %w", rosterPath, err)
		}
		snap.Index = roster.Build(ops)
	}
	if cmd.Flags().Changed("allow-one-missing") {
		snap.Config.AllowOneMissing, _ = cmd.Flags().GetBool("allow-one-missing")
	}

	body, err := readSource(ctx, args[0], a.log)
	if err != nil {
		return err
	}

	engine := filter.NewEngine(a.log)
	var decisions []filter.Decision
	out, res, err := filter.RewriteResponse(body, func(listings []models.RawListing) filter.Result {
		var r filter.Result
		r, decisions = engine.FilterTrace(listings, snap.Index, snap.Config)
		return r
	})
	if err != nil {
		return err
	}

	if !filter.Active(snap.Index, snap.Config) {
		fmt.Fprintln(os.Stderr, "Filtering inactive (disabled or no roster); response unchanged")
	}
	if verbose {
		printDecisions(decisions)
	}
	fmt.Fprintf(os.Stderr, "Kept %d listings, removed %d\n", len(res.Listings), res.Removed)

	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return writeFile(outputPath, out)
}

func printDecisions(decisions []filter.Decision) {
	for _, d := range decisions {
		verdict := "keep"
		if !d.Evaluation.Pass {
			verdict = "drop"
		}
		switch {
		case d.Unparseable:
			fmt.Fprintf(os.Stderr, "  [%s] #%s unparseable\n", verdict, d.ID)
		case len(d.Misses) == 0:
			fmt.Fprintf(os.Stderr, "  [%s] #%s %s\n", verdict, d.ID, d.Title)
		default:
			var parts []string
			for _, m := range d.Misses {
				parts = append(parts, m.Name+" ("+m.Reason+")")
			}
			fmt.Fprintf(os.Stderr, "  [%s] #%s %s: missing %s\n", verdict, d.ID, d.Title, strings.Join(parts, ", "))
		}
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "./configs/copilot_filter.toml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := writeFile(configPath, []byte(defaultConfig)); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}

const defaultConfig = `# MAA copilot filter configuration

# HTTP client settings (roster downloads)
[http]
timeout = "30s"
retries = 3

# Filtering proxy
[proxy]
listen = "127.0.0.1:8848"
upstream = "https://prts.maa.plus"
# Responses for paths ending in one of these are filtered
endpoints = ["/copilot/query"]
# Pages allowed to call the control API (/_copilot) from the browser
allowed_origins = ["https://prts.plus", "https://zoot.plus"]

# Roster and settings database
[store]
# path = "/home/me/.config/maa-copilot-filter/filter.db"

[log]
level = "info"
pretty = true

[filter]
# Rarity tier whose operators must reach elite 2 to count as owned.
# Set to 5 if your roster export numbers rarity from 0.
top_rarity = 6
`

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
