package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/afonot/suricata/internal/config"
	"github.com/afonot/suricata/internal/detect"
	"github.com/afonot/suricata/internal/log"
)

var checkCmd = &cobra.Command{
	Use:   "check [rule files...]",
	Short: "Validate rule files",
	Long: `Validate one or more rule files without building an engine.

Each non-comment line is parsed as one rule. The exit code is non-zero
when any rule fails validation.

Examples:
  sigparse check rules/emerging-all.rules
  sigparse check -c engine.yaml local.rules`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runCheckCommand(args)
	},
}

var checkFirewall bool

func init() {
	checkCmd.Flags().BoolVar(&checkFirewall, "firewall", false,
		"validate the files as firewall rules")
}

func runCheckCommand(files []string) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		cfg = loaded
	}
	log.Init(&cfg.Log)
	detect.ApplyStrictOption(cfg.Detect.StrictKeywords)

	if len(files) == 0 {
		files = cfg.RuleFiles
	}
	if len(files) == 0 {
		exitWithError("no rule files given", nil)
	}

	opts := []detect.Option{}
	if cfg.Classification != "" {
		cc, err := config.LoadClassification(cfg.Classification)
		if err != nil {
			exitWithError("failed to load classification config", err)
		}
		opts = append(opts, detect.WithClassification(cc))
	}
	engine := detect.NewEngine(&cfg.Detect, opts...)

	var good, bad, skipped int
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			exitWithError(fmt.Sprintf("failed to open rule file %s", file), err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), detect.MaxRuleSize+1024)
		lineno := 0
		for scanner.Scan() {
			lineno++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			var parseErr error
			if checkFirewall {
				_, parseErr = engine.AppendFirewallSig(line)
			} else {
				_, parseErr = engine.AppendSig(line)
			}
			switch {
			case parseErr == nil:
				good++
			case errors.Is(parseErr, detect.ErrDuplicate):
				skipped++
			case engine.SigErrorRequires:
				skipped++
			case detect.IsSilent(parseErr):
				bad++
			default:
				bad++
				fmt.Fprintf(os.Stderr, "INVALID %s:%d: %v\n", file, lineno, parseErr)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			exitWithError(fmt.Sprintf("failed to read rule file %s", file), err)
		}
		f.Close()
	}

	fmt.Printf("%d rule(s) OK, %d invalid, %d skipped (requirements), %d loaded\n",
		good, bad, skipped, engine.SigCount())
	if bad > 0 {
		os.Exit(1)
	}
}
