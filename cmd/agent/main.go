package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quantrel/tradeloop/internal/citations"
	"github.com/quantrel/tradeloop/internal/config"
	"github.com/quantrel/tradeloop/internal/conversation"
	"github.com/quantrel/tradeloop/internal/market"
	"github.com/quantrel/tradeloop/internal/provider"
	"github.com/quantrel/tradeloop/internal/websearch"
	"github.com/quantrel/tradeloop/report"
	"github.com/quantrel/tradeloop/tools"
)

func main() {
	verbose := flag.Bool("v", false, "enable verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-v] <config.yaml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := newLogger(os.Stderr, *verbose)

	// Fatal configuration errors are raised before the loop starts.
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		logger.Error("missing ANTHROPIC_API_KEY; export it before running")
		os.Exit(1)
	}
	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = string(provider.DefaultModel)
	}
	logger.Info("loaded configuration", "path", flag.Arg(0), "model", cfg.Agent.Model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		logger.Info("interrupted, cancelling run")
		cancel()
	}()

	client := provider.NewAnthropicClient()
	registry := tools.NewRegistry(logger, tools.TradingTools(market.NewClient(), websearch.NewClient())...)
	tracker := citations.NewTracker(logger)
	driver := conversation.New(client, registry, tracker, cfg, logger)

	result, err := driver.Run(ctx, cfg.Prompt)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	printResult(result)

	if cfg.ReportPath != "" {
		if err := report.Save(cfg.ReportPath, result); err != nil {
			logger.Warn("failed to write report", "path", cfg.ReportPath, "error", err)
		} else {
			logger.Info("report written", "path", cfg.ReportPath)
		}
	}
}

func printResult(result *conversation.Result) {
	rule := strings.Repeat("=", 80)
	fmt.Println("\n" + rule)
	fmt.Println(" EXECUTION RESULTS")
	fmt.Println(rule)

	fmt.Println("\nEXECUTION SUMMARY:")
	fmt.Printf("   - Iterations used: %d\n", result.IterationsUsed)
	fmt.Printf("   - Tools executed: %d\n", result.ToolsExecuted)
	fmt.Printf("   - Conversation length: %d\n", result.ConversationLength)
	fmt.Printf("   - Success: %t\n", result.Success)

	if len(result.ToolSummary) > 0 {
		fmt.Println("\nTOOLS EXECUTED:")
		for i, rec := range result.ToolSummary {
			preview := rec.Result
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			fmt.Printf("   %d. %s(%s) -> %s\n", i+1, rec.Tool, string(rec.Input), preview)
		}
	}

	fmt.Println("\nFINAL AGENT RESPONSE:")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println(result.FinalResponse)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println("\n" + rule)
}
