// Command psurd runs the report-workflow coordinator: an HTTP API for
// session lifecycle and event streaming, plus an optional MCP tool server
// for operator-side LLM access.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caldermed/psurd/internal/agentrun"
	"github.com/caldermed/psurd/internal/config"
	"github.com/caldermed/psurd/internal/events"
	"github.com/caldermed/psurd/internal/httpapi"
	"github.com/caldermed/psurd/internal/mcptools"
	"github.com/caldermed/psurd/internal/provider"
	"github.com/caldermed/psurd/internal/qc"
	"github.com/caldermed/psurd/internal/template"
	"github.com/caldermed/psurd/internal/workflow"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Addr         string
	MCPAddr      string
	EnvFile      string
	Credentials  string
	TemplatePath string
	MaxRevisions int
	Verbose      bool
	Version      bool
}

// version is set by the linker at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("psurd", flag.ContinueOnError)
	fs.StringVar(&flags.Addr, "addr", "", "HTTP listen address (overrides PSURD_ADDR)")
	fs.StringVar(&flags.MCPAddr, "mcp-addr", "", "MCP tool server listen address (empty disables)")
	fs.StringVar(&flags.EnvFile, "env", ".env", "path to .env file with API keys")
	fs.StringVar(&flags.Credentials, "credentials", "", "path to credentials.toml")
	fs.StringVar(&flags.TemplatePath, "template", "", "path to a report template YAML (default: built-in EU/UK MDR)")
	fs.IntVar(&flags.MaxRevisions, "max-revisions", 0, "generation attempts per section before needs_human")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	settings, err := config.Load(flags.EnvFile, flags.Credentials)
	if err != nil {
		return err
	}
	if flags.Addr != "" {
		settings.Addr = flags.Addr
	}
	if flags.MCPAddr != "" {
		settings.MCPAddr = flags.MCPAddr
	}
	if flags.MaxRevisions > 0 {
		settings.MaxRevisions = flags.MaxRevisions
	}

	tpl := template.Builtin()
	if flags.TemplatePath != "" {
		tpl, err = template.Load(flags.TemplatePath)
		if err != nil {
			return err
		}
	}

	resolver := provider.NewResolver(settings.Credentials)
	runner := agentrun.NewRunner(resolver, agentrun.RetryPolicy{
		MaxAttempts:     settings.RetryAttempts,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	})

	coord, err := workflow.NewCoordinator(workflow.Config{
		Template:     tpl,
		Roster:       config.Roster(),
		Resolver:     resolver,
		Runner:       runner,
		Reviewer:     qc.NewReviewer(),
		Broadcaster:  events.NewBroadcaster(256),
		MaxRevisions: settings.MaxRevisions,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := httpapi.NewServer(coord)
	if err := api.Start(settings.Addr); err != nil {
		return err
	}
	if flags.Verbose {
		fmt.Fprintf(os.Stderr, "psurd %s listening on %s (template %s, %d sections)\n",
			version, settings.Addr, tpl.ID, len(tpl.Sections))
	}

	g, gctx := errgroup.WithContext(ctx)
	if settings.MCPAddr != "" {
		g.Go(func() error {
			return mcptools.RunMCPServer(gctx, mcptools.NewWorkflowService(coord), settings.MCPAddr)
		})
		if flags.Verbose {
			fmt.Fprintf(os.Stderr, "MCP tools on %s\n", settings.MCPAddr)
		}
	}

	<-gctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Stop(shutdownCtx); err != nil {
		return err
	}
	return g.Wait()
}
