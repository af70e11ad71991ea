package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"roadmapbp/pkg/config"
	"roadmapbp/pkg/export"
	pkgmetrics "roadmapbp/pkg/metrics"
	"roadmapbp/pkg/persistence"
	"roadmapbp/pkg/roadmap"
	"roadmapbp/pkg/termui"
	"roadmapbp/pkg/webui"
)

func newFlagSet(env *cliEnv, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err //nolint:wrapcheck // sentinel checked by run
		}
		return usagef("%v", err)
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

// readInput returns -input, or the contents of -file ("-" reads stdin).
func readInput(env *cliEnv, input, file string) (string, error) {
	switch {
	case input != "" && file != "":
		return "", usagef("use either -input or -file, not both")
	case input != "":
		return input, nil
	case file == "-":
		data, err := io.ReadAll(env.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	default:
		return "", usagef("one of -input or -file is required")
	}
}

func runGenerate(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "generate")
	configPath := fs.String("config", "", "Config file (JSON or YAML)")
	input := fs.String("input", "", "Project description")
	file := fs.String("file", "", "Read the project description from a file (- for stdin)")
	outDir := fs.String("out", "", "Write the roadmap document and per-phase files to this directory")
	formatStr := fs.String("format", "md", "Output format: md or txt")
	printDoc := fs.Bool("print", false, "Print the full document instead of the summary")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	format, err := export.ParseFormat(*formatStr)
	if err != nil {
		return usagef("%v", err)
	}
	raw, err := readInput(env, *input, *file)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, env, appOptions{configPath: *configPath, withModel: true, withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.generator.Generate(ctx, raw)
	if err != nil {
		return err //nolint:wrapcheck // StageError names the stage
	}
	now := time.Now()

	if *printDoc {
		doc, err := export.Render(result, format, now)
		if err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		_, _ = env.stdout.Write(doc)
	} else {
		fmt.Fprintln(env.stdout, termui.Summary(result, terminalWidth(env.stdout)))
	}

	if *outDir != "" {
		paths, err := export.WriteFiles(*outDir, result, format, now)
		if err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		for _, p := range paths {
			fmt.Fprintf(env.stderr, "wrote %s\n", p)
		}
	}
	if result.PersistedID == "" {
		fmt.Fprintln(env.stderr, "roadmap was not saved")
	}
	return nil
}

func runDrafts(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "drafts")
	configPath := fs.String("config", "", "Config file (JSON or YAML)")
	input := fs.String("input", "", "Project description")
	file := fs.String("file", "", "Read the project description from a file (- for stdin)")
	count := fs.Int("n", 0, "Number of drafts (default from pipeline.drafts)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	raw, err := readInput(env, *input, *file)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, env, appOptions{configPath: *configPath, withModel: true})
	if err != nil {
		return err
	}
	defer a.Close()

	n := *count
	if n <= 0 {
		n = a.cfg.Pipeline.Drafts
	}
	outcomes, err := a.drafter.Drafts(ctx, raw, n)
	if outcomes != nil {
		fmt.Fprintln(env.stdout, termui.Drafts(outcomes, terminalWidth(env.stdout)))
	}
	return err //nolint:wrapcheck // already descriptive
}

func runServe(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "serve")
	configPath := fs.String("config", "", "Config file (JSON or YAML)")
	addr := fs.String("addr", "", "Listen address (default from server.addr)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(ctx, env, appOptions{configPath: *configPath, withModel: true, withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	deps := webui.Deps{
		Generator:     a.generator,
		Drafter:       a.drafter,
		Usage:         webui.UsageFunc(a.usage.Usage),
		Gatherer:      a.registry,
		AdminPassword: a.cfg.Server.AdminPassword,
		SecretsPath:   config.SecretsFilePath(),
		DefaultDrafts: a.cfg.Pipeline.Drafts,
		Feedback:      a.feedback,
	}
	if p := os.Getenv(config.EnvSecretsPassword); p != "" {
		deps.SecretsPassword = p
	}
	if a.store != nil {
		deps.Records = a.store
	}
	if url := a.cfg.Metrics.PrometheusURL; url != "" {
		query, err := pkgmetrics.NewQueryService(url, a.cfg.Metrics.Namespace)
		if err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		deps.Usage = query
	}

	listen := a.cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}
	fmt.Fprintf(env.stderr, "serving on %s (model %s)\n", listen, a.gateway.ModelName())
	return webui.NewServer(deps).ListenAndServe(ctx, listen) //nolint:wrapcheck // already descriptive
}

func runFeedback(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "feedback")
	configPath := fs.String("config", "", "Config file (JSON or YAML)")
	roadmapID := fs.String("roadmap", "", "Roadmap id (optional)")
	sentiment := fs.String("sentiment", "", "up or down")
	email := fs.String("email", "", "Contact email (optional)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(ctx, env, appOptions{configPath: *configPath, withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	result := roadmap.NewService(a.store).SubmitFeedback(ctx, roadmap.Feedback{
		RoadmapID: *roadmapID,
		Sentiment: roadmap.Sentiment(*sentiment),
		Email:     *email,
	})
	if !result.Success {
		return fmt.Errorf("feedback rejected: %s", result.Error)
	}
	fmt.Fprintf(env.stdout, "feedback %s recorded\n", result.ID)
	return nil
}

func runList(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "list")
	configPath := fs.String("config", "", "Config file (JSON or YAML)")
	limit := fs.Int("limit", 20, "Maximum number of entries")
	showFeedback := fs.Bool("feedback", false, "List feedback instead of roadmaps")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(ctx, env, appOptions{configPath: *configPath, withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	width := terminalWidth(env.stdout)
	if *showFeedback {
		records, err := a.store.ListFeedback(ctx, *limit)
		if err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		fmt.Fprintln(env.stdout, termui.FeedbackList(records, width))
		return nil
	}
	records, err := a.store.ListRoadmaps(ctx, *limit)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	fmt.Fprintln(env.stdout, termui.RoadmapList(records, width))
	return nil
}

func runShow(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "show")
	configPath := fs.String("config", "", "Config file (JSON or YAML)")
	id := fs.String("id", "", "Roadmap id")
	formatStr := fs.String("format", "", "Print the document as md or txt instead of the summary")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return usagef("-id is required")
	}

	a, err := newApp(ctx, env, appOptions{configPath: *configPath, withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.store.GetRoadmap(ctx, *id)
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("roadmap %s not found", *id)
	}
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	result := roadmap.FromRecord(rec)

	if *formatStr == "" {
		fmt.Fprintln(env.stdout, termui.Summary(result, terminalWidth(env.stdout)))
		return nil
	}
	format, err := export.ParseFormat(*formatStr)
	if err != nil {
		return usagef("%v", err)
	}
	doc, err := export.Render(result, format, rec.CreatedAt)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	_, err = env.stdout.Write(doc)
	return err //nolint:wrapcheck // stdout write
}

func runInit(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "init")
	path := fs.String("path", config.DefaultConfigNames[0], "Config file to write (.yaml, .yml or .json)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", *path)
	}
	if err := config.SaveConfig(config.Default(), *path); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	fmt.Fprintf(env.stdout, "wrote %s\n", *path)
	return nil
}
