package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aldenmarsh/planforge/internal/obs"
	"github.com/aldenmarsh/planforge/internal/orchestrate"
	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/route"
	"github.com/aldenmarsh/planforge/internal/stage"
	"github.com/aldenmarsh/planforge/internal/store"
	"github.com/aldenmarsh/planforge/internal/unit"
	"github.com/aldenmarsh/planforge/internal/ux"
	cli "github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "planforge",
		Usage: "Conversational experiment-plan builder",
		Commands: []*cli.Command{
			runCmd(),
			stagesCmd(),
			statusCmd(),
			plansCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Start or resume an interactive planning conversation",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "registry", Usage: "Path to a YAML stage registry (default: built-in)"},
			&cli.StringFlag{Name: "state-dir", Value: ".planforge", Usage: "Checkpoint directory"},
			&cli.StringFlag{Name: "resume", Usage: "Resume a saved plan by id"},
			&cli.StringFlag{Name: "classifier", Value: "keyword", Usage: "Edit-routing classifier: keyword or claude"},
			&cli.StringFlag{Name: "model", Usage: "Model for the claude classifier"},
			&cli.IntFlag{Name: "budget", Value: orchestrate.DefaultBudget, Usage: "Stage-execution budget"},
			&cli.StringFlag{Name: "log", Usage: "Write JSON event logs to this file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reg, err := loadRegistry(cmd.String("registry"))
			if err != nil {
				return err
			}
			classifier, err := buildClassifier(cmd.String("classifier"), cmd.String("model"))
			if err != nil {
				return err
			}
			observer, closeLog, err := buildObserver(cmd.String("log"))
			if err != nil {
				return err
			}
			defer closeLog()

			st, err := store.New(cmd.String("state-dir"))
			if err != nil {
				return err
			}

			units := make([]unit.Unit, 0, reg.Len())
			for _, name := range reg.Names() {
				desc, _ := reg.Descriptor(name)
				units = append(units, unit.NewScripted(desc))
			}

			m, err := orchestrate.New(reg, units, classifier,
				orchestrate.WithBudget(int(cmd.Int("budget"))),
				orchestrate.WithObserver(observer))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			reader := bufio.NewReader(os.Stdin)

			var res *orchestrate.Result
			if id := cmd.String("resume"); id != "" {
				doc, err := st.Load(id)
				if err != nil {
					return err
				}
				if err := m.Attach(doc); err != nil {
					return err
				}
				ux.RenderStatus(reg, m.Doc())
				line, err := readLine(ctx, reader, doc.CurrentStage)
				if err != nil {
					return err
				}
				res, err = m.Turn(ctx, line)
				if err != nil {
					return err
				}
			} else {
				query := strings.TrimSpace(cmd.Args().First())
				if query == "" {
					return fmt.Errorf("query argument is required (or use --resume)")
				}
				res, err = m.Start(ctx, query)
				if err != nil {
					return err
				}
			}

			for {
				if err := st.Save(res.Doc); err != nil {
					return fmt.Errorf("saving checkpoint: %w", err)
				}
				display(reg, res)
				if res.State == orchestrate.StateTerminal {
					return nil
				}
				line, err := readLine(ctx, reader, res.Stage)
				if err != nil {
					if err == io.EOF {
						fmt.Printf("\n%sResume:%s planforge run --resume %s\n", ux.Yellow, ux.Reset, res.Doc.ID)
						return nil
					}
					return err
				}
				res, err = m.Turn(ctx, line)
				if err != nil {
					return err
				}
			}
		},
	}
}

func stagesCmd() *cli.Command {
	return &cli.Command{
		Name:  "stages",
		Usage: "Print the stage registry",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "registry", Usage: "Path to a YAML stage registry (default: built-in)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reg, err := loadRegistry(cmd.String("registry"))
			if err != nil {
				return err
			}
			fmt.Printf("\n%s%d stages:%s\n\n", ux.Bold, reg.Len(), ux.Reset)
			for i, name := range reg.Names() {
				desc, _ := reg.Descriptor(name)
				fmt.Printf("  %s%d.%s %s%s%s", ux.Cyan, i+1, ux.Reset, ux.Bold, name, ux.Reset)
				if desc.Description != "" {
					fmt.Printf(": %s", desc.Description)
				}
				fmt.Println()
				if len(desc.Prerequisites) > 0 {
					fmt.Printf("     requires: %s\n", strings.Join(desc.Prerequisites, ", "))
				}
				fmt.Printf("     produces: %s\n", strings.Join(desc.Completion, ", "))
			}
			fmt.Println()
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show a saved plan",
		ArgsUsage: "<plan-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "registry", Usage: "Path to a YAML stage registry (default: built-in)"},
			&cli.StringFlag{Name: "state-dir", Value: ".planforge", Usage: "Checkpoint directory"},
			&cli.BoolFlag{Name: "transcript", Usage: "Print the conversation log"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("plan-id argument is required")
			}
			reg, err := loadRegistry(cmd.String("registry"))
			if err != nil {
				return err
			}
			st, err := store.New(cmd.String("state-dir"))
			if err != nil {
				return err
			}
			doc, err := st.Load(id)
			if err != nil {
				return err
			}
			if err := plan.Validate(doc, reg.Names()); err != nil {
				return err
			}
			ux.RenderStatus(reg, doc)
			if cmd.Bool("transcript") {
				fmt.Println()
				ux.RenderTranscript(doc)
			}
			return nil
		},
	}
}

func plansCmd() *cli.Command {
	return &cli.Command{
		Name:  "plans",
		Usage: "List saved plans",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "state-dir", Value: ".planforge", Usage: "Checkpoint directory"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := store.New(cmd.String("state-dir"))
			if err != nil {
				return err
			}
			ids, err := st.List()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Printf("%s(no saved plans)%s\n", ux.Dim, ux.Reset)
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func loadRegistry(path string) (*stage.Registry, error) {
	if path == "" {
		return stage.Default(), nil
	}
	reg, err := stage.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}
	return reg, nil
}

func buildClassifier(kind, model string) (route.Classifier, error) {
	switch kind {
	case "keyword":
		return route.NewKeywordClassifier(), nil
	case "claude":
		cfg := route.DefaultClaudeConfig()
		if model != "" {
			cfg.Model = model
		}
		return route.NewClaudeClassifier(cfg)
	default:
		return nil, fmt.Errorf("unknown classifier %q (must be keyword or claude)", kind)
	}
}

func buildObserver(path string) (obs.Observer, func(), error) {
	if path == "" {
		return obs.Nop{}, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return obs.NewLog(f), func() { f.Close() }, nil
}

func display(reg *stage.Registry, res *orchestrate.Result) {
	if res.State == orchestrate.StateTerminal {
		ux.Assistant(res.Reply)
		if res.Doc.Approved {
			ux.Approved(res.Doc.ID)
		} else {
			ux.Terminated(res.Reason)
		}
		return
	}
	desc, _ := reg.Descriptor(res.Stage)
	ux.StageHeader(reg.Ordinal(res.Stage), reg.Len(), res.Stage, desc.Description)
	if res.Doc.ReturnStage != "" {
		ux.Detour(res.Stage, res.Doc.ReturnStage)
	}
	ux.Assistant(res.Reply)
}

// readLine reads one line from the reader, honoring context cancellation.
func readLine(ctx context.Context, reader *bufio.Reader, stageName string) (string, error) {
	ux.Prompt(stageName)

	type readResult struct {
		input string
		err   error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- readResult{input: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			if r.err == io.EOF && r.input != "" {
				return r.input, nil
			}
			return "", r.err
		}
		return r.input, nil
	}
}
