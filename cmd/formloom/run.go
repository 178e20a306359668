package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"formloom/internal/config"
	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/logbook"
	"formloom/internal/patch"
	"formloom/internal/session"
	"formloom/internal/tui"
)

func runCmd() *cobra.Command {
	var maxTurns int
	cmd := &cobra.Command{
		Use:   "run [document]",
		Short: "Drive configured actors turn by turn until the form completes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, path, err := loadDocument(args)
			if err != nil {
				return err
			}
			cfg, err := config.NewConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			roster, err := buildRoster(cfg)
			if err != nil {
				return err
			}
			limits := cfg.Limits(doc.Meta)
			if maxTurns > 0 {
				limits.MaxTurns = maxTurns
			}
			lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "run.log"))
			if err != nil {
				return err
			}
			runner := &session.Runner{Roster: roster, Limits: limits, Log: lb}
			final, tr, err := runner.Run(cmd.Context(), doc)
			if tr != nil {
				for _, turn := range tr.Turns {
					fmt.Fprintf(cmd.OutOrStdout(), "turn %d: %s proposed %d, %s, %d issue(s) left\n",
						turn.Number, turn.Role, turn.Proposed, turn.Status, turn.Remaining)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s: %s (form %s)\n", tr.SessionID, tr.Stopped, tr.Final)
			}
			if err != nil {
				return err
			}
			return saveDocument(path, final)
		},
	}
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "override the configured turn budget")
	return cmd
}

func fillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fill [document]",
		Short: "Answer your role's open fields interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, path, err := loadDocument(args)
			if err != nil {
				return err
			}
			role := form.Role(viper.GetString("role"))
			if role == "" {
				role = form.RoleUser
			}
			cfg, err := config.NewConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "fill.log"))
			if err != nil {
				return err
			}
			final, err := tui.Run(doc, role, lb)
			if err != nil {
				return err
			}
			if err := saveDocument(path, final); err != nil {
				return err
			}
			rep := inspect.Inspect(final, inspect.Options{})
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s, form %s, %d issue(s) open\n", path, rep.State, len(rep.Issues))
			return nil
		},
	}
}

// buildRoster turns configured actors into session agents. Interactive
// actors cannot run unattended; point them at `formloom fill` instead.
func buildRoster(cfg *config.Config) (session.Roster, error) {
	roster := session.Roster{}
	for _, actor := range cfg.Workspace.Actors {
		switch actor.Kind {
		case "command":
			roster[form.Role(actor.Role)] = &commandAgent{command: actor.Command, dir: cfg.WorkspaceRoot}
		case "", "interactive":
			return nil, fmt.Errorf("actor %q is interactive; use `formloom fill --role %s` for it", actor.Role, actor.Role)
		default:
			return nil, fmt.Errorf("actor %q has unknown kind %q", actor.Role, actor.Kind)
		}
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("no actors configured; add them to %s", cfg.ConfigPath())
	}
	return roster, nil
}

// commandAgent shells out for proposals: the open issues go to the
// program's stdin as JSON, and stdout must be a JSON patch batch.
type commandAgent struct {
	command string
	dir     string
}

func (c *commandAgent) Propose(ctx context.Context, doc *form.Document, issues []inspect.Issue) ([]patch.Patch, error) {
	input, err := json.Marshal(issues)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", c.command)
	cmd.Dir = c.dir
	cmd.Stdin = bytes.NewReader(input)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("actor command %q: %w", c.command, err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}
	return patch.DecodeBatch(out)
}
