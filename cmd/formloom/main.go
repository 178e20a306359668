package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"formloom/internal/config"
	"formloom/internal/export"
	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/parser"
	"formloom/internal/patch"
	"formloom/internal/plan"
)

var rootCmd = &cobra.Command{
	Use:   "formloom",
	Short: "Formloom CLI",
	Long: `Formloom fills structured form documents collaboratively.
Core concepts:
- Document: a text file of ::group/::field directives plus recorded answers;
  edits preserve the original formatting byte for byte.
- Inspect: read-only analysis that lists what is missing or invalid, ranked
  by urgency and filterable by role and readiness.
- Patch: an all-or-nothing batch of answers; a batch with any structural
  problem leaves the document untouched and reports every problem.
- Plan: a deterministic schedule of the remaining fields, split into serial
  steps and batches that different actors can fill in parallel.
- Session: 'formloom run' drives configured actors turn by turn until the
  form completes or the turn budget runs out.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FORMLOOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringP("role", "r", "", "restrict to one role's fields")
	rootCmd.PersistentFlags().String("format", "", "output format (console, json, yaml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(fmtCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(fillCmd())
	rootCmd.AddCommand(noteCmd())
}

func noteCmd() *cobra.Command {
	var ref, text string
	cmd := &cobra.Command{
		Use:   "note [document]",
		Short: "Attach a note, optionally tied to a field",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--message is required")
			}
			doc, path, err := loadDocument(args)
			if err != nil {
				return err
			}
			if ref != "" {
				if _, _, ok := doc.Schema.Field(ref); !ok {
					return fmt.Errorf("no field %q to attach the note to", ref)
				}
			}
			role := form.Role(viper.GetString("role"))
			if role == "" {
				role = form.RoleUser
			}
			n := doc.AddNote(form.Note{Role: role, Ref: ref, Text: text})
			if err := saveDocument(path, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added note %s\n", n.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "field the note refers to")
	cmd.Flags().StringVarP(&text, "message", "m", "", "note text")
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .formloom workspace directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if err := config.InitWorkspace(workspace); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", filepath.Join(workspace, config.WorkspaceDir))
			return nil
		},
	}
}

func inspectCmd() *cobra.Command {
	var ready bool
	var maxIssues, maxFields, maxGroups int
	cmd := &cobra.Command{
		Use:   "inspect [document]",
		Short: "List missing and invalid fields, most urgent first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, err := loadDocument(args)
			if err != nil {
				return err
			}
			opts := inspect.Options{
				ReadyOnly: ready,
				MaxIssues: maxIssues,
				MaxFields: maxFields,
				MaxGroups: maxGroups,
			}
			if role := viper.GetString("role"); role != "" {
				opts.TargetRoles = []form.Role{form.Role(role)}
			}
			rep := inspect.Inspect(doc, opts)
			out, err := renderReport(rep)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ready, "ready", false, "only issues with no unmet dependency")
	cmd.Flags().IntVar(&maxIssues, "max-issues", 0, "cap the number of issues")
	cmd.Flags().IntVar(&maxFields, "max-fields", 0, "cap distinct fields covered")
	cmd.Flags().IntVar(&maxGroups, "max-groups", 0, "cap distinct groups covered")
	return cmd
}

func applyCmd() *cobra.Command {
	var patchFile string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply [document]",
		Short: "Apply a JSON patch batch from stdin or a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, path, err := loadDocument(args)
			if err != nil {
				return err
			}
			raw, err := readPatchInput(cmd, patchFile)
			if err != nil {
				return err
			}
			batch, err := patch.DecodeBatch(raw)
			if err != nil {
				return err
			}
			res := patch.Apply(doc, batch)
			if res.Status == patch.StatusRejected {
				for _, p := range res.Problems {
					fmt.Fprintf(cmd.OutOrStdout(), "rejected %s: %s\n", p.FieldID, p.Message)
				}
				return fmt.Errorf("batch rejected, document unchanged")
			}
			if !dryRun {
				if err := saveDocument(path, res.Document); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d patch(es), form %s\n", res.Status, len(batch), res.Report.State)
			for _, p := range res.Problems {
				fmt.Fprintf(cmd.OutOrStdout(), "still problematic %s: %s\n", p.FieldID, p.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&patchFile, "patches", "", "file holding the JSON patch batch (default stdin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without writing the document")
	return cmd
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [document]",
		Short: "Show the execution plan for the remaining fields",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, err := loadDocument(args)
			if err != nil {
				return err
			}
			p := plan.Compute(doc)
			if p.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing left to fill")
				return nil
			}
			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"level", "mode", "key", "group", "fields"})
			for _, level := range p.Levels {
				for _, item := range level.LooseSerial {
					tw.AppendRow(table.Row{level.Order, "serial", item.Key, item.GroupID, strings.Join(item.FieldIDs, ", ")})
				}
				for _, batch := range level.ParallelBatches {
					for _, item := range batch.Items {
						tw.AppendRow(table.Row{level.Order, "parallel", batch.Key, item.GroupID, strings.Join(item.FieldIDs, ", ")})
					}
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			fmt.Fprintf(cmd.OutOrStdout(), "%d field(s) remaining\n", p.RemainingFields())
			return nil
		},
	}
}

func fmtCmd() *cobra.Command {
	var canonical, stdout bool
	cmd := &cobra.Command{
		Use:   "fmt [document]",
		Short: "Rewrite a document, preserving layout unless --canonical",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, path, err := loadDocument(args)
			if err != nil {
				return err
			}
			out, err := parser.Serialize(doc, parser.Options{PreserveOriginalFormatting: !canonical})
			if err != nil {
				return err
			}
			if stdout {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(path, out, 0644)
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "emit canonical layout instead of preserving the original")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print instead of rewriting the file")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export [document]",
		Short: "Render a projection: markdown, schema, or an issue report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, err := loadDocument(args)
			if err != nil {
				return err
			}
			var rendered []byte
			switch format := viper.GetString("format"); format {
			case "", "markdown":
				rendered = export.Markdown(doc)
			case "schema":
				rendered, err = export.JSONSchema(doc)
			case "json":
				rendered, err = export.ReportJSON(inspect.Inspect(doc, inspect.Options{}))
			case "yaml":
				rendered, err = export.ReportYAML(inspect.Inspect(doc, inspect.Options{}))
			default:
				return fmt.Errorf("unknown format %q (markdown, schema, json, yaml)", format)
			}
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(rendered)
				return err
			}
			return os.WriteFile(out, rendered, 0644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the projection to a file")
	return cmd
}

// renderReport picks the output encoding from the persistent format flag.
func renderReport(rep inspect.Report) (string, error) {
	switch viper.GetString("format") {
	case "", "console":
		return export.Console(rep), nil
	case "json":
		out, err := export.ReportJSON(rep)
		return string(out) + "\n", err
	case "yaml":
		out, err := export.ReportYAML(rep)
		return string(out), err
	default:
		return "", fmt.Errorf("unknown format %q (console, json, yaml)", viper.GetString("format"))
	}
}

// loadDocument resolves the document path from args or the workspace config
// and parses it.
func loadDocument(args []string) (*form.Document, string, error) {
	path, err := documentPath(args)
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	doc, err := parser.Parse(raw)
	if err != nil {
		return nil, "", err
	}
	return doc, path, nil
}

func documentPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := config.NewConfig(viper.GetString("workspace"))
	if err != nil {
		return "", err
	}
	path := cfg.DefaultDocument()
	if path == "" {
		return "", fmt.Errorf("no document given and no default configured")
	}
	return path, nil
}

func saveDocument(path string, doc *form.Document) error {
	out, err := parser.Serialize(doc, parser.Options{PreserveOriginalFormatting: true})
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

func readPatchInput(cmd *cobra.Command, patchFile string) ([]byte, error) {
	if patchFile != "" {
		return os.ReadFile(patchFile)
	}
	return io.ReadAll(cmd.InOrStdin())
}
