package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-affidavit/internal/assembly"
	"github.com/a3tai/mcp-affidavit/internal/casefile"
	"github.com/a3tai/mcp-affidavit/internal/config"
	"github.com/a3tai/mcp-affidavit/internal/exhibit"
	"github.com/a3tai/mcp-affidavit/internal/mcp"
	"github.com/a3tai/mcp-affidavit/internal/publish"
)

const (
	flagEnvFile = "env-file"
	flagRecord  = "record"
	flagUpload  = "upload"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "affidavit",
		Short: "Assemble affidavits with lettered exhibits",
		Long: `affidavit fills the cover affidavit, one exhibit cover sheet per exhibit and
the closing section from a case record, and publishes either an editable
.docx or a merged PDF with the exhibit pages in place.

Run "affidavit serve" to expose the same operations as MCP tools.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String(flagEnvFile, ".env", "Environment file loaded before configuration")
	config.RegisterFlags(flags, config.DefaultConfig())

	root.AddCommand(
		newServeCmd(),
		newComposeCmd(),
		newPDFCmd(),
		newConvertCmd(),
		newGenerateCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the env file, then configuration from the parsed flags
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	envFile, err := fs.GetString(flagEnvFile)
	if err != nil {
		return nil, err
	}
	if _, err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return nil, err
	}
	if version != "dev" {
		cfg.Version = version
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the assembly tools over MCP (stdio or SSE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcp.NewServer(cfg, a.service, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			if err := server.Run(ctx); err != nil {
				a.logger.Error("server error", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

// runFunc is one assembly operation driven from the command line
type runFunc func(ctx context.Context, a *app, req assembly.Request, cmd *cobra.Command) error

// newAssemblyCmd builds a command taking --record and exhibit files as arguments
func newAssemblyCmd(use, short string, run runFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " --record case.json [exhibit.pdf ...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.OutputDir == "" {
				cfg.OutputDir, err = os.Getwd()
				if err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := readRequest(cmd, args, a.service)
			if err != nil {
				return err
			}

			return run(cmd.Context(), a, req, cmd)
		},
	}
	cmd.Flags().String(flagRecord, "", "Case record JSON file")
	_ = cmd.MarkFlagRequired(flagRecord)
	return cmd
}

func newComposeCmd() *cobra.Command {
	return newAssemblyCmd("compose", "Write the editable .docx composite",
		func(ctx context.Context, a *app, req assembly.Request, cmd *cobra.Command) error {
			result, err := a.service.ComposeDocx(ctx, req)
			if err != nil {
				return err
			}
			printArtifact(cmd.OutOrStdout(), result.Artifact)
			return nil
		})
}

func newPDFCmd() *cobra.Command {
	return newAssemblyCmd("pdf", "Write the merged fixed-layout PDF",
		func(ctx context.Context, a *app, req assembly.Request, cmd *cobra.Command) error {
			result, err := a.service.AssemblePDF(ctx, req)
			if err != nil {
				return err
			}
			printArtifact(cmd.OutOrStdout(), result.Artifact)
			fmt.Fprintf(cmd.OutOrStdout(), "pages: %d\n", result.Pages)
			return nil
		})
}

func newConvertCmd() *cobra.Command {
	cmd := newAssemblyCmd("convert", "Write the merged PDF using an edited .docx as the cover affidavit",
		func(ctx context.Context, a *app, req assembly.Request, cmd *cobra.Command) error {
			path, _ := cmd.Flags().GetString(flagUpload)
			upload, err := a.service.ReadUpload(path)
			if err != nil {
				return err
			}
			result, err := a.service.ConvertUploaded(ctx, assembly.ConvertRequest{Request: req, Upload: upload})
			if err != nil {
				return err
			}
			printArtifact(cmd.OutOrStdout(), result.Artifact)
			fmt.Fprintf(cmd.OutOrStdout(), "pages: %d\n", result.Pages)
			return nil
		})
	cmd.Use = "convert --record case.json --upload edited.docx [exhibit.pdf ...]"
	cmd.Flags().String(flagUpload, "", "Edited affidavit .docx")
	_ = cmd.MarkFlagRequired(flagUpload)
	return cmd
}

func newGenerateCmd() *cobra.Command {
	return newAssemblyCmd("generate", "Write both the editable .docx and the merged PDF",
		func(ctx context.Context, a *app, req assembly.Request, cmd *cobra.Command) error {
			result, err := a.service.Generate(ctx, req)
			if err != nil {
				return err
			}
			printArtifact(cmd.OutOrStdout(), result.Docx.Artifact)
			if result.PDFError != "" {
				return fmt.Errorf("editable document written, PDF failed: %s", result.PDFError)
			}
			printArtifact(cmd.OutOrStdout(), result.PDF.Artifact)
			return nil
		})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// readRequest loads the --record file and the exhibit arguments
func readRequest(cmd *cobra.Command, args []string, service *assembly.Service) (assembly.Request, error) {
	path, err := cmd.Flags().GetString(flagRecord)
	if err != nil {
		return assembly.Request{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return assembly.Request{}, fmt.Errorf("failed to read case record: %w", err)
	}
	record, err := casefile.ParseJSON(data)
	if err != nil {
		return assembly.Request{}, err
	}

	req := assembly.Request{Record: record, Exhibits: make([]exhibit.Attachment, len(args))}
	for i, arg := range args {
		a, err := service.ReadExhibit(arg)
		if err != nil {
			return assembly.Request{}, fmt.Errorf("exhibit %d: %w", i, err)
		}
		req.Exhibits[i] = a
	}
	return req, nil
}

func printArtifact(w io.Writer, a *publish.Artifact) {
	if a.Path != "" {
		fmt.Fprintf(w, "wrote %s (%d bytes)\n", a.Path, a.Size)
		return
	}
	fmt.Fprintf(w, "published %s (%d bytes) id=%s\n", a.Name, a.Size, a.ID)
}
