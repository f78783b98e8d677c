package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"paper_navigator/internal/app"
	"paper_navigator/internal/chat"
	"paper_navigator/internal/server"
)

// newRootCmd assembles the CLI.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paper_navigator",
		Short: "Ask questions about your PDF documents",
		Long: `Paper Navigator indexes the PDF files in DOCUMENTS_PATH into a local vector
database and answers questions about them with a model served by Ollama.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newIngestCmd(),
		newAskCmd(),
		newClearCmd(),
		newExportCmd(),
		newImportCmd(),
	)
	return root
}

// newServeCmd runs the HTTP API until interrupted.
func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr == "" {
				addr = rt.cfg.HTTPAddr
			}
			srv := server.New(server.Options{Addr: addr, MaxUploadMB: rt.cfg.MaxUploadMB}, rt.app, chat.NewStore(), rt.metrics, rt.log)
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive console chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.app.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the index from the documents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			built, err := rt.app.ResetIndex(cmd.Context())
			if err != nil {
				return err
			}
			if !built {
				return fmt.Errorf("no PDF documents found in %s", rt.cfg.DocumentsPath)
			}
			st, err := rt.app.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %d document(s)\n", st.Chunks, len(st.Indexed))
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			ans, err := rt.app.Query(cmd.Context(), strings.Join(args, " "), func(tok string) error {
				_, err := fmt.Fprint(out, tok)
				return err
			})
			fmt.Fprintln(out)
			if errors.Is(err, app.ErrNoIndex) {
				return errors.New(chat.EmptyMessage)
			} else if err != nil {
				return err
			}
			if showSources {
				for i, s := range ans.Sources {
					fmt.Fprintf(out, "%d. %s, %s (similarity: %.2f)\n", i+1, s.Source, s.Section, s.Similarity)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", true, "print the retrieved sources after the answer")
	return cmd
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all documents and the vector database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("this deletes all uploaded files and the database, rerun with --yes to confirm")
			}
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.app.ClearWorkspace(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All data has been deleted!")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write a snapshot of the index, gzip-compressed if the name ends in .gz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.app.Export(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "💾 Index exported to %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the index with a snapshot made by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.app.Import(args[0]); err != nil {
				return err
			}
			st, err := rt.app.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d chunks\n", st.Chunks)
			return nil
		},
	}
}
