package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"librarian/internal/service"
	"librarian/internal/tui"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "librarian",
		Short:        "Smart Librarian: book recommendations from a local catalog",
		SilenceUsage: true,
		Long: `Librarian matches what you ask for against a catalog of book summaries
and recommends the closest title, worded by a language model.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, cfgPath)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (defaults to ./config.yaml or ~/.config/librarian/config.yaml)")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, cfgPath)
		},
	}

	ask := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask for one recommendation and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, cfgPath, strings.Join(args, " "))
		},
	}

	index := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector index from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, cfgPath)
		},
	}

	root.AddCommand(chat, ask, index)
	return root
}

func runChat(cmd *cobra.Command, cfgPath string) error {
	a, err := newApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureIndex(cmd.Context(), false); err != nil {
		return err
	}
	m := tui.New(a.librarian, a.speaker, a.listener, a.cfg.Speech.TTSEnabled)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}

func runAsk(cmd *cobra.Command, cfgPath, query string) error {
	a, err := newApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.ensureIndex(ctx, false); err != nil {
		return err
	}
	reply, err := a.librarian.Respond(ctx, query)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch reply.Kind {
	case service.KindSummary:
		fmt.Fprintf(out, "Here's the summary for '%s':\n%s\n", reply.Title, reply.Summary)
	case service.KindRecommendation:
		fmt.Fprintf(out, "%s\n\nSummary:\n%s\n", reply.Text, reply.Summary)
	default:
		fmt.Fprintln(out, reply.Text)
	}
	if a.cfg.Speech.TTSEnabled {
		for _, part := range reply.Spoken() {
			if err := a.speaker.Speak(ctx, part); err != nil {
				a.log.Warn("speech output failed", "err", err)
				break
			}
		}
	}
	return nil
}

func runIndex(cmd *cobra.Command, cfgPath string) error {
	a, err := newApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureIndex(cmd.Context(), true); err != nil {
		return err
	}
	n, err := a.index.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("count index: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d books into %s store (%s)\n", n, a.cfg.VectorStore.Type, a.embedderName)
	return nil
}
