package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mikeboe/research-crew/pkg/config"
	"github.com/mikeboe/research-crew/pkg/research"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginTop(1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
)

var (
	goal          string
	outFile       string
	showResearch  bool
	query         string
	questionsFile string
	evalOut       string
)

func main() {
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "research-crew",
		Short: "A terminal-based market research crew",
		Long:  `research-crew plans search queries for a research goal, researches them with an expand-search-rerank pipeline and synthesizes a final report.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the crew for a research goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("goal") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter research goal: ")
				input, _ := reader.ReadString('\n')
				goal = strings.TrimSpace(input)
			}
			if strings.TrimSpace(goal) == "" {
				return fmt.Errorf("research goal cannot be empty")
			}

			engine, _, err := research.New(ctx, config.Load())
			if err != nil {
				return err
			}
			engine.OnStageUpdate = func(state research.StageState) {
				fmt.Fprintln(os.Stderr, mutedStyle.Render(fmt.Sprintf("[%s] %s", state.Name, state.Status)))
			}

			fmt.Println(mutedStyle.Render("Goal: " + goal))
			res, err := engine.Run(ctx, goal)
			if err != nil {
				return err
			}

			if showResearch {
				if st, ok := res.Stage(research.StageResearch); ok {
					fmt.Println(titleStyle.Render("RESEARCH FINDINGS"))
					fmt.Println(st.Output)
				}
			}

			fmt.Println(titleStyle.Render("FINAL REPORT"))
			fmt.Println(res.Report)

			if outFile != "" {
				if err := os.WriteFile(outFile, []byte(res.Report), 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				slog.Info("Report written", "path", outFile)
			}
			return nil
		},
	}
	runCmd.Flags().StringVarP(&goal, "goal", "g", "", "The research goal")
	runCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the final report to this file")
	runCmd.Flags().BoolVar(&showResearch, "show-research", false, "Also print the raw research findings")

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Run the advanced search pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("--query must not be empty")
			}
			_, pipeline, err := research.New(ctx, config.Load())
			if err != nil {
				return err
			}

			results, rep, err := pipeline.SearchWithReport(ctx, query)
			if err != nil {
				return err
			}
			if rep.AllFailed {
				fmt.Println(errorStyle.Render("Every sub-query failed; see the log for details."))
			}
			if len(results) == 0 {
				fmt.Println("No results found.")
				return nil
			}
			for i, r := range results {
				fmt.Println(titleStyle.Render(fmt.Sprintf("RESULT %d:", i+1)))
				fmt.Println(r.Content)
				fmt.Println(mutedStyle.Render("  (Source: " + r.Source + ")"))
			}
			return nil
		},
	}
	searchCmd.Flags().StringVarP(&query, "query", "q", "", "The search query")
	_ = searchCmd.MarkFlagRequired("query")

	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the crew over a set of test questions and write JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			questions := research.DefaultEvalQuestions
			if questionsFile != "" {
				f, err := os.Open(questionsFile)
				if err != nil {
					return fmt.Errorf("failed to open questions: %w", err)
				}
				defer f.Close()
				if questions, err = research.ReadQuestions(f); err != nil {
					return err
				}
			}

			var w io.Writer = os.Stdout
			if evalOut != "" {
				f, err := os.Create(evalOut)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			engine, _, err := research.New(ctx, config.Load())
			if err != nil {
				return err
			}
			records, err := engine.Evaluate(ctx, questions, w)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range records {
				if r.Error != "" {
					failed++
				}
			}
			slog.Info("Evaluation finished", "questions", len(records), "failed", failed)
			return nil
		},
	}
	evalCmd.Flags().StringVar(&questionsFile, "questions", "", "File with one question per line")
	evalCmd.Flags().StringVarP(&evalOut, "out", "o", "", "Write JSON lines to this file instead of stdout")

	rootCmd.AddCommand(runCmd, searchCmd, evalCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
