package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "educlip",
		Short:        "Turn lecture recordings into ranked study clips",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	process := &cobra.Command{
		Use:          "process <input>",
		Short:        "Process a local video file end to end",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0])
		},
	}
	process.Flags().String("out", "out", "Output directory")
	process.Flags().Int("clips", 0, "Number of clips (0 = derive from video length)")
	process.Flags().Bool("subtitles", false, "Write per-clip SRT subtitles")

	// Hidden tuning flags (internal)
	process.Flags().Int("min", 20, "Min clip duration seconds")
	process.Flags().Int("max", 90, "Max clip duration seconds")
	process.Flags().Int("gap", 5, "Min gap between clips seconds")
	_ = process.Flags().MarkHidden("min")
	_ = process.Flags().MarkHidden("max")
	_ = process.Flags().MarkHidden("gap")

	serve := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runServe,
	}
	serve.Flags().String("addr", ":8080", "Listen address")
	serve.Flags().String("uploads", "uploads", "Upload directory")
	serve.Flags().String("out", "out", "Output directory")
	serve.Flags().Bool("subtitles", false, "Write per-clip SRT subtitles")

	root.AddCommand(process, serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
