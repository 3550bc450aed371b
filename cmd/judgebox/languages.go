package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/runtime/docker"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List configured language runtimes",
	RunE:  runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	dockerCfg, err := cfg.Docker()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tIMAGE\tCOMPILED\tRUN")
	for _, lang := range sortedLanguages(dockerCfg.Languages) {
		lc := dockerCfg.Languages[lang]
		image := lc.Image
		if lc.RunImage != "" {
			image += " -> " + lc.RunImage
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", lang, image, lc.Compiled(), strings.Join(lc.RunCmd, " "))
	}
	return w.Flush()
}

func sortedLanguages(languages map[execution.Language]docker.LanguageConfig) []execution.Language {
	out := make([]execution.Language, 0, len(languages))
	for lang := range languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
