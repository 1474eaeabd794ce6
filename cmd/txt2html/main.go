// Command txt2html converts a "title: url" text report into the same
// single-file HTML page the bot sends for /html.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/set-night/batchtxt/internal/htmlreport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var out, title, player string

	root := &cobra.Command{
		Use:           "txt2html <report.txt>",
		Short:         "Convert a text link report to HTML",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}

			base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
			if title == "" {
				title = base
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(in), base+".html")
			}

			page, links, err := htmlreport.Convert(string(data), htmlreport.Options{
				Title:          title,
				PlayerTemplate: player,
				GeneratedAt:    time.Now(),
			})
			if err != nil {
				return err
			}
			if links == 0 {
				return fmt.Errorf("%s: no \"title: url\" lines found", in)
			}

			if err := os.WriteFile(out, page, 0o644); err != nil {
				return fmt.Errorf("write html: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d links\n", out, links)
			return nil
		},
	}
	root.Flags().StringVarP(&out, "out", "o", "", "output file (default: input name with .html)")
	root.Flags().StringVar(&title, "title", "", "page title (default: input file name)")
	root.Flags().StringVar(&player, "player", os.Getenv("PLAYER_URL_TEMPLATE"), "player URL template for master.mpd links")
	return root
}
