package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/subvoice/internal/bridge"
	"github.com/dgnsrekt/subvoice/internal/langs"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	statusAddr       string
	statusClearCache bool
	statusClearQueue bool
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show what a running bridge is doing",
	Long:    paragraph(fmt.Sprintf("\n%s the status of a running %s: the active page, its queue and the phrase cache.", keyword("Show"), keyword("subvoice serve"))),
	Example: paragraph("subvoice status\nsubvoice status --addr 127.0.0.1:9000\nsubvoice status --clear-cache"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr := statusAddr
		if addr == "" {
			addr = viper.GetString("bridge.addr")
		}
		base := "http://" + addr
		if statusClearQueue {
			if err := clearResource(cmd.Context(), http.DefaultClient, base, "queue"); err != nil {
				return err
			}
		}
		if statusClearCache {
			if err := clearResource(cmd.Context(), http.DefaultClient, base, "cache"); err != nil {
				return err
			}
		}
		st, err := fetchStatus(cmd.Context(), http.DefaultClient, base)
		if err != nil {
			return err
		}

		style := glamour.WithAutoStyle()
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			style = glamour.WithStandardStyle(styles.NoTTYStyle)
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithColorProfile(lipgloss.ColorProfile()),
			style,
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return fmt.Errorf("unable to create renderer: %w", err)
		}
		out, err := r.Render(statusMarkdown(st, time.Now()))
		if err != nil {
			return fmt.Errorf("unable to render markdown: %w", err)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func fetchStatus(ctx context.Context, client *http.Client, base string) (bridge.StatusResponse, error) {
	var st bridge.StatusResponse

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/api/status", nil)
	if err != nil {
		return st, fmt.Errorf("unable to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, fmt.Errorf("bridge is not reachable at %s: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("unable to decode status: %w", err)
	}
	return st, nil
}

// clearResource empties the bridge's queue or cache.
func clearResource(ctx context.Context, client *http.Client, base, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, strings.TrimSuffix(base, "/")+"/api/"+name, nil)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge is not reachable at %s: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			return fmt.Errorf("unable to clear %s: %s", name, body.Error)
		}
		return fmt.Errorf("unable to clear %s: HTTP status %d", name, resp.StatusCode)
	}
	return nil
}

// statusMarkdown describes st as a markdown report.
func statusMarkdown(st bridge.StatusResponse, now time.Time) string {
	var b strings.Builder
	b.WriteString("# subvoice\n\n")

	s := st.Settings
	enabled := "on"
	if !s.IsEnabled {
		enabled = "off"
	}
	b.WriteString("## Settings\n\n")
	fmt.Fprintf(&b, "- Language: **%s** (`%s`)\n", langs.Name(s.TargetLanguage), s.TargetLanguage)
	fmt.Fprintf(&b, "- Volume: %d%%\n", s.Volume)
	fmt.Fprintf(&b, "- Speed: %d%%\n", s.Speed)
	fmt.Fprintf(&b, "- Speech: %s\n\n", enabled)

	b.WriteString("## Page\n\n")
	if !st.Active || st.Session == nil {
		b.WriteString("No page is connected.\n\n")
	} else {
		sess := st.Session
		fmt.Fprintf(&b, "- Host: `%s` (%s)\n", sess.Host, sess.Source)
		fmt.Fprintf(&b, "- State: %s\n", sess.State)
		if !sess.StartedAt.IsZero() {
			fmt.Fprintf(&b, "- Connected: %s\n", humanize.RelTime(sess.StartedAt, now, "ago", "from now"))
		}
		if sess.HasSubtitles {
			fmt.Fprintf(&b, "- Subtitle file: %d cues\n", sess.Cues)
		}
		q := sess.Queue
		fmt.Fprintf(&b, "- Queue: %d pending, %s played, %s skipped, %s discarded\n",
			q.Pending, humanize.Comma(q.Played), humanize.Comma(q.Skipped), humanize.Comma(q.Discarded))
		if sess.LastCaption != "" {
			fmt.Fprintf(&b, "\n> %s\n>\n> %s\n", sess.LastCaption, sess.LastTranslation)
		}
		b.WriteString("\n")
	}

	c := st.Cache
	b.WriteString("## Cache\n\n")
	fmt.Fprintf(&b, "| Entries | Size | Hits | Misses | Hit rate |\n|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d / %d | %s | %s | %s | %.0f%% |\n",
		c.Entries, c.Capacity, humanize.Bytes(uint64(max(c.Bytes, 0))), //nolint:gosec
		humanize.Comma(c.Hits), humanize.Comma(c.Misses), c.HitRate*100)
	return b.String()
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "address of the bridge (default from config)")
	statusCmd.Flags().BoolVar(&statusClearCache, "clear-cache", false, "empty the phrase cache first")
	statusCmd.Flags().BoolVar(&statusClearQueue, "clear-queue", false, "drop the phrases waiting to play first")
}
