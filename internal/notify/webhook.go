package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hugh/addon-herd/internal/manifest"
)

// Report is the aggregate a sync run hands to the dispatcher.
type Report struct {
	GroupsCount  int
	UsersCount   int
	FailedUsers  int
	DiffsByAddon map[string]manifest.Diff
	SourceLabel  string
}

// Dispatcher posts sync reports to an operator-configured webhook. Delivery
// is best-effort: every failure is swallowed and logged, never returned.
type Dispatcher struct {
	logger *slog.Logger
	client *http.Client
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Username string `json:"username,omitempty"`
	Content  string `json:"content"`
}

// Notify formats and posts the report. A missing webhook URL or an empty
// report is a no-op.
func (d *Dispatcher) Notify(ctx context.Context, webhookURL string, report Report) {
	if webhookURL == "" {
		return
	}

	message := Render(report)
	if message == "" {
		return
	}

	payload, err := json.Marshal(webhookPayload{
		Username: "addon-herd",
		Content:  message,
	})
	if err != nil {
		d.logger.Warn("failed to encode webhook payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		d.logger.Warn("failed to build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("webhook post failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.Warn("webhook post rejected", "status", resp.StatusCode)
	}
}

// Render builds the human-readable report: a summary line plus one detail
// block per addon that changed, with +/- lines for resources and catalogs.
func Render(report Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Synced %d user(s) across %d group(s)", report.UsersCount, report.GroupsCount)
	if report.FailedUsers > 0 {
		fmt.Fprintf(&b, ", %d failed", report.FailedUsers)
	}
	b.WriteString("\n")

	// Stable block order regardless of map iteration.
	names := make([]string, 0, len(report.DiffsByAddon))
	for name := range report.DiffsByAddon {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		diff := report.DiffsByAddon[name]
		if diff.Empty() {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", name)
		for _, r := range diff.AddedResources {
			fmt.Fprintf(&b, "+ resource %s\n", r)
		}
		for _, r := range diff.RemovedResources {
			fmt.Fprintf(&b, "- resource %s\n", r)
		}
		for _, c := range diff.AddedCatalogs {
			fmt.Fprintf(&b, "+ catalog %s\n", c)
		}
		for _, c := range diff.RemovedCatalogs {
			fmt.Fprintf(&b, "- catalog %s\n", c)
		}
	}

	if report.SourceLabel != "" {
		fmt.Fprintf(&b, "\nsource: %s\n", report.SourceLabel)
	}

	return b.String()
}
