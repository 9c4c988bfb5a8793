package notify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	api "github.com/tphakala/healthdesk/internal/api/v2"
	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/httpclient"
	"github.com/tphakala/healthdesk/internal/toast"
)

const requestTimeout = 10 * time.Second

// options are the notify flags.
type options struct {
	server      string
	token       string
	title       string
	description string
	variant     string
	ttl         time.Duration
}

// Command returns a cobra command that announces a toast on a running server
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Announce a toast on a running server",
		Long: `Announce a toast to every desk connected to a running HealthDesk server.

Examples:
  # Informational toast with the default lifetime
  healthdesk notify --title="Clinic closes at 16:00 today"

  # Error toast that stays for ten seconds
  healthdesk notify --variant=error --title="Lab results delayed" --description="Courier is late" --ttl=10s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.server == "" {
				opts.server = defaultServer(settings)
			}
			client := httpclient.New(&httpclient.Config{
				DefaultTimeout: requestTimeout,
				UserAgent:      "healthdesk-notify",
			})
			defer client.Close()

			t, err := announce(cmd.Context(), client, opts)
			if err != nil {
				return fmt.Errorf("failed to announce toast: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Toast announced: id=%d variant=%s ttl=%s\n", t.ID, t.Variant, t.TTL)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "Server base URL (default from webserver settings)")
	cmd.Flags().StringVar(&opts.token, "token", "", "Bearer token when the server requires auth")
	cmd.Flags().StringVar(&opts.title, "title", "", "Toast title")
	cmd.Flags().StringVar(&opts.description, "description", "", "Optional second line")
	cmd.Flags().StringVar(&opts.variant, "variant", string(toast.VariantInfo), "success, error or info")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "How long the toast stays visible (default server setting)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func defaultServer(settings *conf.Settings) string {
	host := settings.WebServer.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, settings.WebServer.Port)
}

// announce posts the toast and returns what the server created.
func announce(ctx context.Context, client *httpclient.Client, opts options) (toast.Toast, error) {
	if _, err := toast.ParseVariant(opts.variant); err != nil {
		return toast.Toast{}, err
	}
	if opts.ttl < 0 {
		return toast.Toast{}, fmt.Errorf("ttl must not be negative")
	}

	req := api.AnnounceRequest{
		Title:       opts.title,
		Description: opts.description,
		Variant:     opts.variant,
		TTLMs:       opts.ttl.Milliseconds(),
	}

	var headers []http.Header
	if opts.token != "" {
		headers = append(headers, http.Header{"Authorization": []string{"Bearer " + opts.token}})
	}

	url := strings.TrimSuffix(opts.server, "/") + "/api/v2/toasts"
	var created toast.Toast
	if err := client.JSON(ctx, http.MethodPost, url, req, &created, headers...); err != nil {
		return toast.Toast{}, err
	}
	return created, nil
}
