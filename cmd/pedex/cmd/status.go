package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pedex/cmd/internal/app"
	"pedex/cmd/internal/state"
	"pedex/cmd/security/token"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live session of a running instance, or the stored credential",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()

		if cfg.StatusAddr != "" {
			view, err := fetchView(cmd.Context(), cfg.StatusAddr)
			if err == nil {
				printView(out, view)
				return nil
			}
			log.Debug("status.remote.unavailable", "err", err)
		}

		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		creds := a.Credentials()
		cred, ok := creds.Read(cmd.Context())
		if !ok {
			fmt.Fprintln(out, "not signed in")
			return nil
		}

		fmt.Fprintf(out, "credential: %s (tier %s)\n", token.Fingerprint(cred.AccessToken), cfg.Credential.Tier)
		exp, err := creds.ExpiresAt(cred.AccessToken)
		switch {
		case err != nil:
			fmt.Fprintln(out, "expires:    unknown (token undecodable)")
		case creds.IsExpired(cred.AccessToken):
			fmt.Fprintf(out, "expires:    %s (expired)\n", exp.Format(time.RFC3339))
		default:
			fmt.Fprintf(out, "expires:    %s\n", exp.Format(time.RFC3339))
		}
		fmt.Fprintf(out, "refresh:    %t\n", cred.RefreshToken != "")
		return nil
	},
}

func fetchView(ctx context.Context, addr string) (state.View, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, app.RuntimeBaseURL(addr)+"/v1/session", nil)
	if err != nil {
		return state.View{}, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return state.View{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return state.View{}, fmt.Errorf("status endpoint returned %d", res.StatusCode)
	}

	var v state.View
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return state.View{}, fmt.Errorf("decode session view: %w", err)
	}
	return v, nil
}

func printView(w io.Writer, v state.View) {
	if !v.Authenticated {
		fmt.Fprintf(w, "not signed in (live %s)\n", v.Live)
		return
	}
	if v.Identity != nil {
		fmt.Fprintf(w, "signed in:    %s (id %d)\n", v.Identity.Email, v.Identity.ID)
	}
	fmt.Fprintf(w, "live:         %s", v.Live)
	if v.RealtimeDegraded {
		fmt.Fprint(w, " (degraded)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "transactions: %d\n", len(v.Transactions))
	fmt.Fprintf(w, "trades:       %d\n", len(v.TradeHistory))
	if v.CurrentPrice != nil {
		fmt.Fprintf(w, "price:        buy %s / sell %s\n", v.CurrentPrice.BuyPrice, v.CurrentPrice.SellPrice)
	}
	if v.LastError != "" {
		fmt.Fprintf(w, "last error:   %s\n", v.LastError)
	}
}
