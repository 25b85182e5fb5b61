package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/classify"
	"github.com/zen-systems/switchboard/pkg/router"
	"github.com/zen-systems/switchboard/pkg/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP router",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(a.router,
				server.WithLogger(a.logger),
				server.WithGatherer(a.registry),
				server.WithRateLimit(a.cfg.Server.RateLimit, a.cfg.Server.Burst),
				server.WithCORSOrigins(a.cfg.Server.CORSOrigins),
				server.WithRequestTimeout(time.Duration(a.cfg.Server.RequestTimeout)*time.Second),
			)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

type requestFlags struct {
	backend     string
	system      string
	temperature float64
	maxTokens   int
	rules       []string
	noCache     bool
	jsonOut     bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "backend id to try first")
	cmd.Flags().StringVar(&f.system, "system", "", "system prompt")
	cmd.Flags().Float64Var(&f.temperature, "temperature", -1, "sampling temperature (unset when negative)")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "reply token limit")
	cmd.Flags().StringArrayVar(&f.rules, "rule", nil, "override rule pattern=backend (repeatable)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "bypass the reply cache")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print JSON")
}

func (f *requestFlags) request(prompt string) (router.RouteRequest, error) {
	rules, err := parseRules(f.rules)
	if err != nil {
		return router.RouteRequest{}, err
	}
	var msgs []adapter.Message
	if f.system != "" {
		msgs = append(msgs, adapter.Message{Role: adapter.RoleSystem, Content: f.system})
	}
	msgs = append(msgs, adapter.Message{Role: adapter.RoleUser, Content: prompt})

	req := router.RouteRequest{
		Messages:  msgs,
		Backend:   f.backend,
		Rules:     rules,
		MaxTokens: f.maxTokens,
		NoCache:   f.noCache,
	}
	if f.temperature >= 0 {
		t := f.temperature
		req.Temperature = &t
	}
	return req, nil
}

func askCmd() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Route a prompt and print the reply",
		Long: `Classifies the prompt, ranks the backends and tries them in order
until one answers. Use --backend to put a backend first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := flags.request(strings.Join(args, " "))
			if err != nil {
				return err
			}
			res, err := a.router.RouteAndExecute(ctx, req)
			if err != nil {
				return err
			}

			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			status := ""
			if res.CacheHit {
				status = " (cached)"
			}
			fmt.Fprintf(os.Stderr, "Routed to %s/%s in %.0fms%s\n", res.BackendUsed, res.Model, res.ElapsedMs, status)
			fmt.Fprintln(cmd.OutOrStdout(), res.Content)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func routeCmd() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "route [prompt]",
		Short: "Show the candidate order for a prompt without calling any backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := flags.request(strings.Join(args, " "))
			if err != nil {
				return err
			}
			d, err := a.router.Route(req)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), d)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "signals: %s\n", formatList(d.Signals.Tags()))
			if d.Override != "" {
				fmt.Fprintf(out, "override: %s (%s)\n", d.Override, d.OverrideSource)
			}
			if d.Preferred != "" {
				fmt.Fprintf(out, "preferred: %s\n", d.Preferred)
			}
			for _, warn := range d.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warn)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tBACKEND\tSCORE\tAVAILABLE")
			scores := make(map[string]router.Candidate, len(d.Ranking))
			for _, c := range d.Ranking {
				scores[c.ID] = c
			}
			for i, id := range d.Candidates {
				c, ok := scores[id]
				if !ok {
					fmt.Fprintf(w, "%d\t%s\t-\t-\n", i+1, id)
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%.1f\t%t\n", i+1, id, c.Score, c.Available)
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	return cmd
}

func classifyCmd() *cobra.Command {
	var jsonOut bool
	var ruleFlags []string

	cmd := &cobra.Command{
		Use:   "classify [prompt]",
		Short: "Print the content signals detected in a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			rules, err := parseRules(ruleFlags)
			if err != nil {
				return err
			}
			rules = append(rules, cfg.Rules...)

			h := classify.NewHeuristic(classify.WithKeywords(cfg.Classifier.Keywords))
			msgs := []adapter.Message{{Role: adapter.RoleUser, Content: strings.Join(args, " ")}}
			s := h.Classify(msgs, rules)

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), s)
			}
			out := cmd.OutOrStdout()
			if s.Empty {
				fmt.Fprintln(out, "empty")
				return nil
			}
			fmt.Fprintf(out, "tags:    %s\n", formatList(s.Tags()))
			fmt.Fprintf(out, "length:  %s\n", s.Length)
			fmt.Fprintf(out, "reasons: %s\n", formatList(s.Reasons))
			if s.Override != "" {
				fmt.Fprintf(out, "rule:    %q -> %s\n", s.OverridePattern, s.Override)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	cmd.Flags().StringArrayVar(&ruleFlags, "rule", nil, "override rule pattern=backend (repeatable)")
	return cmd
}

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List configured backends and their credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADAPTER\tMODEL\tWEIGHT\tSTATE\tCREDENTIALS\tTAGS")
			for _, d := range a.router.Catalog() {
				creds := "ok"
				if !d.Credentialed {
					creds = "missing " + d.KeyEnv
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					d.ID, d.AdapterName(), d.Model, d.Weight, d.State, creds, formatList(d.Tags))
			}
			return w.Flush()
		},
	}
}

func aliasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aliases",
		Short: "List model aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tMODEL")
			for _, name := range cfg.AliasNames() {
				fmt.Fprintf(w, "%s\t%s\n", name, cfg.Aliases[name])
			}
			return w.Flush()
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

