package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"regimen/internal/annotator"
	"regimen/internal/app"
	"regimen/internal/config"
	"regimen/internal/db"
	"regimen/internal/domain"
	"regimen/internal/engine"
	"regimen/internal/migrate"
	"regimen/internal/repo"
	"regimen/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "rgm",
	Short: "Regimen CLI",
	Long: `Regimen runs a council of domain experts (circadian, fuel, hydration,
mindspace, performance, recovery) over your current state and turns their
negotiated opinions into one ranked daily plan.

- Workspace: a .regimen directory holding the database; config lives in
  regimen.yml next to it (or in the DB when the file is absent).
- State: per-domain scores and metrics, fed in by you or your integrations.
- Sessions: the schedule (training, meals, sauna) the experts plan around.
- Evaluate: one council cycle; the top action is the commander action,
  urgent items without a time window become alerts.
- Event log: diary of changes, view with 'rgm log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("REGIMEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", cfgPath)
			}
			if _, err := app.ResolveConfig(cmd.Context(), workspace, repo.Repo{DB: conn}); err != nil {
				return err
			}
			fmt.Println("workspace ready:", db.Path(workspace))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := app.ResolveConfig(ctx, viper.GetString("workspace"), r)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default config template",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	})
	return cfg
}

func stateCmd() *cobra.Command {
	st := &cobra.Command{Use: "state", Short: "Domain state"}
	st.AddCommand(stateSetCmd())
	st.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.Snapshot(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Domain", "Score", "Metrics", "Updated"})
				for _, s := range snap.States {
					tw.AppendRow(table.Row{s.Domain, fmt.Sprintf("%.0f", s.Score), formatMetrics(s.Metrics), s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return st
}

func stateSetCmd() *cobra.Command {
	var score float64
	var metrics []string
	cmd := &cobra.Command{
		Use:   "set <domain>",
		Short: "Set one domain's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseMetrics(metrics)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.SetDomainState(ctx, domain.DomainState{
					Domain:  args[0],
					Score:   score,
					Metrics: parsed,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().Float64Var(&score, "score", 70, "wellness score 0-100")
	cmd.Flags().StringArrayVar(&metrics, "metric", nil, "metric as key=value, repeatable")
	return cmd
}

func sessionCmd() *cobra.Command {
	s := &cobra.Command{Use: "session", Short: "Schedule sessions"}
	s.AddCommand(sessionAddCmd())
	s.AddCommand(sessionListCmd())
	s.AddCommand(sessionStatusCmd("complete", "Mark a session completed",
		func(ctx context.Context, e engine.Engine, id string) (domain.Session, error) {
			return e.CompleteSession(ctx, id, viper.GetString("actor-id"))
		}))
	s.AddCommand(sessionStatusCmd("cancel", "Cancel a planned session",
		func(ctx context.Context, e engine.Engine, id string) (domain.Session, error) {
			return e.CancelSession(ctx, id, viper.GetString("actor-id"))
		}))
	return s
}

func sessionAddCmd() *cobra.Command {
	var sessType, startAt string
	var duration int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessType == "" || startAt == "" {
				return fmt.Errorf("--type and --at required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.ScheduleSession(ctx, engine.SessionCreateOptions{
					Type:        sessType,
					StartAt:     startAt,
					DurationMin: duration,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&sessType, "type", "", "session type (training, meal, sauna, ...)")
	cmd.Flags().StringVar(&startAt, "at", "", "start time, RFC3339")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in minutes")
	return cmd
}

func sessionListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListSessions(ctx, status, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Status", "Start", "Min"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Type, s.Status, s.StartAt, s.DurationMin})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "n", 50, "max sessions")
	return cmd
}

func sessionStatusCmd(use, short string, fn func(context.Context, engine.Engine, string) (domain.Session, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := fn(ctx, e, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func evaluateCmd() *cobra.Command {
	var annotate bool
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one council cycle and print the plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Evaluate(ctx, engine.EvaluateOptions{
					ActorID:  viper.GetString("actor-id"),
					Annotate: annotate,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				renderResult(res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&annotate, "annotate", false, "add a prose summary (needs REGIMEN_GENAI_API_KEY)")
	return cmd
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the latest evaluated plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.LatestResult(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				renderResult(res)
				return nil
			})
		},
	}
}

func historyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past evaluations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListResults(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Commander", "Focus", "Ranked", "Alerts"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.EvaluatedAt, r.Commander.ID, r.FocusDomain, len(r.Ranked), len(r.Alerts)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of evaluations")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	var actor, name string
	ak := &cobra.Command{Use: "apikey", Short: "API keys"}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plaintext, err := e.CreateAPIKey(ctx, actor, name)
				if err != nil {
					return err
				}
				return printJSON(map[string]string{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"key":      plaintext,
				})
			})
		},
	}
	create.Flags().StringVar(&actor, "actor", "", "actor the key authenticates")
	create.Flags().StringVar(&name, "name", "", "key label")
	ak.AddCommand(create)
	return ak
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var dev bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), workspace, r)
			if err != nil {
				return err
			}
			e := newEngine(cmd.Context(), conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("REGIMEN_JWT_SECRET"), DevMode: dev}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("REGIMEN_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Regimen API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&dev, "dev", false, "enable the /auth/dev/login endpoint")
	return cmd
}

// --- helpers ---

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEngine(ctx context.Context, conn *sql.DB, cfg *config.Config) engine.Engine {
	e := engine.New(conn, cfg)
	if !cfg.Annotator.Disabled {
		if a, err := annotator.New(ctx, cfg.Annotator.Model, slog.Default()); err == nil {
			e.Annotator = a
		}
	}
	return e
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := app.ResolveConfig(ctx, workspace, repo.Repo{DB: conn})
	if err != nil {
		return err
	}
	return fn(ctx, newEngine(ctx, conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func renderResult(res domain.Result) {
	fmt.Printf("cycle %s at %s (focus: %s)\n\n", res.CycleID, res.EvaluatedAt, res.FocusDomain)
	fmt.Printf(">> %s — %s\n", res.Commander.Title, res.Commander.Rationale)
	if len(res.Ranked) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"#", "Action", "Domain", "Urgency", "Priority", "Window"})
		for i, sa := range res.Ranked {
			tw.AppendRow(table.Row{i + 1, sa.Title, sa.Domain, fmt.Sprintf("%.0f", sa.Urgency), fmt.Sprintf("%.1f", sa.Priority), formatWindow(sa.Window)})
		}
		tw.Render()
	}
	for _, a := range res.Alerts {
		fmt.Printf("! %s (urgency %.0f)\n", a.Title, a.Urgency)
	}
	if res.Narrative != "" {
		fmt.Println("\n" + res.Narrative)
	}
}

func formatWindow(w *domain.TimeWindow) string {
	if w == nil {
		return ""
	}
	return fmt.Sprintf("%02d:00-%02d:59", w.StartHour, w.EndHour)
}

func formatMetrics(m map[string]float64) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s=%.1f", k, v))
	}
	return strings.Join(parts, " ")
}

func parseMetrics(items []string) (map[string]float64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid metric %q, want key=value", item)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid metric value %q: %w", item, err)
		}
		out[strings.TrimSpace(k)] = f
	}
	return out, nil
}
