package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codestreak/internal/config"
	"codestreak/internal/db"
	"codestreak/internal/domain"
	"codestreak/internal/engine"
	"codestreak/internal/judge"
	"codestreak/internal/migrate"
	"codestreak/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cs",
	Short: "Codestreak CLI",
	Long: `Codestreak tracks a multi-day coding challenge: problems per day, a shared
leaderboard, and an automated pipeline that checks each participant's judge
submissions and commits points and streaks exactly once per day.

Key commands:
- cs serve        start the HTTP API
- cs trigger      point the pipeline at a day (operator action)
- cs run          execute one bounded scoring pass (cron calls this hourly)
- cs leaderboard  show standings`,
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
		// The scheduler treats 10 as "rate limited, retry next hour".
		if errors.Is(err, judge.ErrRateLimited) {
			os.Exit(10)
		}
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CODESTREAK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(triggerCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(problemCmd())
	rootCmd.AddCommand(participantCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(runsCmd())
}

func runCmd() *cobra.Command {
	var day, maxBatch, pacingMS int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one bounded scoring pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.PassOptions{Day: day, MaxBatch: maxBatch}
				if pacingMS >= 0 {
					opts.Pacing = time.Duration(pacingMS) * time.Millisecond
				}
				report, err := e.RunPass(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(report)
			})
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "target day (0 = read processing-day state)")
	cmd.Flags().IntVar(&maxBatch, "max", 0, "max participants per pass (0 = config default)")
	cmd.Flags().IntVar(&pacingMS, "pacing-ms", -1, "inter-participant delay in ms (-1 = config default)")
	return cmd
}

func triggerCmd() *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start processing a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if day < 1 {
				return fmt.Errorf("--day must be >= 1")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.StartDay(ctx, day); err != nil {
					return err
				}
				fmt.Printf("processing day set to %d\n", day)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "day to process")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the processing-day state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				state, err := e.State.Current(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"day": state.Day, "stopped": state.Stopped()})
				}
				fmt.Println(state.String())
				return nil
			})
		},
	}
}

func completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Force the processing job to stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.State.Complete(ctx); err != nil {
					return err
				}
				fmt.Println("job stopped")
				return nil
			})
		},
	}
}

func problemCmd() *cobra.Command {
	prob := &cobra.Command{Use: "problem", Short: "Manage problems"}
	prob.AddCommand(problemAddCmd())
	prob.AddCommand(problemListCmd())
	prob.AddCommand(problemPublishCmd())
	prob.AddCommand(problemSolutionCmd())
	prob.AddCommand(problemPublishSolutionsCmd())
	return prob
}

func problemAddCmd() *cobra.Command {
	var name, link string
	var points, day int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a problem (unpublished)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			if points <= 0 {
				return fmt.Errorf("--points must be positive")
			}
			if day < 1 {
				return fmt.Errorf("--day must be >= 1")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p := domain.Problem{
					Name:      name,
					Points:    points,
					Link:      link,
					Day:       day,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				id, err := e.Repo.InsertProblem(ctx, p)
				if err != nil {
					return err
				}
				created, err := e.Repo.GetProblem(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "problem name (judge title)")
	cmd.Flags().IntVar(&points, "points", 0, "point value")
	cmd.Flags().StringVar(&link, "link", "", "problem link")
	cmd.Flags().IntVar(&day, "day", 0, "assigned day")
	return cmd
}

func problemListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListPublishedProblems(ctx)
				if all {
					items, err = e.Repo.ListAllProblems(ctx)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include unpublished problems")
	return cmd
}

func problemPublishCmd() *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a day's problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.Repo.PublishDay(ctx, day)
				if err != nil {
					return err
				}
				fmt.Printf("published %d problem(s) for day %d\n", n, day)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "day to publish")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}

func problemSolutionCmd() *cobra.Command {
	var id int64
	var link string
	cmd := &cobra.Command{
		Use:   "solution",
		Short: "Set a problem's solution link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if link == "" {
				return fmt.Errorf("--link required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.SetSolutionLink(ctx, id, link)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "problem id")
	cmd.Flags().StringVar(&link, "link", "", "solution link")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func problemPublishSolutionsCmd() *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "publish-solutions",
		Short: "Publish a day's solutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.Repo.PublishSolutions(ctx, day)
				if err != nil {
					return err
				}
				fmt.Printf("published %d solution(s) for day %d\n", n, day)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "day whose solutions to publish")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}

func participantCmd() *cobra.Command {
	part := &cobra.Command{Use: "participant", Short: "Manage participants"}
	part.AddCommand(participantAddCmd())
	return part
}

func participantAddCmd() *cobra.Command {
	var username, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.RegisterParticipant(ctx, username, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "judge username")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.Leaderboard(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Username", "Streak", "Points", "Last Day"})
				for i, entry := range items {
					tw.AppendRow(table.Row{i + 1, entry.Username, entry.Streak, entry.Points, entry.LastProcessedDay})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func runsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent automation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				runs, err := e.Repo.LatestRuns(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Day", "Processed", "Remaining", "Status", "Error"})
				for _, run := range runs {
					tw.AppendRow(table.Row{run.StartedAt, run.DayProcessed, run.UsersProcessed, run.TotalRemaining, run.Status, run.ErrorMessage})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of runs")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{
					JWTSecret:     os.Getenv("CODESTREAK_JWT_SECRET"),
					AdminPassword: adminPassword(e.Config),
				}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("CODESTREAK_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Codestreak API on http://%s%s\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func adminPassword(cfg *config.Config) string {
	if v := os.Getenv("CODESTREAK_ADMIN_PASSWORD"); v != "" {
		return v
	}
	return cfg.Auth.AdminPassword
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(ctx, conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

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
