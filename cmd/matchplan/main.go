package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbeckmann/matchplan/internal/config"
	"github.com/pbeckmann/matchplan/internal/export"
	"github.com/pbeckmann/matchplan/internal/logging"
	"github.com/pbeckmann/matchplan/internal/notify"
	"github.com/pbeckmann/matchplan/internal/reschedule"
	"github.com/pbeckmann/matchplan/internal/schedule"
	"github.com/pbeckmann/matchplan/internal/store"
	"github.com/pbeckmann/matchplan/internal/tournament"
	"github.com/pbeckmann/matchplan/internal/verify"
)

const (
	defaultConfigFile = "config.yaml"
	defaultStateFile  = "tournament.yaml"
)

func resolveConfigPath(configFlag string) (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", fmt.Errorf("no config file found. Either create %s in the current directory or pass --config", defaultConfigFile)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "matchplan",
		Short: "Availability-based round-robin tournament scheduler",
	}

	var configFile string
	var stateFile string
	var verbose bool
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: config.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state", defaultStateFile, "Path to the tournament state file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter config.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the config file")

	generateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate the full round-robin schedule from a config file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runGenerate(configPath, stateFile, verbose)
		},
	}

	var exportPath string
	exportCmd := &cobra.Command{
		Use:          "export",
		Short:        "Export the current schedule as an Excel workbook",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runExport(configPath, stateFile, exportPath, verbose)
		},
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "schedule.xlsx", "Output Excel file path")

	statusCmd := &cobra.Command{
		Use:          "status",
		Short:        "Show every match and open reschedule request",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runStatus(configPath, stateFile, verbose)
		},
	}

	rescheduleCmd := &cobra.Command{
		Use:   "reschedule",
		Short: "Propose and vote on moving matches",
	}

	requestCmd := &cobra.Command{
		Use:          "request <match-id> <team>",
		Short:        "Propose moving a match to the next eligible slot",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runRequest(configPath, stateFile, args[0], args[1], verbose)
		},
	}

	voteCmd := &cobra.Command{
		Use:          "vote <request-id> <participant> <accept|reject>",
		Short:        "Cast one participant's vote on a pending request",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runVote(configPath, stateFile, args[0], args[1], args[2], verbose)
		},
	}

	resultCmd := &cobra.Command{
		Use:          "result <match-id> <winner>",
		Short:        "Record a match result",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runResult(configPath, stateFile, args[0], args[1], verbose)
		},
	}

	verifyCmd := &cobra.Command{
		Use:          "verify",
		Short:        "Re-check the current schedule against all constraints",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runVerify(configPath, stateFile, verbose)
		},
	}

	rescheduleCmd.AddCommand(requestCmd, voteCmd)
	rootCmd.AddCommand(initCmd, generateCmd, exportCmd, statusCmd, rescheduleCmd, resultCmd, verifyCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

const configTemplate = `# Matchplan Tournament Configuration
# ==================================
# This file defines the parameters for generating a round-robin tournament
# schedule driven by team availability.

# Tournament defines the date range matches may be scheduled in. The end
# date can be extended automatically while searching reschedule slots.
tournament:
  start_date: "2026-09-05"
  end_date: "2026-10-04"

# Active windows define, per weekday, the daily time range slots are drawn
# from. Days without a window carry no slots. Times use 24-hour format.
active_windows:
  saturday: "10:00-18:00"
  sunday: "12:00-18:00"

rules:
  match_duration_minutes: 60       # How long a match blocks its slot
  pause_duration_minutes: 30       # Minimum gap between a team's matches
  max_time_budget_hours_per_day: 3 # Per-team daily cap on scheduled play
  slot_interval_minutes: 30        # Grid width of the slot matrix
  reschedule_timeout_hours: 24     # Pending votes expire after this
  extension_days: 2                # Window extension when no slot is left

# Teams register with their members and weekly availability. Blocked
# dates override the weekly pattern for single days.
teams:
  - name: Rocket Pandas
    members: [lena, marek]
    availability:
      days:
        saturday: ["10:00-16:00"]
        sunday: ["12:00-15:00"]
  - name: Night Owls
    members: [sofia, jules]
    availability:
      days:
        saturday: ["12:00-18:00"]
      blocked:
        - "2026-09-12"
  - name: Static Void
    members: [ira, tomas]
    availability:
      days:
        saturday: ["10:00-14:00"]
        sunday: ["12:00-18:00"]

# Solo players are paired into two-member teams wherever their
# availability overlaps on an active day. Unpaired players sit out.
solo:
  - player: nadia
    availability:
      days:
        sunday: ["12:00-16:00"]
  - player: piotr
    availability:
      days:
        sunday: ["14:00-18:00"]
`

func runGenerate(configPath, statePath string, verbose bool) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(verbose)
	defer logger.Sync()

	bus := notify.NewBus(logger)
	defer bus.Close()
	drainEvents(bus, logger)

	t, err := tournament.FromConfig(cfg, tournament.Options{Notifier: bus, Logger: logger})
	if err != nil {
		return err
	}

	fmt.Printf("Scheduling %d teams between %s and %s...\n",
		len(t.Teams()),
		cfg.Tournament.StartDate.Time.Format(schedule.DateLayout),
		cfg.Tournament.EndDate.Time.Format(schedule.DateLayout))

	report, err := t.GenerateSchedule()
	if err != nil {
		return err
	}

	fmt.Printf("✓ %d rounds, %d matches scheduled", report.Rounds, report.Scheduled)
	if report.Rescued > 0 {
		fmt.Printf(" (%d via rescue pass)", report.Rescued)
	}
	fmt.Println()

	if dissolved := t.Dissolved(); len(dissolved) > 0 {
		fmt.Printf("\nTeams dissolved into the solo pool (%d):\n", len(dissolved))
		for _, name := range dissolved {
			fmt.Printf("  ⚠ %s\n", name)
		}
	}

	if solo := t.SoloQueue(); len(solo) > 0 {
		fmt.Printf("\nUnpaired solo players (%d):\n", len(solo))
		for _, s := range solo {
			fmt.Printf("  %s\n", s.Player)
		}
	}

	if len(report.Failures) > 0 {
		fmt.Printf("\nUnschedulable matches (%d):\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Printf("  ⚠ round %d: %s\n", f.Round, f.Err)
		}
	}

	printMatches(t.Matches())

	if err := store.NewFileStore(statePath).Save(t.Snapshot()); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	fmt.Printf("\n✓ State saved to %s\n", statePath)

	if len(report.Failures) > 0 {
		return fmt.Errorf("schedule is incomplete: %d matches could not be placed", len(report.Failures))
	}
	return nil
}

func runExport(configPath, statePath, outputPath string, verbose bool) error {
	t, _, err := loadTournament(configPath, statePath, verbose)
	if err != nil {
		return err
	}

	f, err := export.Workbook(t.Teams(), t.Matches())
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}

	fmt.Printf("✓ Schedule saved to %s\n", outputPath)
	return nil
}

func runStatus(configPath, statePath string, verbose bool) error {
	t, logger, err := loadTournament(configPath, statePath, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if expired := t.Tick(); expired > 0 {
		fmt.Printf("⚠ %d reschedule request(s) expired\n\n", expired)
		if err := store.NewFileStore(statePath).Save(t.Snapshot()); err != nil {
			return fmt.Errorf("saving state: %w", err)
		}
	}

	printMatches(t.Matches())

	requests := t.Requests()
	open := 0
	for _, r := range requests {
		if r.State == reschedule.StatePending {
			open++
		}
	}
	if open > 0 {
		fmt.Printf("\nPending reschedule requests (%d):\n", open)
		for _, r := range requests {
			if r.State != reschedule.StatePending {
				continue
			}
			fmt.Printf("  %s  match %s → %s (votes %d/%d, expires %s)\n",
				r.ID, r.MatchID, r.Proposed.Key(),
				len(r.Votes), len(r.Participants),
				r.ExpiresAt.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func runRequest(configPath, statePath, matchID, team string, verbose bool) error {
	t, logger, err := loadTournament(configPath, statePath, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	id, err := uuid.Parse(matchID)
	if err != nil {
		return fmt.Errorf("invalid match id %q: %w", matchID, err)
	}

	req, err := t.RequestReschedule(id, team)
	if err != nil {
		return err
	}
	if err := store.NewFileStore(statePath).Save(t.Snapshot()); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	fmt.Printf("✓ Request %s proposes %s\n", req.ID, req.Proposed.Key())
	fmt.Printf("  Awaiting accepts from: %v\n", req.Participants)
	return nil
}

func runVote(configPath, statePath, requestID, participant, decision string, verbose bool) error {
	t, logger, err := loadTournament(configPath, statePath, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	id, err := uuid.Parse(requestID)
	if err != nil {
		return fmt.Errorf("invalid request id %q: %w", requestID, err)
	}
	var d reschedule.Decision
	switch decision {
	case "accept":
		d = reschedule.DecisionAccept
	case "reject":
		d = reschedule.DecisionReject
	default:
		return fmt.Errorf("decision must be accept or reject, got %q", decision)
	}

	voteErr := t.CastVote(id, participant, d)
	if err := store.NewFileStore(statePath).Save(t.Snapshot()); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if voteErr != nil {
		return voteErr
	}

	for _, r := range t.Requests() {
		if r.ID == id {
			fmt.Printf("✓ Vote recorded; request is now %s\n", r.State)
			break
		}
	}
	return nil
}

func runResult(configPath, statePath, matchID, winner string, verbose bool) error {
	t, logger, err := loadTournament(configPath, statePath, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	id, err := uuid.Parse(matchID)
	if err != nil {
		return fmt.Errorf("invalid match id %q: %w", matchID, err)
	}
	if err := t.ReportResult(id, winner); err != nil {
		return err
	}
	if err := store.NewFileStore(statePath).Save(t.Snapshot()); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	fmt.Printf("✓ Result recorded: %s won\n", winner)
	return nil
}

func runVerify(configPath, statePath string, verbose bool) error {
	t, logger, err := loadTournament(configPath, statePath, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	violations := verify.Check(t.Matches(), t.Roster(), t.Rules())
	errors := 0
	warnings := 0
	for _, v := range violations {
		switch v.Kind {
		case "error":
			errors++
			fmt.Printf("✗ Constraint violation: %s\n", v.Message)
		case "warning":
			warnings++
			fmt.Printf("⚠ Rescue concession: %s\n", v.Message)
		}
	}

	fmt.Printf("\nVerification complete: %d violations, %d rescue concessions\n", errors, warnings)
	if errors > 0 {
		return fmt.Errorf("%d constraint violations found", errors)
	}
	return nil
}

func loadTournament(configPath, statePath string, verbose bool) (*tournament.Tournament, *zap.Logger, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	snap, err := store.NewFileStore(statePath).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading state (run generate first?): %w", err)
	}

	logger := logging.New(verbose)
	t, err := tournament.Restore(cfg, snap, tournament.Options{Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("restoring tournament: %w", err)
	}
	return t, logger, nil
}

func printMatches(matches []schedule.Match) {
	fmt.Println("\nMatches:")
	fmt.Printf("  %-36s %5s  %-16s %-10s %s\n", "ID", "Round", "Slot", "Status", "Pairing")
	for _, m := range matches {
		slot := "-"
		if m.Slot != nil {
			slot = m.Slot.Key()
		}
		fmt.Printf("  %-36s %5d  %-16s %-10s %s\n",
			m.ID, m.Round, slot, m.Status, m.Pairing.ID())
	}
}

// drainEvents logs every bus event so generate runs show the stream the
// engine publishes for external notifiers.
func drainEvents(bus *notify.Bus, logger *zap.Logger) {
	msgs, err := bus.Subscribe(context.Background())
	if err != nil {
		logger.Error("subscribing to events", zap.Error(err))
		return
	}
	go func() {
		for msg := range msgs {
			ev, err := notify.Decode(msg)
			msg.Ack()
			if err != nil {
				logger.Error("decoding event", zap.Error(err))
				continue
			}
			logger.Debug("event",
				zap.String("kind", string(ev.Kind)),
				zap.Strings("teams", ev.Teams),
				zap.String("date", ev.Date),
				zap.String("time", ev.Time))
		}
	}()
}
