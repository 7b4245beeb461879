package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/orchestrator"
)

type runFlags struct {
	configPath   string
	mode         string
	participants []string
	sessionID    string
	maxRounds    int
	metrics      bool
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] PROMPT...",
		Short: "Run one turn and stream its events as NDJSON",
		Long: `Run one chat turn against the configured participants.

Participants are assistant ids or model tokens (model::<id>). Every canonical
event is written to stdout as one JSON object per line; logs go to stderr.`,
		Example: `  chatmesh run -c chatmesh.yaml --mode compare -p model::gpt-4o -p model::claude "Explain RAFT"
  chatmesh run --mode group -p writer -p critic --max-rounds 4 "Draft a release note"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd, f, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "chatmesh.yaml", "Configuration file path")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", string(orchestrator.ModeSingle), "Turn mode: single, group or compare")
	cmd.Flags().StringArrayVarP(&f.participants, "participant", "p", nil, "Participant token (repeatable)")
	cmd.Flags().StringVarP(&f.sessionID, "session", "s", "", "Session id (default: a new random id)")
	cmd.Flags().IntVar(&f.maxRounds, "max-rounds", 0, "Group round limit (default: engine setting, -1 for no limit)")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "Print Prometheus metrics to stderr when the turn ends")

	return cmd
}

func runTurn(cmd *cobra.Command, f runFlags, prompt string) error {
	mode, err := orchestrator.ParseMode(f.mode)
	if err != nil {
		return err
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := f.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	turnID, events, errs, err := a.engine.Invoke(ctx, engine.Request{
		SessionID:    sessionID,
		Mode:         mode,
		Participants: f.participants,
		Prompt:       prompt,
		MaxRounds:    f.maxRounds,
	})
	if err != nil {
		return err
	}

	stopTimer := a.logger.WithComponent("cli").WithTurn(sessionID, turnID).StartTimer("run")

	enc := json.NewEncoder(cmd.OutOrStdout())
	var encErr error
	for p := range events {
		if encErr != nil {
			continue
		}
		encErr = enc.Encode(p)
	}
	turnErr := <-errs
	stopTimer()

	if f.metrics {
		if err := writeMetrics(cmd.ErrOrStderr(), a); err != nil {
			return err
		}
	}

	if encErr != nil {
		return fmt.Errorf("write event: %w", encErr)
	}
	return turnErr
}

func writeMetrics(w io.Writer, a *app) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
