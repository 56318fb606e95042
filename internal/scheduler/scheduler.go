package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"YieldRouter/internal/allocator"
	"YieldRouter/internal/model"
	"YieldRouter/internal/notifier"
	"YieldRouter/internal/recorder"
	"YieldRouter/internal/store"
	"YieldRouter/internal/strategy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sender delivers operator notifications.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Deps are the components a Scheduler drives.
type Deps struct {
	Harvester *allocator.Harvester
	Manager   *strategy.Manager
	Book      allocator.Book
	Params    *store.ParamStore
	Notifier  Sender // nil disables notifications
	Recorder  recorder.Recorder
	// Operator is the account parameter changes from chat commands are made as.
	Operator common.Address
	// Decimals of the want token, for display and /withdraw amounts.
	Decimals uint8
}

// Scheduler runs the cron jobs and answers operator commands. Lifecycle
// operations never overlap.
type Scheduler struct {
	Cron *cron.Cron
	Deps
	Ctx context.Context

	opMu sync.Mutex
	log  zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, d Deps, log zerolog.Logger) *Scheduler {
	if d.Recorder == nil {
		d.Recorder = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Deps: d,
		Ctx:  ctx,
		log:  log.With().Str("module", "scheduler").Logger(),
	}
}

// RegisterAll registers the harvest and tend jobs.
func (s *Scheduler) RegisterAll(harvestCron, tendCron string) error {
	if _, err := s.Cron.AddFunc(harvestCron, s.harvestTask); err != nil {
		return fmt.Errorf("register harvest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(tendCron, s.tendTask); err != nil {
		return fmt.Errorf("register tend task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// RunHarvestNow executes a harvest immediately.
func (s *Scheduler) RunHarvestNow() {
	s.harvestTask()
}

func (s *Scheduler) harvestTask() {
	s.log.Info().Msg("Running harvest")
	rep, err := s.run(model.KindHarvest, s.Harvester.Harvest)
	if err != nil {
		return
	}
	s.trySend(notifier.FormatHarvestReport(rep, s.Decimals))
}

// tendTask only notifies when it fails or moved funds into the vault.
func (s *Scheduler) tendTask() {
	s.log.Debug().Msg("Running tend")
	before, err := s.Manager.Position(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Read position before tend")
		return
	}
	rep, err := s.run(model.KindTend, s.Harvester.Tend)
	if err != nil {
		return
	}
	if rep.Position.Shares.Cmp(before.Shares) != 0 {
		s.trySend(notifier.FormatHarvestReport(rep, s.Decimals))
	}
}

// run executes one lifecycle operation and records its outcome.
func (s *Scheduler) run(kind model.HarvestKind, op func(context.Context) (*model.HarvestReport, error)) (*model.HarvestReport, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rep, err := op(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("Lifecycle operation failed")
		if rerr := s.Recorder.RecordFailure(&recorder.FailureEvent{
			Strategy: s.Manager.Name(), Kind: kind, Error: err.Error(),
		}); rerr != nil {
			s.log.Error().Err(rerr).Msg("Record failure")
		}
		s.trySend(notifier.FormatFailure(s.Manager.Name(), kind, err))
		return nil, err
	}
	if rerr := s.Recorder.RecordHarvest(rep); rerr != nil {
		s.log.Error().Err(rerr).Msg("Record report")
	}
	return rep, nil
}

const helpText = `Available commands:
• /status
• /harvest
• /tend
• /withdraw &lt;amount&gt;
• /winddown
• /migrate &lt;address&gt;
• /setswap &lt;bps&gt;
• /setmaxloss &lt;bps&gt;`

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	args := fields[1:]
	switch fields[0] {
	case "/status":
		return s.status()
	case "/harvest":
		s.harvestTask()
		return ""
	case "/tend":
		return s.reply(model.KindTend, s.Harvester.Tend)
	case "/withdraw":
		if len(args) != 1 {
			return "Usage: /withdraw &lt;amount&gt;"
		}
		amount, err := model.ParseUnits(args[0], s.Decimals)
		if err != nil || amount.Sign() == 0 {
			return fmt.Sprintf("Invalid amount %q", args[0])
		}
		return s.reply(model.KindWithdraw, func(ctx context.Context) (*model.HarvestReport, error) {
			return s.Harvester.Withdraw(ctx, amount)
		})
	case "/winddown":
		return s.reply(model.KindWindDown, s.Harvester.WindDown)
	case "/migrate":
		if len(args) != 1 || !common.IsHexAddress(args[0]) {
			return "Usage: /migrate &lt;address&gt;"
		}
		successor := common.HexToAddress(args[0])
		return s.reply(model.KindMigrate, func(ctx context.Context) (*model.HarvestReport, error) {
			return s.Harvester.Migrate(ctx, successor)
		})
	case "/setswap":
		return s.setParam(args, "min_expected_swap_bps", s.Manager.SetMinExpectedSwapPercentage)
	case "/setmaxloss":
		return s.setParam(args, "max_loss_bps", s.Manager.SetMaxLoss)
	default:
		return helpText
	}
}

func (s *Scheduler) reply(kind model.HarvestKind, op func(context.Context) (*model.HarvestReport, error)) string {
	rep, err := s.run(kind, op)
	if err != nil {
		return ""
	}
	return notifier.FormatHarvestReport(rep, s.Decimals)
}

func (s *Scheduler) status() string {
	pos, err := s.Manager.Position(s.Ctx)
	if err != nil {
		return fmt.Sprintf("❌ read position: %v", err)
	}
	debt, err := s.Book.TrackedDebt(s.Ctx, s.Manager.Address())
	if err != nil {
		return fmt.Sprintf("❌ read debt: %v", err)
	}
	return notifier.FormatStatus(s.Manager.Name(), pos, debt, s.currentParams(), s.Decimals)
}

func (s *Scheduler) setParam(args []string, name string, set func(common.Address, uint64) error) string {
	if len(args) != 1 {
		return fmt.Sprintf("Usage: expected one basis point value for %s", name)
	}
	bps, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("Invalid basis points %q", args[0])
	}
	old := s.currentParams()
	if err := set(s.Operator, bps); err != nil {
		s.log.Warn().Err(err).Str("param", name).Msg("Parameter change rejected")
		return fmt.Sprintf("❌ %v", err)
	}

	updated := s.currentParams()
	if s.Params != nil {
		if err := s.Params.Save(updated); err != nil {
			s.log.Error().Err(err).Msg("Save params")
		}
	}
	oldBps := old.MaxLossBps
	if name == "min_expected_swap_bps" {
		oldBps = old.MinExpectedSwapBps
	}
	if err := s.Recorder.RecordParamChange(&recorder.ParamEvent{
		Strategy: s.Manager.Name(), Name: name, OldBps: oldBps, NewBps: bps, Caller: s.Operator.Hex(),
	}); err != nil {
		s.log.Error().Err(err).Msg("Record param change")
	}
	return fmt.Sprintf("✅ %s: %d → %d", name, oldBps, bps)
}

func (s *Scheduler) currentParams() model.StrategyParams {
	p := s.Manager.Params()
	return model.StrategyParams{MinExpectedSwapBps: p.MinExpectedSwapBps, MaxLossBps: p.MaxLossBps}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		s.log.Info().Str("message", text).Msg("Notification")
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("Send notification")
	}
}
