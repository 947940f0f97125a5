package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/avdeyev/dexflow-bot/internal/bot/handlers"
	"github.com/avdeyev/dexflow-bot/internal/bot/keyboard"
	errors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/idempotency"
	"github.com/avdeyev/dexflow-bot/internal/middleware"
	"github.com/avdeyev/dexflow-bot/internal/repository"
	"github.com/avdeyev/dexflow-bot/internal/state"
	"github.com/avdeyev/dexflow-bot/internal/user"
	"github.com/avdeyev/dexflow-bot/internal/wallet"
	"github.com/avdeyev/dexflow-bot/pkg/config"
)

// Bot wraps telebot.Bot with the application dependencies required for
// handling updates.
type Bot struct {
	telebot            *telebot.Bot
	log                *slog.Logger
	cfg                config.Config
	fsm                state.StateMachine
	engine             *flow.Engine
	rateLimitMw        *middleware.RateLimitMiddleware
	router             *Router
	dispatcher         *Dispatcher
	keyboard           *keyboard.Builder
	errHandler         *errors.Handler
	idempotencyManager idempotency.Manager
}

// Deps bundles everything the bot needs besides its own plumbing.
type Deps struct {
	FSM         state.StateMachine
	Engine      *flow.Engine
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
	Users       *user.Service
	Wallets     *wallet.Service
	Balances    flow.BalanceReader
	TxRepo      repository.TransactionRepository
}

// New builds a telegram bot instance configured according to the application settings.
func New(cfg config.Config, log *slog.Logger, deps Deps) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Server.Port,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	kb := keyboard.NewBuilder(log)
	dispatcher := NewDispatcher(deps.FSM, deps.Engine, kb, log)
	router := NewRouter(dispatcher, log)
	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled)

	b := &Bot{
		telebot:            tb,
		log:                log,
		cfg:                cfg,
		fsm:                deps.FSM,
		engine:             deps.Engine,
		rateLimitMw:        deps.RateLimit,
		router:             router,
		dispatcher:         dispatcher,
		keyboard:           kb,
		errHandler:         errHandler,
		idempotencyManager: deps.Idempotency,
	}

	b.setupRouter(deps)

	if b.rateLimitMw != nil {
		b.telebot.Use(b.rateLimitMw.Handle)
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter(deps Deps) {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(middleware.Idempotency(b.idempotencyManager, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(AuthMiddleware(deps.Users, b.log))
	b.router.Use(LastActiveMiddleware(deps.Users))
	b.router.Use(middleware.Metrics)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(deps.Users, deps.Wallets, b.keyboard, b.log))
	b.router.RegisterCommand(CommandBuy, newFlowStartHandler(b.dispatcher, b.engine.StartBuy))
	b.router.RegisterCommand(CommandSell, newFlowStartHandler(b.dispatcher, b.engine.StartSell))
	b.router.RegisterCommand(CommandWithdraw, newFlowStartHandler(b.dispatcher, b.engine.StartWithdraw))
	b.router.RegisterCommand(CommandSettings, newFlowStartHandler(b.dispatcher, b.engine.StartSlippage))
	b.router.RegisterCommand(CommandWallet, handlers.NewWalletHandler(deps.Wallets, deps.Balances, b.log))
	b.router.RegisterCommand(CommandHistory, handlers.NewHistoryHandler(deps.TxRepo, b.log))
	b.router.RegisterCommand(CommandCancel, newCancelHandler(b.dispatcher))

	// Main menu buttons mirror the commands.
	b.router.RegisterCallback(keyboard.MenuActionBuy, newFlowStartHandler(b.dispatcher, b.engine.StartBuy))
	b.router.RegisterCallback(keyboard.MenuActionSell, newFlowStartHandler(b.dispatcher, b.engine.StartSell))
	b.router.RegisterCallback(keyboard.MenuActionWithdraw, newFlowStartHandler(b.dispatcher, b.engine.StartWithdraw))
	b.router.RegisterCallback(keyboard.MenuActionSettings, newFlowStartHandler(b.dispatcher, b.engine.StartSlippage))
	b.router.RegisterCallback(keyboard.MenuActionWallet, handlers.CallbackHandler(handlers.NewWalletHandler(deps.Wallets, deps.Balances, b.log)))
	b.router.RegisterCallback(keyboard.MenuActionHistory, handlers.CallbackHandler(handlers.NewHistoryHandler(deps.TxRepo, b.log)))
	b.router.RegisterCallback(handlers.HistoryPageAction+keyboard.CallbackDataSeparator, handlers.HandleHistoryPage(deps.TxRepo, b.log))
}
