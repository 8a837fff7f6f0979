package main

import (
	"context"
	"os"

	"github.com/phuslu/log"

	"FundLetter/internal/analyzer"
	"FundLetter/internal/config"
	"FundLetter/internal/distributor"
	"FundLetter/internal/fund"
	"FundLetter/internal/logging"
	"FundLetter/internal/mailer"
	"FundLetter/internal/notifier"
	"FundLetter/internal/recorder"
	"FundLetter/internal/report"
	"FundLetter/internal/scheduler"
	"FundLetter/internal/subscriber"
	"FundLetter/internal/trends"
)

const defaultConfigPath = "configs/config.yaml"

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *fund.Store
	renderer *report.Renderer
	rec      recorder.Recorder
}

func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return defaultConfigPath
}

func newApp(cfgFlag string, debug bool) (*app, error) {
	cfg, err := config.Load(configPath(cfgFlag))
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	logger := logging.New(level, cfg.Log.JSON)

	renderer, err := report.NewRenderer(report.Options{
		TemplateDir:  cfg.Report.TemplateDir,
		LogoURL:      cfg.Report.LogoURL,
		ContactEmail: cfg.Report.ContactEmail,
		Precision:    cfg.Report.Precision,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    fund.NewStore(cfg.Fund.ConfigFile, cfg.Fund.StateFile),
		renderer: renderer,
		rec:      recorder.Open(cfg.Recorder.SQLitePath, logger),
	}, nil
}

func (a *app) Close() error {
	return a.rec.Close()
}

// trends returns a fetcher. Without a usable model every fetch yields the fallback.
func (a *app) trends(ctx context.Context) *trends.Fetcher {
	var cm trends.ChatModel
	if a.cfg.LLM.APIKey != "" {
		m, err := trends.NewChatModel(ctx, a.cfg.LLM.APIKey, a.cfg.LLM.BaseURL, a.cfg.LLM.Model)
		if err != nil {
			a.logger.Warn().Err(err).Msg("trend model unavailable")
		} else {
			cm = m
		}
	}
	return trends.NewFetcher(cm, a.cfg.LLM.Theme, a.logger)
}

func (a *app) distributor() *distributor.Distributor {
	return &distributor.Distributor{
		Docs:     a.store,
		Renderer: a.renderer,
		Sender: mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     a.cfg.SMTP.Host,
			Port:     a.cfg.SMTP.Port,
			Username: a.cfg.SMTP.Username,
			Password: a.cfg.SMTP.Password,
			From:     a.cfg.SMTP.Sender,
		}),
		Recorder: a.rec,
		Logger:   a.logger,
		Interval: a.cfg.Distribution.SendInterval,
	}
}

func (a *app) pipeline(ctx context.Context) *scheduler.Pipeline {
	return &scheduler.Pipeline{
		Validate:    a.cfg.Validate,
		Store:       a.store,
		Analyzer:    analyzer.NewProcessAnalyzer(a.cfg.Analyzer.Command, a.cfg.Analyzer.WorkDir, a.logger),
		Trends:      a.trends(ctx),
		Subscribers: subscriber.NewPostgres(a.cfg.DSN(), a.cfg.Database.SubscriberQuery),
		Mailer:      a.distributor(),
		Recorder:    a.rec,
		Notifier:    notifier.New(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID),
		Logger:      a.logger,
	}
}

// overview summarizes the stored state against the fund configuration.
func (a *app) overview() (report.Overview, error) {
	cfg, err := a.store.Config()
	if err != nil {
		return report.Overview{}, err
	}
	state, err := a.store.State()
	if err != nil {
		return report.Overview{}, err
	}
	ov := report.Summarize(state, cfg)
	a.logger.Info().Str("state", a.store.StatePath()).
		Int("successful", ov.Successful).Int("total", ov.Total).Msg("fund overview")
	return ov, nil
}
