package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"churchsite/internal/calendar"
	"churchsite/internal/config"
	"churchsite/internal/database"
	"churchsite/internal/ics"
	"churchsite/internal/importer"
	appLog "churchsite/internal/log"
	"churchsite/internal/metrics"
	"churchsite/internal/notify"
	"churchsite/internal/repository"
	"churchsite/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	appLog.Info("churchsite starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"calendar_provider", conf.Calendar.Provider,
		"horizon_days", conf.Calendar.HorizonDays,
		"backfill_days", conf.Calendar.BackfillDays,
		"refresh", conf.Calendar.RefreshCron,
		"mail_provider", conf.Mail.Provider,
		"admin_auth", conf.BasicAuth != nil,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags.once); err != nil {
		appLog.Error("churchsite failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("churchsite exiting")
}

func run(ctx context.Context, conf *config.Config, once bool) error {
	loc, err := calendar.LoadLocation(conf.Timezone)
	if err != nil {
		return err
	}

	db, err := database.New(ctx, conf.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("churchsite", reg)

	provider, err := newProvider(ctx, conf, loc)
	if err != nil {
		return err
	}

	members := repository.NewMemberRepository(db)
	families := repository.NewFamilyRepository(db)
	ministries := repository.NewMinistryRepository(db)
	types := repository.NewSpecialEventTypeRepository(db)

	cal := calendar.NewService(provider, calendar.Stores{
		Events:       repository.NewCachedEventRepository(db),
		Records:      repository.NewCalendarRecordRepository(db),
		Patterns:     repository.NewPatternRepository(db),
		Ministries:   ministries,
		SpecialTypes: types,
	}, calendar.Options{
		Location:     loc,
		HorizonDays:  conf.Calendar.HorizonDays,
		BackfillDays: conf.Calendar.BackfillDays,
		MaxAge:       time.Duration(conf.Calendar.MaxAgeMinutes) * time.Minute,
		Metrics:      m,
	})

	if once {
		res, err := cal.Refresh(ctx)
		if err != nil {
			return err
		}
		appLog.Info("calendar refreshed", "events", res.Count, "patterns", res.Patterns)
		return nil
	}

	mailer, err := newMailer(ctx, conf)
	if err != nil {
		return err
	}

	if conf.Calendar.RefreshCron != "" {
		c, err := calendar.StartScheduler(conf.Calendar.RefreshCron, cal, 2*time.Minute)
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	notifier := notify.NewService(repository.NewContactMessageRepository(db), ministries, mailer,
		conf.Mail.From, conf.Mail.ContactTo, m)

	srv := web.NewServer(web.Deps{
		Calendar:     cal,
		Members:      members,
		Families:     families,
		Ministries:   ministries,
		SpecialTypes: types,
		Importer:     importer.New(members, families, ministries, m),
		Notify:       notifier,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		BasicAuth:    conf.BasicAuth,
	})
	return srv.ListenAndServe(ctx, conf.Listen)
}

func newProvider(ctx context.Context, conf *config.Config, loc *time.Location) (calendar.Provider, error) {
	switch conf.Calendar.Provider {
	case config.ProviderGoogle:
		return calendar.NewGoogleProvider(ctx, conf.Calendar.GoogleAPIKey, conf.Calendar.GoogleCalendarID, loc)
	case config.ProviderICS:
		sources := make([]ics.Source, 0, len(conf.Calendar.ICS))
		for _, c := range conf.Calendar.ICS {
			sources = append(sources, ics.Source{ID: c.ID, URL: c.URL})
		}
		return calendar.NewICSProvider(ics.NewFetcher(conf.Calendar.CacheDir, nil), sources), nil
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", conf.Calendar.Provider)
	}
}

func newMailer(ctx context.Context, conf *config.Config) (notify.Mailer, error) {
	switch conf.Mail.Provider {
	case config.MailerGmail:
		return notify.NewGmailMailer(ctx, notify.GmailConfig{
			ClientID:     conf.Mail.GmailClientID,
			ClientSecret: conf.Mail.GmailClientSecret,
			RefreshToken: conf.Mail.GmailRefreshToken,
			From:         conf.Mail.From,
		})
	case config.MailerLog, "":
		appLog.Warn("mail provider is log; contact messages will not be emailed")
		return &notify.LogMailer{}, nil
	default:
		return nil, errors.New("unknown mail provider " + conf.Mail.Provider)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/churchsite/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh the calendar cache once and exit")

	flag.Parse()

	return cfg
}
