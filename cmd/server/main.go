package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emotionlab/go-enrollment"
	"github.com/emotionlab/go-enrollment/config"
	"github.com/emotionlab/go-enrollment/mail"
	"github.com/emotionlab/go-enrollment/persistence"
	"github.com/emotionlab/go-enrollment/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type App struct {
	cfg      *config.Config
	logger   *glog.BaseLogger
	repo     enrollment.RepositoryManager
	srv      router.Server[*fiber.App]
	mailer   enrollment.Mailer
	activity enrollment.ActivitySink
	images   enrollment.ImageStore
	closers  []func() error
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	configPath := flag.String("config", os.Getenv("ENROLLMENT_CONFIG"), "path to a YAML config file")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("enrollment"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	if cfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg))
		fmt.Println("============")
	}

	app := &App{cfg: cfg, logger: lgr}
	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithAdminSeed(ctx, app); err != nil {
		panic(err)
	}

	if err := WithOutbound(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	go SessionJanitor(janitorCtx, app, time.Hour)

	go func() {
		if err := app.srv.Serve(cfg.ServerAddr); err != nil {
			app.GetLogger("http").Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	stopJanitor()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown failed", "error", err)
	}

	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			app.GetLogger("app").Warn("close failed", "error", err)
		}
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := persistence.Open(app.cfg.DatabaseDialect, app.cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, db.Close)

	if err := persistence.Migrate(ctx, db, enrollment.DialectMigrations); err != nil {
		return err
	}

	repo := enrollment.NewRepositoryManager(db)
	repo.MustValidate()
	app.repo = repo

	return nil
}

func WithAdminSeed(ctx context.Context, app *App) error {
	_, err := enrollment.EnsureAdmin(ctx, app.repo, enrollment.AdminSeed{
		Username: app.cfg.AdminUsername,
		Password: app.cfg.AdminPassword,
	}, app.GetLogger("seed"))
	return err
}

func WithOutbound(ctx context.Context, app *App) error {
	cfg := app.cfg
	kafkaOpts := mail.KafkaOptions{
		Brokers:  cfg.KafkaBrokers,
		Username: cfg.KafkaUsername,
		Password: cfg.KafkaPassword,
		TLS:      cfg.KafkaTLS,
	}

	switch cfg.MailDriver {
	case "smtp":
		app.mailer = mail.NewThrottledSender(mail.NewSMTPSender(mail.SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		}), cfg.MailRatePerMinute)
	case "kafka":
		q := mail.NewQueueSender(kafkaOpts, cfg.KafkaMailTopic)
		app.closers = append(app.closers, q.Close)
		app.mailer = q
	default:
		app.mailer = mail.LogSender{Logger: app.GetLogger("mail")}
	}

	sinks := []enrollment.ActivitySink{enrollment.NewLoggerActivitySink(app.GetLogger("activity"))}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaActivityTopic != "" {
		sink := mail.NewActivitySink(kafkaOpts, cfg.KafkaActivityTopic)
		app.closers = append(app.closers, sink.Close)
		sinks = append(sinks, sink)
	}
	app.activity = enrollment.MultiActivitySink(sinks...)

	switch cfg.StorageDriver {
	case "cloudinary":
		store, err := storage.NewCloudinary(cfg.CloudinaryURL, cfg.UploadFolder)
		if err != nil {
			return err
		}
		app.images = store
	case "s3":
		store, err := storage.NewS3(ctx, storage.S3Options{
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Folder:       cfg.UploadFolder,
		})
		if err != nil {
			return err
		}
		app.images = store
	default:
		app.images = storage.NewDisk(cfg.DiskDir, cfg.DiskBaseURL)
	}

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.cfg

	uploads := enrollment.NewUploadHandler(app.images, cfg.MaxUploadBytes).
		WithLogger(app.GetLogger("uploads"))

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		f := router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: cfg.Debug,
			StrictRouting:     false,
			BodyLimit:         int(cfg.MaxUploadBytes) * 5,
		}))
		f.Post("/uploads", uploads.Handle)
		if cfg.StorageDriver == "" || cfg.StorageDriver == "disk" {
			f.Static(cfg.DiskBaseURL, cfg.DiskDir)
		}
		return f
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	controller := enrollment.NewEnrollmentController(app.repo, cfg,
		enrollment.WithControllerDebug(cfg.Debug),
		enrollment.WithControllerLogger(app.GetLogger("enrollment")),
		enrollment.WithControllerMailer(app.mailer),
		enrollment.WithControllerActivitySink(app.activity),
	)
	controller.Verifier.WithLogger(app.GetLogger("enrollment:credentials"))
	controller.Rotator.WithLogger(app.GetLogger("enrollment:rotation"))
	controller.OTP.WithLogger(app.GetLogger("enrollment:otp"))
	controller.Guard.WithLogger(app.GetLogger("enrollment:gate"))

	srv.Router().Use(controller.Guard.Sessions())
	enrollment.RegisterEnrollmentRoutes(srv.Router(), controller)

	app.srv = srv

	return nil
}

// SessionJanitor removes expired sessions every interval until ctx is done.
func SessionJanitor(ctx context.Context, app *App, interval time.Duration) {
	logger := app.GetLogger("sessions")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.repo.Sessions().DeleteExpired(ctx)
			if err != nil {
				logger.Error("failed to delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("deleted expired sessions", "count", n)
			}
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
