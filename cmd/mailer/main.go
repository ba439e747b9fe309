package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/emotionlab/go-enrollment/config"
	"github.com/emotionlab/go-enrollment/mail"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

func main() {
	configPath := flag.String("config", os.Getenv("ENROLLMENT_CONFIG"), "path to a YAML config file")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("mailer"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	logger := lgr.GetLogger("consumer")

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("no kafka brokers configured, set KAFKA_BROKERS")
		os.Exit(1)
	}

	var sender mail.Sender = mail.NewSMTPSender(mail.SMTPOptions{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
	if cfg.MailDriver == "log" {
		sender = mail.LogSender{Logger: lgr.GetLogger("mail")}
	}

	consumer := mail.NewConsumer(
		mail.KafkaOptions{
			Brokers:  cfg.KafkaBrokers,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
			TLS:      cfg.KafkaTLS,
		},
		cfg.KafkaMailTopic,
		cfg.KafkaGroupID,
		mail.NewThrottledSender(sender, cfg.MailRatePerMinute),
		logger,
	)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	logger.Info("mailer listening", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaMailTopic, "group", cfg.KafkaGroupID)

	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
	}
}
