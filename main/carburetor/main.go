package main

import (
	"context"
	"fmt"
	"github.com/jd3nn1s/carburetor"
	"github.com/jd3nn1s/carburetor/forwarder"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"os"
)

var configFile = flag.StringP("config", "c", "", "configuration file (default carburetor.toml next to the binary)")
var simulate = flag.Bool("simulate", false, "log pulses instead of driving the pwm hardware")
var logLevel = flag.String("log-level", "", "override the configured log level")

func setupLogging(ctx context.Context, config *carburetor.Config) error {
	level, err := log.ParseLevel(config.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetReportCaller(true)

	if config.Log.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   config.Log.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}))
	}

	if config.Log.StreamPort != 0 {
		stream := forwarder.NewLogStream()
		log.AddHook(stream)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", config.Log.StreamPort)
			if err := stream.ListenAndServe(ctx, addr); err != nil && err != context.Canceled {
				log.WithField("err", err).Error("log stream stopped")
			}
		}()
	}
	return nil
}

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	ctx := context.Background()

	config, err := carburetor.LoadConfig(*configFile)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}
	if *simulate {
		config.PWM.Simulate = true
	}
	if *logLevel != "" {
		config.Log.Level = *logLevel
	}
	if err := setupLogging(ctx, config); err != nil {
		log.Fatal("unable to set up logging: ", err)
	}

	log.Info("setting up")
	c, err := carburetor.NewCarburetor(config)
	if err != nil {
		log.Fatal("unable to set up motor outputs: ", err)
	}
	if err := c.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
