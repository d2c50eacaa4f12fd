package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	kafkanet "github.com/nrandell/kafka-net"
	"github.com/nrandell/kafka-net/broker"
	"github.com/nrandell/kafka-net/internal/tracing"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type fileConfig struct {
	Producer kafkanet.Config     `yaml:"producer"`
	Broker   broker.BrokerConfig `yaml:"broker"`
	Tracing  tracing.Config      `yaml:"tracing"`
}

func main() {
	var configFile string
	var topic string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.StringVar(&topic, "topic", "", "Topic to produce a single demo message to")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("KAFKANET_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		}
	}

	logger := logrus.StandardLogger()

	config, err := loadFileConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tracer, err := tracing.NewManager(config.Tracing, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize tracing: %v\n", err)
		os.Exit(1)
	}

	router, err := broker.NewRouter(config.Broker, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to brokers: %v\n", err)
		os.Exit(1)
	}
	defer router.Close()

	producer := kafkanet.NewProducer(config.Producer, router,
		kafkanet.WithLogger(logger),
		kafkanet.WithTracer(tracer),
	)

	if topic != "" {
		future, err := producer.Send(topic, []kafkanet.Message{{Value: []byte("hello from kafka-net")}})
		if err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			os.Exit(1)
		}
		responses, err := future.Wait()
		if err != nil {
			fmt.Fprintf(os.Stderr, "produce failed: %v\n", err)
			os.Exit(1)
		}
		for _, r := range responses {
			logger.WithFields(logrus.Fields{
				"topic":     r.Topic,
				"partition": r.Partition,
				"offset":    r.Offset,
			}).Info("message produced")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	producer.Stop(true, config.Producer.MaxDisposeWait)
	_ = tracer.Shutdown(context.Background())
}

func loadFileConfig(path string) (fileConfig, error) {
	config := fileConfig{
		Producer: kafkanet.DefaultConfig(),
		Broker:   broker.DefaultBrokerConfig(),
		Tracing:  tracing.DefaultConfig(),
	}

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}
