package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"VaultLedger/internal/observability"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds raw events
// into the market core via the eventChan. JetStream is the only
// high-throughput ingestion surface; each subject maps to one event type.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
	log       zerolog.Logger
}

// RawEvent is the received-but-untyped event from NATS, ready for the shell
// to parse into a typed event.Event before sending to the core.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps a NATS subject to an event type.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. Every event
// type has its own subject so consumers scale independently.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "vault.trades.>", EventType: "TradeExecuted", ConsumerName: "vault-trades", StreamName: "VAULT_TRADES"},
		{Subject: "vault.prices.>", EventType: "PriceUpdate", ConsumerName: "vault-prices", StreamName: "VAULT_PRICES"},
		{Subject: "vault.pnl.>", EventType: "NetPnlUpdate", ConsumerName: "vault-pnl", StreamName: "VAULT_PNL"},
		{Subject: "vault.liquidity.deposit.requested.>", EventType: "DepositRequested", ConsumerName: "vault-deposit-request", StreamName: "VAULT_LIQUIDITY"},
		{Subject: "vault.liquidity.deposit.executed.>", EventType: "DepositExecuted", ConsumerName: "vault-deposit-execute", StreamName: "VAULT_LIQUIDITY"},
		{Subject: "vault.liquidity.deposit.cancelled.>", EventType: "DepositCancelled", ConsumerName: "vault-deposit-cancel", StreamName: "VAULT_LIQUIDITY"},
		{Subject: "vault.liquidity.withdrawal.requested.>", EventType: "WithdrawalRequested", ConsumerName: "vault-wd-request", StreamName: "VAULT_LIQUIDITY"},
		{Subject: "vault.liquidity.withdrawal.executed.>", EventType: "WithdrawalExecuted", ConsumerName: "vault-wd-execute", StreamName: "VAULT_LIQUIDITY"},
		{Subject: "vault.liquidity.withdrawal.cancelled.>", EventType: "WithdrawalCancelled", ConsumerName: "vault-wd-cancel", StreamName: "VAULT_LIQUIDITY"},
		{Subject: "vault.admin.reallocate.>", EventType: "Reallocate", ConsumerName: "vault-reallocate", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.instrument.added.>", EventType: "InstrumentAdded", ConsumerName: "vault-instrument-add", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.instrument.removed.>", EventType: "InstrumentRemoved", ConsumerName: "vault-instrument-remove", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.fees.>", EventType: "FeeCollection", ConsumerName: "vault-fee-collect", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.positions.impact.>", EventType: "ImpactPoolDelta", ConsumerName: "vault-impact", StreamName: "VAULT_POSITIONS"},
		{Subject: "vault.positions.collateral.>", EventType: "CollateralUpdate", ConsumerName: "vault-collateral", StreamName: "VAULT_POSITIONS"},
		{Subject: "vault.positions.reservation.>", EventType: "ReservationUpdate", ConsumerName: "vault-reservation", StreamName: "VAULT_POSITIONS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
		log:       observability.NewLogger("ingestion"),
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
				// Queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		ns.log.Info().
			Str("subject", cfg.Subject).
			Str("consumer", cfg.ConsumerName).
			Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	log := observability.NewLogger("ingestion")

	streams := []jetstream.StreamConfig{
		{
			Name:      "VAULT_TRADES",
			Subjects:  []string{"vault.trades.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_PRICES",
			Subjects:  []string{"vault.prices.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_PNL",
			Subjects:  []string{"vault.pnl.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_LIQUIDITY",
			Subjects:  []string{"vault.liquidity.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_ADMIN",
			Subjects:  []string{"vault.admin.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_POSITIONS",
			Subjects:  []string{"vault.positions.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.log.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	log := observability.NewLogger("nats")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
