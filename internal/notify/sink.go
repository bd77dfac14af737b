package notify

import (
	"fmt"

	"budgetbuddy/internal/config"
)

// Report sinks selectable with REPORT_SINK.
const (
	SinkEmail = "email"
	SinkAMQP  = "amqp"
)

// FromConfig builds the notifier named by cfg.ReportSink. The returned close
// function releases any broker connection and is never nil.
func FromConfig(cfg *config.Config) (Notifier, func() error, error) {
	switch cfg.ReportSink {
	case SinkEmail, "":
		return NewEmailNotifier(cfg), func() error { return nil }, nil
	case SinkAMQP:
		n, err := NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown report sink %q (use %s or %s)", cfg.ReportSink, SinkEmail, SinkAMQP)
	}
}
