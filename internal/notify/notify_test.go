package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/rabbitmq/amqp091-go"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/logger"
)

func init() {
	logger.Init("test")
}

func sampleReport() MonthlyReport {
	return MonthlyReport{
		UserID:  "user-1",
		Email:   "jane@example.com",
		Name:    "Jane",
		Year:    2024,
		Month:   1,
		Summary: aggregate.NewSummary(100000, 8050),
		Categories: []aggregate.CategoryTotal{
			{Category: "Food", Total: 8050, Count: 2},
		},
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{8050, "80.50"},
		{100000, "1000.00"},
		{-1234, "-12.34"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderText(t *testing.T) {
	body := RenderText(sampleReport())

	for _, want := range []string{"Hi Jane", "January 2024", "Income:   1000.00", "Expenses: 80.50", "Balance:  919.50", "Food"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestRenderTextFallsBackToEmail(t *testing.T) {
	r := sampleReport()
	r.Name = ""
	r.Categories = nil

	body := RenderText(r)
	if !strings.Contains(body, "Hi jane@example.com") {
		t.Errorf("expected greeting by email, got:\n%s", body)
	}
	if strings.Contains(body, "Top spending") {
		t.Error("expected no category section for an empty breakdown")
	}
}

func TestEmailNotifier(t *testing.T) {
	cfg := &config.Config{SMTPHost: "smtp.test", SMTPPort: "2525", SenderEmail: "reports@test"}

	t.Run("sends", func(t *testing.T) {
		n := NewEmailNotifier(cfg)
		var sent *email.Email
		var addr string
		n.send = func(e *email.Email, a string, _ smtp.Auth) error {
			sent, addr = e, a
			return nil
		}

		if err := n.SendMonthlyReport(context.Background(), sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != "smtp.test:2525" {
			t.Errorf("addr = %q", addr)
		}
		if sent.From != "reports@test" || len(sent.To) != 1 || sent.To[0] != "jane@example.com" {
			t.Errorf("unexpected envelope: from=%q to=%v", sent.From, sent.To)
		}
		if !strings.Contains(sent.Subject, "January 2024") {
			t.Errorf("subject = %q", sent.Subject)
		}
	})

	t.Run("send_error", func(t *testing.T) {
		n := NewEmailNotifier(cfg)
		n.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }

		if err := n.SendMonthlyReport(context.Background(), sampleReport()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		n := NewEmailNotifier(cfg)
		called := false
		n.send = func(*email.Email, string, smtp.Auth) error { called = true; return nil }

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := n.SendMonthlyReport(ctx, sampleReport()); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if called {
			t.Error("expected no send after cancellation")
		}
	})
}

type fakePublisher struct {
	exchange, key string
	msg           amqp091.Publishing
	err           error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestAMQPNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := &AMQPNotifier{channel: pub, exchange: "budgetbuddy", queue: "monthly-reports"}

	if err := n.SendMonthlyReport(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.exchange != "budgetbuddy" || pub.key != "monthly-reports" {
		t.Errorf("published to %q/%q", pub.exchange, pub.key)
	}
	if pub.msg.DeliveryMode != amqp091.Persistent || pub.msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing: %+v", pub.msg)
	}

	var decoded MonthlyReport
	if err := json.Unmarshal(pub.msg.Body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded.Summary.Balance != 91950 || decoded.Month != 1 {
		t.Errorf("unexpected decoded report: %+v", decoded)
	}

	pub.err = errors.New("channel closed")
	if err := n.SendMonthlyReport(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected publish error")
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close without connection: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	n, closeFn, err := FromConfig(&config.Config{ReportSink: SinkEmail, SMTPHost: "localhost", SMTPPort: "25"})
	if err != nil {
		t.Fatalf("email sink: %v", err)
	}
	if _, ok := n.(*EmailNotifier); !ok {
		t.Errorf("expected *EmailNotifier, got %T", n)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}

	if _, _, err := FromConfig(&config.Config{ReportSink: "carrier-pigeon"}); err == nil {
		t.Error("expected unknown sink to be rejected")
	}
}
