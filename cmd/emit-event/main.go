package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/onegreenvn/campaign-monitor/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type emitOptions struct {
	url        string
	queue      string
	campaignID string
	status     string
	recipient  string
	msgStatus  string
	sent       int
	failed     int
	notExist   int
	total      int
	disconnect bool
	raw        string
}

func main() {
	_ = godotenv.Load()

	opts := &emitOptions{}
	root := &cobra.Command{
		Use:   "emit-event <progress|paused|resumed|stopped|completed>",
		Short: "Publish a campaign push event to the events queue",
		Long: "Publishes a {type,data} campaign event the way the messaging platform does, " +
			"so a running monitor can be exercised without the platform.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildEvent(opts, args)
			if err != nil {
				return err
			}
			return publish(cmd.Context(), opts, body)
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.StringVar(&opts.url, "amqp-url", defaultAMQPURL(), "RabbitMQ URL")
	flags.StringVar(&opts.queue, "queue", envOr("RABBITMQ_EVENTS_QUEUE", "campaign_events"), "events queue")
	flags.StringVarP(&opts.campaignID, "campaign", "c", "", "campaign id")
	flags.StringVar(&opts.status, "status", "", "campaign status carried by a progress event")
	flags.StringVar(&opts.recipient, "recipient", "", "phone or name of the last processed recipient")
	flags.StringVar(&opts.msgStatus, "message-status", "", "message status of the last recipient")
	flags.IntVar(&opts.sent, "sent", 0, "sent counter")
	flags.IntVar(&opts.failed, "failed", 0, "failed counter")
	flags.IntVar(&opts.notExist, "not-exist", 0, "not-exist counter")
	flags.IntVar(&opts.total, "total", 0, "total counter (progress only, 0 omits it)")
	flags.BoolVar(&opts.disconnect, "instances-disconnected", false, "mark the event as caused by instance disconnection")
	flags.StringVar(&opts.raw, "raw", "", "publish this JSON verbatim instead of building an event")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func buildEvent(opts *emitOptions, args []string) ([]byte, error) {
	if opts.raw != "" {
		if !json.Valid([]byte(opts.raw)) {
			return nil, fmt.Errorf("--raw is not valid JSON")
		}
		return []byte(opts.raw), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("event type is required")
	}
	if opts.campaignID == "" {
		return nil, fmt.Errorf("--campaign is required")
	}

	var data interface{}
	switch eventType := args[0]; eventType {
	case models.EventProgress:
		p := models.ProgressPayload{
			CampaignID:            opts.campaignID,
			Sent:                  intPtr(opts.sent),
			Failed:                intPtr(opts.failed),
			NotExist:              intPtr(opts.notExist),
			Status:                models.CampaignStatus(opts.status),
			LastRecipient:         opts.recipient,
			LastMessageStatus:     opts.msgStatus,
			InstancesDisconnected: opts.disconnect,
		}
		if opts.total > 0 {
			p.Total = intPtr(opts.total)
		}
		data = p
	case models.EventPaused, models.EventResumed:
		data = models.LifecyclePayload{CampaignID: opts.campaignID, InstancesDisconnected: opts.disconnect}
	case models.EventStopped, models.EventCompleted:
		data = models.TerminalPayload{
			CampaignID: opts.campaignID,
			Sent:       intPtr(opts.sent),
			Failed:     intPtr(opts.failed),
			NotExist:   intPtr(opts.notExist),
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Marshal(models.PushEvent{Type: args[0], Data: payload})
}

func publish(ctx context.Context, opts *emitOptions, body []byte) error {
	rabbitMQService, err := services.NewRabbitMQService(opts.url)
	if err != nil {
		return err
	}
	defer rabbitMQService.Close()

	if err := rabbitMQService.DeclareQueue(opts.queue); err != nil {
		return err
	}
	if err := rabbitMQService.PublishMessage(ctx, opts.queue, body); err != nil {
		return err
	}
	logrus.Infof("Published to %s: %s", opts.queue, body)
	return nil
}

func defaultAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		envOr("RABBITMQ_USER", "guest"),
		envOr("RABBITMQ_PASS", "guest"),
		envOr("RABBITMQ_HOST", "localhost"),
		envOr("RABBITMQ_PORT", "5672"))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intPtr(v int) *int {
	return &v
}
