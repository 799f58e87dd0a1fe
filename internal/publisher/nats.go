package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"fare-matrix/internal/batch"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("faresettle"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type FareMessage struct {
	RunID         string `json:"runId"`
	Region        string `json:"region"`
	FromID        string `json:"fromId"`
	ToID          string `json:"toId"`
	Option        int    `json:"option"`
	FareCostCents int    `json:"fareCostCents"`
}

func (p *NATSPublisher) Name() string { return "nats" }

// Write publishes one message per settled pair and flushes the connection.
// It stops at the first publish error.
func (p *NATSPublisher) Write(ctx context.Context, rep *batch.Report) error {
	subject := Subject(p.prefix, rep.Region)
	if p.logSubjects {
		log.Printf("nats publish subject=%s messages=%d", subject, len(rep.Results))
	}
	for _, r := range rep.Results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.PublishFare(subject, NewFareMessage(rep, r)); err != nil {
			return err
		}
	}
	return p.nc.FlushWithContext(ctx)
}

func (p *NATSPublisher) PublishFare(subject string, msg FareMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func NewFareMessage(rep *batch.Report, r batch.Result) FareMessage {
	return FareMessage{
		RunID:         rep.RunID,
		Region:        rep.Region,
		FromID:        r.Pair.FromID,
		ToID:          r.Pair.ToID,
		Option:        r.Option,
		FareCostCents: r.FareCents,
	}
}

// Subject returns "<prefix>.<region>", or the prefix alone without a region.
func Subject(prefix, region string) string {
	if strings.TrimSpace(region) == "" {
		return subjectToken(prefix)
	}
	return fmt.Sprintf("%s.%s", subjectToken(prefix), subjectToken(region))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
