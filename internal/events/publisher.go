package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

var ErrMalformedEvent = errors.New("审计事件格式错误")

// Publisher 把审计事件发送到 rabbitmq 的持久化队列中
type Publisher struct {
	ch      *amqp.Channel
	queue   string
	timeout time.Duration
}

func NewPublisher(ch *amqp.Channel, queue string, timeout time.Duration) *Publisher {
	return &Publisher{ch: ch, queue: queue, timeout: timeout}
}

// New 构造一个带有唯一 ID 的事件，消费者依靠 ID 去重
func New(typ domain.EventType, actorID int64, teamID *int64, date string, data any, at time.Time) domain.Event {
	return domain.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		ActorID:    actorID,
		TeamID:     teamID,
		Date:       date,
		Data:       data,
		OccurredAt: at,
	}
}

func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Timestamp:    e.OccurredAt,
			Type:         string(e.Type),
			Body:         body,
		},
	)
}

// Received 是消费端看到的事件，Data 保留原始 JSON
type Received struct {
	ID         string           `json:"id"`
	Type       domain.EventType `json:"type"`
	ActorID    int64            `json:"actorID"`
	TeamID     *int64           `json:"teamID"`
	Date       string           `json:"date"`
	Data       json.RawMessage  `json:"data"`
	OccurredAt time.Time        `json:"occurredAt"`
}

func Decode(body []byte) (*Received, error) {
	e := &Received{}
	if err := json.Unmarshal(body, e); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if e.Type == "" {
		return nil, errors.Join(ErrMalformedEvent, errors.New("缺少事件类型"))
	}
	if e.OccurredAt.IsZero() {
		return nil, errors.Join(ErrMalformedEvent, errors.New("缺少事件时间"))
	}
	return e, nil
}
