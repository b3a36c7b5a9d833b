package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"

	"github.com/SplayLobster/MemoApp2/internal/converter"
	"github.com/SplayLobster/MemoApp2/internal/model"
)

// EventType тип события изменения заметки
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event событие изменения заметки
type Event struct {
	Type EventType
	Note model.Note
}

// EventService управляет подписчиками на события заметок
type EventService struct {
	subscribers map[chan Event]bool
	mu          sync.RWMutex
}

// NewEventService создает новый экземпляр EventService
func NewEventService() *EventService {
	return &EventService{
		subscribers: make(map[chan Event]bool),
	}
}

// Subscribe добавляет нового подписчика и возвращает канал для получения событий
func (s *EventService) Subscribe() chan Event {
	ch := make(chan Event, 10) // Буферизованный канал для защиты от backpressure
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[ch] = true
	return ch
}

// Unsubscribe удаляет подписчика и закрывает его канал
func (s *EventService) Unsubscribe(ch chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		close(ch)
		delete(s.subscribers, ch)
	}
}

// Publish отправляет событие всем подписчикам
// Если канал подписчика переполнен, событие пропускается (защита от backpressure)
func (s *EventService) Publish(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Publisher внешний получатель событий
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type topicMessage struct {
	Type EventType        `json:"type"`
	Data converter.Record `json:"data"`
}

// TopicPublisher публикует события в gocloud.dev pubsub топик
type TopicPublisher struct {
	topic *pubsub.Topic
}

// NewTopicPublisher создает публикатор поверх открытого топика
func NewTopicPublisher(topic *pubsub.Topic) *TopicPublisher {
	return &TopicPublisher{topic: topic}
}

// OpenTopicPublisher открывает топик по URL (mem://, gcppubsub://, ...)
func OpenTopicPublisher(ctx context.Context, topicURL string) (*TopicPublisher, error) {
	topic, err := pubsub.OpenTopic(ctx, topicURL)
	if err != nil {
		return nil, fmt.Errorf("pubsub.OpenTopic: %w", err)
	}
	return NewTopicPublisher(topic), nil
}

// Publish отправляет событие как JSON сообщение с атрибутом type
func (p *TopicPublisher) Publish(ctx context.Context, event Event) error {
	rec, ok := converter.ModelToRecord(event.Note)
	if !ok {
		// События удаления несут только ID заметки
		rec = converter.Record{ID: converter.ID(event.Note.ID), Type: string(event.Note.Kind)}
	}
	body, err := json.Marshal(topicMessage{Type: event.Type, Data: rec})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	return p.topic.Send(ctx, &pubsub.Message{
		Body:     body,
		Metadata: map[string]string{"type": string(event.Type)},
	})
}

// Shutdown отправляет накопленные сообщения и закрывает топик
func (p *TopicPublisher) Shutdown(ctx context.Context) error {
	return p.topic.Shutdown(ctx)
}
