package broker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/strayhub/chat-core/internal/broker"
	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/internal/repository"
)

type capturedPublish struct {
	exchange string
	body     []byte
}

type fakePublisher struct {
	published []capturedPublish
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, exchange string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, capturedPublish{exchange: exchange, body: body})
	return nil
}

type stubMessageStore struct {
	saved   []*domain.Message
	saveErr error
}

func (s *stubMessageStore) Save(ctx context.Context, msg *domain.Message) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, msg)
	return nil
}

func (s *stubMessageStore) GetByID(ctx context.Context, messageID string) (*domain.Message, error) {
	return nil, repository.ErrMessageNotFound
}

func (s *stubMessageStore) PageByRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, error) {
	return nil, nil
}

func (s *stubMessageStore) Latest(ctx context.Context, roomID string) (*domain.Message, error) {
	return nil, repository.ErrMessageNotFound
}

func testMessage() *domain.Message {
	return &domain.Message{
		ID:         "m-1",
		RoomID:     "7",
		SenderID:   "uA",
		SenderName: "Alice",
		Content:    "hello",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishTargetsRoomExchange(t *testing.T) {
	publisher := &fakePublisher{}
	router := broker.NewRouter(publisher, &stubMessageStore{})

	if err := router.Publish(context.Background(), testMessage()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(publisher.published))
	}
	got := publisher.published[0]
	if got.exchange != broker.RoomExchange("7").Name {
		t.Fatalf("published to wrong exchange: %s", got.exchange)
	}

	var wire domain.WireMessage
	if err := json.Unmarshal(got.body, &wire); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if wire.SchemaVersion != domain.WireSchemaVersion {
		t.Fatalf("missing schema version, got %d", wire.SchemaVersion)
	}
	if wire.MessageID != "m-1" || wire.RoomID != "7" || wire.Content != "hello" || wire.SenderName != "Alice" {
		t.Fatalf("wire payload mismatch: %+v", wire)
	}
}

func TestPublishReportsBrokerFailure(t *testing.T) {
	publisher := &fakePublisher{err: broker.ErrBrokerUnavailable}
	router := broker.NewRouter(publisher, &stubMessageStore{})

	err := router.Publish(context.Background(), testMessage())
	if !errors.Is(err, broker.ErrBrokerUnavailable) {
		t.Fatalf("expected ErrBrokerUnavailable, got %v", err)
	}
}

func TestHandleMessagePersistsDeliveredCopy(t *testing.T) {
	store := &stubMessageStore{}
	router := broker.NewRouter(&fakePublisher{}, store)

	wire := testMessage().ToWire()
	if err := router.HandleMessage(context.Background(), wire); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(store.saved))
	}
	if store.saved[0].ID != wire.MessageID || store.saved[0].RoomID != wire.RoomID {
		t.Fatalf("persisted wrong message: %+v", store.saved[0])
	}
}

func TestHandleMessageCollapsesDuplicateDelivery(t *testing.T) {
	store := &stubMessageStore{saveErr: repository.ErrDuplicateMessage}
	router := broker.NewRouter(&fakePublisher{}, store)

	// Redelivery of an already-persisted message is resolved silently.
	if err := router.HandleMessage(context.Background(), testMessage().ToWire()); err != nil {
		t.Fatalf("duplicate delivery must not surface an error, got %v", err)
	}
}

func TestHandleMessageSurfacesStoreFailure(t *testing.T) {
	wantErr := errors.New("db down")
	store := &stubMessageStore{saveErr: wantErr}
	router := broker.NewRouter(&fakePublisher{}, store)

	err := router.HandleMessage(context.Background(), testMessage().ToWire())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store failure to propagate, got %v", err)
	}
}
