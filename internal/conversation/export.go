package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

// ObjectStore is implemented by storage.MinIOStorage and storage.MemoryStorage.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ExportLinkTTL is how long a transcript download link stays valid.
const ExportLinkTTL = 15 * time.Minute

// Export is the JSON document written for a transcript download.
type Export struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []*models.Message    `json:"messages"`
	ExportedAt   time.Time            `json:"exportedAt"`
}

// ExportResult locates an uploaded transcript.
type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Exporter snapshots a transcript into object storage and hands back a
// presigned download link.
type Exporter struct {
	pipeline *Pipeline
	store    ObjectStore
	now      func() time.Time
	logger   *zap.Logger
}

func NewExporter(p *Pipeline, store ObjectStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{pipeline: p, store: store, now: func() time.Time { return time.Now().UTC() }, logger: logger}
}

// Export uploads the transcript of c. Keys are
// transcripts/<conversationID>/<ksuid>.json so exports sort by time.
func (e *Exporter) Export(ctx context.Context, c *models.Conversation) (*ExportResult, error) {
	msgs, err := e.pipeline.GetTranscript(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	body, err := json.MarshalIndent(Export{Conversation: c, Messages: msgs, ExportedAt: now}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	id, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return nil, fmt.Errorf("export id: %w", err)
	}
	key := fmt.Sprintf("transcripts/%d/%s.json", c.ID, id.String())
	if err := e.store.UploadFile(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return nil, fmt.Errorf("upload transcript: %w", err)
	}
	url, err := e.store.GetPresignedURL(ctx, key, ExportLinkTTL)
	if err != nil {
		return nil, fmt.Errorf("presign transcript: %w", err)
	}
	e.logger.Info("transcript exported", zap.Int64("conversation_id", c.ID), zap.String("key", key), zap.Int("messages", len(msgs)))
	return &ExportResult{Key: key, URL: url, ExpiresAt: now.Add(ExportLinkTTL)}, nil
}
