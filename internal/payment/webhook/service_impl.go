package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smartorder/smartorder/internal/payment/adapters"
	"github.com/smartorder/smartorder/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StatusApplier is the slice of the order lifecycle the webhook needs.
type StatusApplier interface {
	ApplyPaymentStatus(ctx context.Context, orderCode string, status domain.NormalizedStatus, gatewayStatus, reference string) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Adapters *adapters.Registry
	Applier  StatusApplier
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	adapters *adapters.Registry
	applier  StatusApplier
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.webhook"),
		genID:    p.GenID,
		adapters: p.Adapters,
		applier:  p.Applier,
	}
}

// Ingest verifies and applies one gateway notification. Integrity failures
// are returned to the caller (the gateway gets a non-2xx and no state moves);
// processing failures after the receipt is recorded are swallowed so the
// gateway stops retrying and the reconciliation poll picks the order up.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	adapter, err := s.adapters.Get(provider)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}

	if err := adapter.Verify(payload, headers); err != nil {
		s.log.Warn("rejected payment webhook",
			zap.String("provider", provider),
			zap.Error(err),
		)
		return err
	}

	note, err := adapter.Parse(payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	record := &domain.EventRecord{
		ID:               s.genID.Generate().Int64(),
		Provider:         note.Provider,
		OrderCode:        note.OrderCode,
		GatewayStatus:    note.GatewayStatus,
		NormalizedStatus: string(note.Status),
		Payload:          datatypes.JSON(payload),
		ReceivedAt:       time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return err
	}

	applyErr := s.applier.ApplyPaymentStatus(ctx, note.OrderCode, note.Status, note.GatewayStatus, note.Reference)
	now := time.Now().UTC()
	update := s.db.WithContext(ctx).Model(&domain.EventRecord{}).Where("id = ?", record.ID)
	if applyErr != nil {
		message := applyErr.Error()
		if err := update.Updates(map[string]any{"processed_at": now, "process_error": message}).Error; err != nil {
			s.log.Error("failed to mark webhook receipt", zap.Error(err))
		}
		s.log.Error("payment webhook processing failed",
			zap.String("provider", provider),
			zap.String("order_code", note.OrderCode),
			zap.Error(applyErr),
		)
		// Receipt is durable; reconciliation handles the rest.
		return nil
	}
	if err := update.Update("processed_at", now).Error; err != nil {
		s.log.Error("failed to mark webhook receipt", zap.Error(err))
	}
	return nil
}
