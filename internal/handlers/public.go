package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/qr"
	"go.uber.org/zap"
)

// LinkCounter reports the number of stored links.
type LinkCounter interface {
	TotalLinks(ctx context.Context) (int64, error)
}

// PublicHandler serves the unauthenticated QR and stats operations.
type PublicHandler struct {
	counter LinkCounter
	logger  *zap.Logger
}

// NewPublicHandler creates a new handler for QR codes and stats.
func NewPublicHandler(counter LinkCounter, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{counter: counter, logger: logger}
}

func (h *PublicHandler) QRCode(_ context.Context, req *QRRequest) (*QRResponse, error) {
	if req.URL == "" {
		return nil, huma.Error400BadRequest(msgMissingURL)
	}

	uri, err := qr.DataURI(req.URL)
	if err != nil {
		h.logger.Warn("qr encoding failed", zap.Error(err))

		return nil, huma.Error400BadRequest(msgInvalidInput)
	}

	resp := &QRResponse{}
	resp.Body.QR = uri

	return resp, nil
}

func (h *PublicHandler) Stats(ctx context.Context, _ *struct{}) (*StatsResponse, error) {
	total, err := h.counter.TotalLinks(ctx)
	if err != nil {
		h.logger.Error("count links failed", zap.Error(err))

		return nil, huma.Error500InternalServerError(msgInternal)
	}

	resp := &StatsResponse{}
	resp.Body.TotalLinks = total

	return resp, nil
}
