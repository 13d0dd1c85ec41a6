package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/shortener"
	"go.uber.org/zap"
)

// LinkHandler handles the authenticated link management operations.
type LinkHandler struct {
	service *shortener.Service
	baseURL string
	logger  *zap.Logger
}

// NewLinkHandler creates a new link handler. baseURL prefixes short codes in responses.
func NewLinkHandler(service *shortener.Service, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: service,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

func (h *LinkHandler) CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.service.CreateLink(ctx, shortener.CreateLinkInput{
		OriginalURL: req.Body.OriginalURL,
		UserID:      userID,
		ExpiresAt:   req.Body.ExpiresAt,
	})
	if err != nil {
		return nil, h.linkError("create link", err)
	}

	resp := &CreateLinkResponse{}
	resp.Body.Success = true
	resp.Body.Link = h.toBody(link)

	return resp, nil
}

func (h *LinkHandler) ListLinks(ctx context.Context, _ *struct{}) (*ListLinksResponse, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	views, err := h.service.UserLinks(ctx, userID)
	if err != nil {
		return nil, h.linkError("list links", err)
	}

	resp := &ListLinksResponse{}
	resp.Body.Links = make([]LinkListItem, 0, len(views))

	for _, v := range views {
		resp.Body.Links = append(resp.Body.Links, LinkListItem{
			LinkBody: h.toBody(v.Link),
			Expired:  v.Expired,
		})
	}

	return resp, nil
}

func (h *LinkHandler) DeleteLink(ctx context.Context, req *DeleteLinkRequest) (*SuccessResponse, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.DeleteLink(ctx, req.Body.LinkID, userID); err != nil {
		return nil, h.linkError("delete link", err)
	}

	resp := &SuccessResponse{}
	resp.Body.Success = true

	return resp, nil
}

func (h *LinkHandler) linkError(op string, err error) error {
	switch {
	case errors.Is(err, shortener.ErrInvalidInput):
		return huma.Error400BadRequest(msgInvalidInput)
	case errors.Is(err, shortener.ErrRateLimited):
		return huma.Error400BadRequest(msgRateLimited)
	case errors.Is(err, shortener.ErrNotFoundOrUnauthorized):
		return huma.Error400BadRequest(msgNotFoundOrUnauth)
	case errors.Is(err, shortener.ErrLimiterUnavailable):
		return huma.Error503ServiceUnavailable(msgLimiterUnavailable)
	default:
		h.logger.Error(op+" failed", zap.Error(err))

		return huma.Error500InternalServerError(msgInternal)
	}
}

func (h *LinkHandler) toBody(link *shortener.Link) LinkBody {
	return LinkBody{
		ID:          link.ID,
		ShortCode:   string(link.Code),
		ShortURL:    h.baseURL + "/" + string(link.Code),
		OriginalURL: link.OriginalURL,
		UserID:      link.UserID,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		Clicks:      link.Clicks,
	}
}
