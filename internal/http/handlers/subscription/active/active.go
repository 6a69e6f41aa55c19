// Package active реализует HTTP-обработчик получения действующей подписки пользователя.
package active

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/issue-quota/internal/http/middlewarectx"
	"github.com/magabrotheeeer/issue-quota/internal/http/response"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// Handler отдаёт действующую подписку.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает поиск действующей подписки.
type Service interface {
	ActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Действующая подписка
// @Description Возвращает последнюю созданную активную подписку. Просроченная подписка переводится в expired и не возвращается.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} map[string]any "Подписка или null"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Security BearerAuth
// @Router /subscriptions/active [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.active"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		sl.UserUID(userUID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sub, err := h.service.ActiveSubscription(r.Context(), userUID)
	if err != nil {
		log.Error("failed to get active subscription", sl.Err(err))
		status, resp := response.FromQuotaError(err)
		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
