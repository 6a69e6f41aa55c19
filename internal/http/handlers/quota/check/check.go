// Package check реализует HTTP-обработчик проверки доступности одного
// тарифицируемого действия для текущего пользователя.
package check

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

// Handler обрабатывает запросы на проверку квоты.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает проверку квоты.
type Service interface {
	CheckQuota(ctx context.Context, userUID string) (models.QuotaInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить квоту
// @Description Возвращает, доступно ли действие и из какого источника (trial, subscription, none) оно будет списано.
// @Tags Quota
// @Produce  json
// @Success 200 {object} models.QuotaInfo "Состояние квоты"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Security BearerAuth
// @Router /quota [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.quota.check"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		sl.UserUID(userUID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	info, err := h.service.CheckQuota(r.Context(), userUID)
	if err != nil {
		log.Error("failed to check quota", sl.Err(err))
		status, resp := response.FromQuotaError(err)
		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}

	log.Debug("quota checked",
		slog.Bool("available", info.Available),
		slog.String("benefit_type", string(info.BenefitType)))
	render.JSON(w, r, response.StatusOKWithData(info))
}
