// Package grant реализует административный HTTP-обработчик, который заводит
// подписку пользователю: служебный инструмент поддержки, не платёжный поток.
package grant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/issue-quota/internal/http/middlewarectx"
	"github.com/magabrotheeeer/issue-quota/internal/http/response"
	"github.com/magabrotheeeer/issue-quota/internal/lib/period"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
	"github.com/magabrotheeeer/issue-quota/internal/storage"
)

// Handler обрабатывает запросы на создание подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает сохранение подписки.
type Service interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выдать подписку
// @Description Создаёт активную подписку пользователю. Срок задаётся end_date (ДД-ММ-ГГГГ, день включительно, подписка действует до 00:00 UTC следующего дня) или months. Только для администратора.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body models.DummySubscription true "Данные подписки"
// @Success 201 {object} map[string]any "ID созданной подписки"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или период"
// @Failure 403 {object} response.ErrorResponse "Нет роли администратора"
// @Failure 409 {object} response.ErrorResponse "Подписка уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /admin/subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.grant"
	log := h.log.With(
		sl.Op(op),
		slog.String("admin_uid", middlewarectx.UserUIDFrom(r.Context())),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySubscription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	start, end, err := period.Resolve(req.StartDate, req.EndDate, req.Months)
	if err != nil {
		log.Warn("invalid subscription period", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid subscription period"))
		return
	}

	id, err := h.service.CreateSubscription(r.Context(), models.Subscription{
		UserID:       req.UserID,
		ProductID:    req.ProductID,
		Status:       models.SubscriptionActive,
		StartDate:    start,
		EndDate:      end,
		Quota:        req.Quota,
		ReissueQuota: req.ReissueQuota,
	})
	if errors.Is(err, storage.ErrSubscriptionExists) {
		log.Warn("subscription already exists", sl.Err(err))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("subscription already exists"))
		return
	}
	if err != nil {
		log.Error("failed to create subscription", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create subscription"))
		return
	}

	log.Info("subscription granted",
		sl.UserUID(req.UserID),
		slog.String("subscription_id", id),
		slog.Time("end_date", end))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id": id,
	}))
}
