package bot

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	custommiddleware "github.com/mmeshcher/orderbot/internal/middleware"
	"github.com/mmeshcher/orderbot/internal/telegram"
)

// WebhookRouter настраивает HTTP-маршруты вебхук-режима бота.
func (b *Bot) WebhookRouter(secret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(b.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.SecretToken(secret))
		r.Post("/webhook", b.handleWebhook)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

// handleWebhook принимает одно событие Bot API. Ответ отдаётся сразу:
// обработка идёт в фоне, повторную доставку Telegram при этом гасит
// идемпотентность условных обновлений.
func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var u telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		b.logger.Warn("decode webhook update failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Контекст запроса отменяется вместе с ответом, обработка его переживает.
	go b.HandleUpdate(context.WithoutCancel(r.Context()), u)

	w.WriteHeader(http.StatusOK)
}
