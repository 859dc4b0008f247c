package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/", h.HandleGeneratePortfolio)
		r.Post("/chat", h.HandleChat)

		r.Route("/enterprise", func(r chi.Router) {
			r.Post("/", h.HandleGenerateEnterprisePortfolio)
			r.Post("/chat", h.HandleEnterpriseChat)
		})
	})
}
