package console

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/docdesk/internal/ui/session"
)

// SetupRoutes configures routes for the console feature.
func SetupRoutes(router chi.Router, cfg Config) (*Handlers, error) {
	handlers := NewHandlers(cfg)

	router.Get("/", handlers.HomePage)
	router.Get(session.LoginRequiredPath, handlers.LoginRequiredPage)
	router.Post("/session", handlers.StartSession)
	router.Get(session.ExpiredPath, handlers.ExpireSession)

	router.Route("/views/{view}", func(r chi.Router) {
		r.Get("/updates", handlers.ViewUpdates)
		r.Get("/export", handlers.Export)

		r.Post("/search", handlers.action("search", handlers.search))
		r.Post("/filter", handlers.action("filter", handlers.applyFilters))
		r.Post("/filter/clear/{key}", handlers.action("clear-filter", handlers.clearFilter))
		r.Post("/filters/clear", handlers.action("clear-filters", handlers.clearFilters))
		r.Post("/page/{page}", handlers.action("page", handlers.setPage))
		r.Post("/per-page", handlers.action("per-page", handlers.setPerPage))
		r.Post("/select/{id}", handlers.action("select", handlers.toggleRow))
		r.Post("/select-all", handlers.action("select-all", handlers.toggleAll))
		r.Post("/delete", handlers.action("delete", handlers.deleteRecord))
		r.Post("/delete/{id}", handlers.action("delete", handlers.deleteRecord))
		r.Post("/bulk-delete", handlers.action("bulk-delete", handlers.bulkDelete))
		r.Post("/confirm", handlers.action("confirm", handlers.confirm))
		r.Post("/cancel", handlers.action("cancel", handlers.cancel))
		r.Post("/dismiss", handlers.action("dismiss", handlers.dismiss))
		r.Post("/tab/{key}", handlers.action("tab", handlers.selectTab))

		r.Post("/field/{name}", handlers.action("field", handlers.changeField))
		r.Post("/password/{name}", handlers.action("password", handlers.togglePassword))
		r.Post("/combo/{name}", handlers.action("combo", handlers.combo))
		r.Post("/file/{name}/clear", handlers.action("clear-file", handlers.clearFile))
		r.Post("/submit", handlers.action("submit", handlers.submit))

		r.Post("/batch/files", handlers.action("batch-files", handlers.batchFiles))
		r.Post("/batch/remove/{file}", handlers.action("batch-remove", handlers.batchRemove))
		r.Post("/batch/parse", handlers.action("batch-parse", handlers.batchParse))
		r.Post("/batch/field/{index}/{name}", handlers.action("batch-field", handlers.batchField))
		r.Post("/batch/submit", handlers.action("batch-submit", handlers.batchSubmit))
		r.Post("/batch/back", handlers.action("batch-back", handlers.batchBack))
		r.Post("/batch/reset", handlers.action("batch-reset", handlers.batchReset))
	})

	router.Route("/{resource}", func(r chi.Router) {
		r.Get("/", handlers.ResourcePage)
		r.Get("/add", handlers.AddPage)
		r.Get("/batch-upload", handlers.BatchPage)
		r.Get("/show/{id}", handlers.ShowPage)
		r.Get("/edit/{id}", handlers.EditPage)
		r.Get("/doc", handlers.DocumentDownload)
	})

	return handlers, nil
}
