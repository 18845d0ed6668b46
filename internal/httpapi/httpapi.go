// Package httpapi is the thin HTTP surface described as an external
// collaborator in §6: request acceptance, validation, and status
// endpoints backed by internal/engine and internal/store. Grounded on the
// teacher's chi + cors + middleware router wiring in cmd/server/main.go.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"goesretrieval/internal/apperr"
	"goesretrieval/internal/catalog"
	"goesretrieval/internal/engine"
	"goesretrieval/internal/store"
)

// API wires an *engine.Engine and *store.Store into a chi router.
type API struct {
	engine *engine.Engine
	store  *store.Store
	apiKey string
}

// New builds an API. An empty apiKey disables the X-API-Key gate on
// restart.
func New(eng *engine.Engine, st *store.Store, apiKey string) *API {
	return &API{engine: eng, store: st, apiKey: apiKey}
}

// Router builds the chi router for this API, following the teacher's
// middleware stack (Logger, Recoverer, RequestID, RealIP) plus a
// permissive CORS policy since the consumer is an internal dashboard.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", a.handleHealth)
	r.Post("/query", a.handleSubmit)
	r.Post("/validate", a.handleValidate)
	r.Get("/query/{id}", a.handleGet)
	r.Post("/query/{id}/restart", a.handleRestart)
	r.Get("/queries", a.handleList)
	r.Delete("/query/{id}", a.handleDelete)
	r.Get("/diagnose", a.handleDiagnose)
	return r
}

func (a *API) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusOK, a.engine.Diagnose(r.Context()))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req catalog.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusUnprocessableEntity, map[string]string{"error": "malformed request body"})
		return
	}

	id, summary, err := a.engine.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/query/"+id)
	writeJSONStatus(w, http.StatusAccepted, map[string]any{
		"consulta_id": id,
		"estado":      store.StateRecibido,
		"resumen":     summary,
	})
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req catalog.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusUnprocessableEntity, map[string]string{"error": "malformed request body"})
		return
	}

	summary, err := a.engine.Validate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{
		"archivos_estimados": summary.FileCount,
		"tamanio_estimado_mb": summary.TotalSizeMB,
	})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := a.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "no such query id"})
		return
	}

	body := map[string]any{
		"consulta_id":   rec.ID,
		"estado":        rec.Estado,
		"progreso":      rec.Progreso,
		"mensaje":       rec.Mensaje,
		"timestamp":     rec.TimestampActualizacion,
		"ruta_destino":  "",
	}

	switch rec.Estado {
	case store.StateCompletado:
		var report engine.Report
		if len(rec.Resultados) > 0 {
			_ = json.Unmarshal(rec.Resultados, &report)
			body["ruta_destino"] = report.RutaDestino
			body["total_mb"] = report.TotalMB
			body["etapa"] = "completado"
			body["total_archivos"] = report.TotalArchivos
			body["archivos_lustre"] = report.Fuentes.Lustre.Total
			body["archivos_s3"] = report.Fuentes.S3.Total
			if r.URL.Query().Get("resultados") == "true" {
				body["resultados"] = report
			}
		}
		writeJSONStatus(w, http.StatusOK, body)
	case store.StateError:
		writeJSONStatus(w, http.StatusInternalServerError, body)
	default:
		w.Header().Set("Retry-After", "10")
		writeJSONStatus(w, http.StatusAccepted, body)
	}
}

func (a *API) handleRestart(w http.ResponseWriter, r *http.Request) {
	if a.apiKey != "" && r.Header.Get("X-API-Key") != a.apiKey {
		writeJSONStatus(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing X-API-Key"})
		return
	}

	id := chi.URLParam(r, "id")
	if err := a.engine.Restart(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/query/"+id)
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"consulta_id": id, "estado": store.StateRecibido})
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	estado := r.URL.Query().Get("estado")
	limite := 100
	if raw := r.URL.Query().Get("limite"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limite = n
		}
	}

	records, err := a.store.List(r.Context(), estado, "", limite)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"consulta_id": rec.ID,
			"estado":      rec.Estado,
			"progreso":    rec.Progreso,
			"usuario":     rec.Usuario,
			"timestamp":   rec.TimestampCreacion,
		})
	}
	writeJSONStatus(w, http.StatusOK, out)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	purge := r.URL.Query().Get("purge") == "true"
	force := r.URL.Query().Get("force") == "true"

	if err := a.engine.Delete(r.Context(), id, purge, force); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSONStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an apperr.Kind to the §6 status-code contract. Both the
// estimated file/size overflow and the insufficient-disk-space cases raise
// KindCapacity; they're told apart by message content since apperr.Error
// carries no finer-grained kind for them.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.Is(err, apperr.KindValidation):
		status = http.StatusUnprocessableEntity
	case apperr.Is(err, apperr.KindBusinessRule):
		status = http.StatusBadRequest
	case apperr.Is(err, apperr.KindCapacity):
		if strings.Contains(err.Error(), "insufficient destination disk space") {
			status = http.StatusInsufficientStorage
		} else {
			status = http.StatusRequestEntityTooLarge
		}
	case apperr.Is(err, apperr.KindFatalQuery):
		status = http.StatusInternalServerError
	}
	writeJSONStatus(w, status, map[string]string{"error": err.Error()})
}
