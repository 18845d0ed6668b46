// Package engine implements the §4.7 retrieval engine: the per-query
// orchestrator that drives local discovery/extraction, remote fallback
// discovery/download, progress reporting, and failed-target recovery-query
// reconstruction.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goesretrieval/internal/apperr"
	"goesretrieval/internal/catalog"
	"goesretrieval/internal/localstore"
	"goesretrieval/internal/logger"
	"goesretrieval/internal/query"
	"goesretrieval/internal/remotestore"
	"goesretrieval/internal/store"
	"goesretrieval/internal/timeutil"
)

// Config holds every §6 environment-configurable tunable the engine consults.
type Config struct {
	SourcePath             string
	DownloadPath           string
	MaxWorkers             int
	LustreEnabled          bool
	S3FallbackEnabled      bool
	FileProcessingTimeout  time.Duration
	MaxFilesPerQuery       int
	MaxSizeMBPerQuery      float64
	MinFreeSpaceGBBuffer   float64
	S3RetryAttempts        int
	S3RetryBackoffSeconds  time.Duration
	S3ConnectTimeout       time.Duration
	S3ReadTimeout          time.Duration
	S3ProgressStep         int
	S3OnlyProducts         []string
	ReportFileListCap      int
	GOES19OperationalDate  time.Time
}

// DefaultConfig returns the engine defaults named in §5/§6.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:            8,
		LustreEnabled:         true,
		S3FallbackEnabled:     true,
		FileProcessingTimeout: 120 * time.Second,
		MaxFilesPerQuery:      5000,
		MaxSizeMBPerQuery:     50_000,
		MinFreeSpaceGBBuffer:  10,
		S3RetryAttempts:       3,
		S3RetryBackoffSeconds: 2 * time.Second,
		S3ConnectTimeout:      5 * time.Second,
		S3ReadTimeout:         30 * time.Second,
		S3ProgressStep:        10,
		ReportFileListCap:     500,
		GOES19OperationalDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Engine wires the local discoverer, remote client and persistent store
// into the full per-query pipeline.
type Engine struct {
	cfg    Config
	store  *store.Store
	local  *localstore.Discoverer
	remote *remotestore.Client
}

// New builds an Engine. remote may be nil when S3FallbackEnabled is false.
func New(cfg Config, st *store.Store, remote *remotestore.Client) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  st,
		local:  localstore.NewDiscoverer(cfg.SourcePath),
		remote: remote,
	}
}

// Submit implements the acceptance gate: normalize, estimate, and (if
// within limits) persist a new record in state recibido and launch the
// pipeline in the background. Returns the new query id and the estimate.
func (e *Engine) Submit(ctx context.Context, req catalog.Request) (string, catalog.EstimateSummary, error) {
	summary, err := e.Validate(ctx, req)
	if err != nil {
		return "", catalog.EstimateSummary{}, err
	}

	cq, err := query.Normalize(req)
	if err != nil {
		return "", catalog.EstimateSummary{}, err
	}

	id := uuid.NewString()
	queryJSON, err := json.Marshal(cq)
	if err != nil {
		return "", catalog.EstimateSummary{}, apperr.FatalQuery(err, "serializing canonical query")
	}
	if err := e.store.Create(ctx, id, queryJSON, req.CreadoPor); err != nil {
		return "", catalog.EstimateSummary{}, err
	}

	go func() {
		bg := context.Background()
		if err := e.Run(bg, id); err != nil {
			logger.GetLogger(bg).Error("pipeline failed", zap.String("id", id), zap.Error(err))
		}
	}()

	return id, summary, nil
}

// Validate runs the acceptance gate without persisting anything: estimate
// the request and reject it (CapacityError) if it exceeds the configured
// file/size/disk thresholds.
func (e *Engine) Validate(ctx context.Context, req catalog.Request) (catalog.EstimateSummary, error) {
	summary, err := catalog.EstimateFilesSummary(req)
	if err != nil {
		return catalog.EstimateSummary{}, err
	}
	if summary.FileCount > e.cfg.MaxFilesPerQuery {
		return summary, apperr.Capacity("estimated %d files exceeds limit %d", summary.FileCount, e.cfg.MaxFilesPerQuery)
	}
	if summary.TotalSizeMB > e.cfg.MaxSizeMBPerQuery {
		return summary, apperr.Capacity("estimated %.2fMB exceeds limit %.2fMB", summary.TotalSizeMB, e.cfg.MaxSizeMBPerQuery)
	}
	if e.cfg.DownloadPath != "" {
		free, err := freeSpaceGB(e.cfg.DownloadPath)
		if err == nil && free-summary.TotalSizeGB < e.cfg.MinFreeSpaceGBBuffer {
			return summary, apperr.Capacity("insufficient destination disk space: %.2fGB free, need %.2fGB buffer after %.2fGB estimate",
				free, e.cfg.MinFreeSpaceGBBuffer, summary.TotalSizeGB)
		}
	}
	return summary, nil
}

// Restart resets a record to recibido and re-enqueues the pipeline.
func (e *Engine) Restart(ctx context.Context, id string) error {
	if err := e.store.UpdateState(ctx, id, store.StateRecibido, 0, "Reiniciado"); err != nil {
		return err
	}
	go func() {
		bg := context.Background()
		if err := e.Run(bg, id); err != nil {
			logger.GetLogger(bg).Error("pipeline failed", zap.String("id", id), zap.Error(err))
		}
	}()
	return nil
}

// Delete removes a record and, when purge is true, its destination
// directory (refusing unless force is also true while the query is
// processing).
func (e *Engine) Delete(ctx context.Context, id string, purge, force bool) error {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperr.Validation("no such query id %s", id)
	}
	var errs *multierror.Error
	if purge {
		if rec.Estado == store.StateProcesando && !force {
			return apperr.Validation("query %s is still processing; use force to purge anyway", id)
		}
		dest := filepath.Join(e.cfg.DownloadPath, id)
		if err := os.RemoveAll(dest); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("removing destination %s: %w", dest, err))
		}
	}
	if err := e.store.Delete(ctx, id); err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs.ErrorOrNil() != nil {
		return apperr.FatalQuery(errs.ErrorOrNil(), "deleting query %s", id)
	}
	return nil
}

// Run executes the full per-query pipeline described in §4.7.
func (e *Engine) Run(ctx context.Context, id string) error {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperr.Validation("no such query id %s", id)
	}

	var cq query.CanonicalQuery
	if err := json.Unmarshal(rec.Query, &cq); err != nil {
		return e.fail(ctx, id, apperr.FatalQuery(err, "decoding stored query"))
	}

	start := time.Now()
	dest := filepath.Join(e.cfg.DownloadPath, id)

	if err := e.store.UpdateState(ctx, id, store.StateProcesando, 10, "Preparando entorno"); err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return e.fail(ctx, id, apperr.FatalQuery(err, "creating destination %s", dest))
	}

	var failedLocal []string
	var s3Keys map[string]string
	var s3Failed []string
	var downloadedS3 []string

	if e.cfg.LustreEnabled && !allProductsS3Only(cq, e.cfg.S3OnlyProducts) {
		localCQ, _ := partitionLocalEligible(cq, e.cfg.S3OnlyProducts)

		candidates, err := e.local.DiscoverAndFilter(localCQ)
		if err != nil {
			return e.fail(ctx, id, apperr.FatalQuery(err, "discovering local archives"))
		}
		pending, err := e.local.ScanExisting(candidates, dest)
		if err != nil {
			return e.fail(ctx, id, apperr.FatalQuery(err, "scanning destination"))
		}

		if err := e.store.UpdateState(ctx, id, store.StateProcesando, 20,
			fmt.Sprintf("Identificados %d pendientes", len(pending))); err != nil {
			return err
		}

		failedLocal, err = e.processArchives(ctx, id, pending, dest, localCQ)
		if err != nil {
			return e.fail(ctx, id, err)
		}
	} else {
		reason := "Lustre deshabilitado"
		if e.cfg.LustreEnabled {
			reason = "Todos los productos solicitados son exclusivos de S3"
		}
		if err := e.store.UpdateState(ctx, id, store.StateProcesando, 20, reason); err != nil {
			return err
		}
	}

	if e.cfg.S3FallbackEnabled && e.remote != nil {
		if err := e.store.UpdateState(ctx, id, store.StateProcesando, 85, "Buscando archivos adicionales en S3"); err != nil {
			return err
		}
		s3Keys, err = e.discoverRemote(ctx, cq)
		if err != nil {
			return e.fail(ctx, id, err)
		}
		downloadedS3, s3Failed, err = e.downloadRemote(ctx, id, s3Keys, dest)
		if err != nil {
			return e.fail(ctx, id, err)
		}
	}

	if err := e.store.UpdateState(ctx, id, store.StateProcesando, 95, "Generando reporte final"); err != nil {
		return err
	}

	report, err := e.buildReport(dest, downloadedS3, cq, failedLocal, s3Failed, start)
	if err != nil {
		return e.fail(ctx, id, err)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return e.fail(ctx, id, apperr.FatalQuery(err, "serializing report"))
	}

	msg := fmt.Sprintf("Recuperación: T=%d, L=%d, S=%d", report.TotalArchivos, report.Fuentes.Lustre.Total, report.Fuentes.S3.Total)
	if len(failedLocal)+len(s3Failed) > 0 {
		msg += fmt.Sprintf(", F=%d", len(failedLocal)+len(s3Failed))
	}
	return e.store.SaveResults(ctx, id, reportJSON, msg)
}

func (e *Engine) fail(ctx context.Context, id string, err error) error {
	_ = e.store.UpdateState(ctx, id, store.StateError, 0, fmt.Sprintf("Error: %v", err))
	return err
}

// partitionLocalEligible splits products into the local-eligible subset
// (not in s3OnlyProducts) and the S3-only subset, per §4.7 step 2a.
func partitionLocalEligible(cq query.CanonicalQuery, s3OnlyProducts []string) (local query.CanonicalQuery, s3Only []string) {
	if len(s3OnlyProducts) == 0 || cq.Nivel != catalog.LevelL2 {
		return cq, nil
	}
	excluded := make(map[string]bool, len(s3OnlyProducts))
	for _, p := range s3OnlyProducts {
		excluded[strings.ToUpper(p)] = true
	}

	local = cq
	var kept []string
	for _, p := range cq.Productos {
		if excluded[strings.ToUpper(p)] {
			s3Only = append(s3Only, p)
		} else {
			kept = append(kept, p)
		}
	}
	local.Productos = kept
	return local, s3Only
}

// allProductsS3Only reports whether every requested L2 product is
// configured as S3-only, meaning the local pass has nothing to contribute.
func allProductsS3Only(cq query.CanonicalQuery, s3OnlyProducts []string) bool {
	if cq.Nivel != catalog.LevelL2 || len(s3OnlyProducts) == 0 || len(cq.Productos) == 0 {
		return false
	}
	excluded := make(map[string]bool, len(s3OnlyProducts))
	for _, p := range s3OnlyProducts {
		excluded[strings.ToUpper(p)] = true
	}
	for _, p := range cq.Productos {
		if !excluded[strings.ToUpper(p)] {
			return false
		}
	}
	return true
}

func (e *Engine) processArchives(ctx context.Context, id string, pending []string, dest string, cq query.CanonicalQuery) ([]string, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	total := len(pending)
	var mu sync.Mutex
	var completed int
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers(e.cfg.MaxWorkers))

	for _, archivePath := range pending {
		archivePath := archivePath
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(gctx, e.cfg.FileProcessingTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				_, err := localstore.ProcessArchive(archivePath, dest, cq.Nivel, cq.Bandas, cq.Productos)
				done <- err
			}()

			var taskErr error
			select {
			case <-taskCtx.Done():
				taskErr = apperr.TargetFailure(taskCtx.Err(), "timed out processing %s", archivePath)
			case err := <-done:
				taskErr = err
			}

			mu.Lock()
			completed++
			progress := 20 + int(float64(completed)/float64(total)*60)
			_ = e.store.UpdateState(ctx, id, store.StateProcesando, progress,
				fmt.Sprintf("Procesando archivo %d/%d: %s", completed, total, filepath.Base(archivePath)))
			if taskErr != nil {
				failed = append(failed, archivePath)
			}
			mu.Unlock()
			return nil // per-archive failures never abort the pipeline
		})
	}
	if err := g.Wait(); err != nil {
		return failed, apperr.FatalQuery(err, "archive worker pool")
	}
	return failed, nil
}

func (e *Engine) discoverRemote(ctx context.Context, cq query.CanonicalQuery) (map[string]string, error) {
	merged := make(map[string]string)
	if cq.Nivel == catalog.LevelL2 {
		cmi, nonCMI := splitCMIProducts(catalog.ExpandProducts(cq.Productos))
		if len(cmi) > 0 {
			withBands := cq
			withBands.Productos = cmi
			keys, err := e.remote.DiscoverQuery(ctx, withBands)
			if err != nil {
				return nil, err
			}
			mergeInto(merged, keys)
		}
		if len(nonCMI) > 0 {
			noBands := cq
			noBands.Productos = nonCMI
			noBands.Bandas = nil
			keys, err := e.remote.DiscoverQuery(ctx, noBands)
			if err != nil {
				return nil, err
			}
			mergeInto(merged, keys)
		}
		return merged, nil
	}
	return e.remote.DiscoverQuery(ctx, cq)
}

func splitCMIProducts(products []string) (cmi, nonCMI []string) {
	for _, p := range products {
		if catalog.IsCMIFamily(p) {
			cmi = append(cmi, p)
		} else {
			nonCMI = append(nonCMI, p)
		}
	}
	return cmi, nonCMI
}

func mergeInto(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func (e *Engine) downloadRemote(ctx context.Context, id string, keys map[string]string, dest string) ([]string, []string, error) {
	pending, already := remotestore.PreScan(keys, dest)
	total := len(already) + len(pending)
	if total == 0 {
		return already, nil, nil
	}

	var mu sync.Mutex
	completed := len(already)
	downloaded := append([]string{}, already...)
	var failed []string

	if err := e.store.UpdateState(ctx, id, store.StateProcesando, progressFor(completed, total), "Descargando archivos de S3"); err != nil {
		return nil, nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers(e.cfg.MaxWorkers))

	step := e.remote.ProgressStep()
	if step <= 0 {
		step = 1
	}

	for base, key := range pending {
		base, key := base, key
		g.Go(func() error {
			destPath := filepath.Join(dest, base)
			err := e.remote.Download(gctx, key, destPath)

			mu.Lock()
			completed++
			n := completed
			if err != nil {
				failed = append(failed, key)
			} else {
				downloaded = append(downloaded, destPath)
			}
			shouldReport := n%step == 0 || n == total
			mu.Unlock()

			if shouldReport {
				_ = e.store.UpdateState(ctx, id, store.StateProcesando, progressFor(n, total), "Descargando archivos de S3")
			}
			return nil // per-key failures never abort the pipeline
		})
	}
	if err := g.Wait(); err != nil {
		return downloaded, failed, apperr.FatalQuery(err, "download worker pool")
	}
	return downloaded, failed, nil
}

// progressFor maps download completions onto the 85-95 global progress
// band, per §4.6 "Progress".
func progressFor(completed, total int) int {
	if total == 0 {
		return 95
	}
	return 85 + int(float64(completed)/float64(total)*10)
}

func maxWorkers(n int) int {
	if n <= 0 {
		return 8
	}
	return n
}

// freeSpaceGB returns the free space available on the filesystem holding
// path, in gibibytes. path need not exist yet; its nearest existing
// ancestor is statted instead.
func freeSpaceGB(path string) (float64, error) {
	probe := path
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(probe, &stat); err != nil {
		return 0, apperr.FatalQuery(err, "statting filesystem for %s", probe)
	}
	bytes := float64(stat.Bavail) * float64(stat.Bsize)
	return bytes / (1024 * 1024 * 1024), nil
}

// Diagnostics is an operational snapshot of catalog validity and
// destination disk usage, surfaced as a read-only collaborator endpoint;
// it mutates nothing.
type Diagnostics struct {
	Satellites        []string `json:"satellites"`
	Sensores          []string `json:"sensores"`
	Niveles           []string `json:"niveles"`
	Dominios          []string `json:"dominios"`
	Productos         []string `json:"productos"`
	Bandas            []string `json:"bandas"`
	SourcePath        string   `json:"source_path"`
	DownloadPath      string   `json:"download_path"`
	LustreEnabled     bool     `json:"lustre_enabled"`
	S3FallbackEnabled bool     `json:"s3_fallback_enabled"`
	FreeSpaceGB       float64  `json:"free_space_gb"`
	S3OnlyProducts    []string `json:"s3_only_products,omitempty"`
}

// Diagnose builds a Diagnostics snapshot. It never fails on disk-space
// probing errors; FreeSpaceGB is left at zero and the error is swallowed,
// since this is purely informational tooling.
func (e *Engine) Diagnose(ctx context.Context) Diagnostics {
	d := Diagnostics{
		Satellites:        catalog.ValidSatellites,
		Sensores:          catalog.ValidSensors,
		Niveles:           catalog.ValidLevels,
		Dominios:          catalog.ValidDomains,
		Productos:         catalog.ValidProducts,
		Bandas:            catalog.ValidBands,
		SourcePath:        e.cfg.SourcePath,
		DownloadPath:      e.cfg.DownloadPath,
		LustreEnabled:     e.cfg.LustreEnabled,
		S3FallbackEnabled: e.cfg.S3FallbackEnabled,
		S3OnlyProducts:    e.cfg.S3OnlyProducts,
	}
	if e.cfg.DownloadPath != "" {
		if free, err := freeSpaceGB(e.cfg.DownloadPath); err == nil {
			d.FreeSpaceGB = free
		}
	}
	return d
}

// Report mirrors the §3 "Report (persisted under resultados)" shape.
type Report struct {
	Fuentes                struct {
		Lustre SourceSummary `json:"lustre"`
		S3     SourceSummary `json:"s3"`
	} `json:"fuentes"`
	ConteoPorProducto      map[string]int `json:"conteo_por_producto"`
	ConteoPorProductoS3    map[string]int `json:"conteo_por_producto_s3"`
	TotalArchivos          int            `json:"total_archivos"`
	TotalMB                float64        `json:"total_mb"`
	RutaDestino            string         `json:"ruta_destino"`
	TimestampProcesamiento time.Time      `json:"timestamp_procesamiento"`
	DuracionProcesamiento  float64        `json:"duracion_procesamiento"`
	ConsultaRecuperacion   *RecoveryRequest `json:"consulta_recuperacion"`
}

// SourceSummary is a per-source filename list (capped) and a total count.
type SourceSummary struct {
	Archivos []string `json:"archivos"`
	Total    int      `json:"total"`
}

// RecoveryRequest is a request payload reconstructed from failed targets.
type RecoveryRequest struct {
	Satellite   string              `json:"sat,omitempty"`
	Sensor      string              `json:"sensor,omitempty"`
	Nivel       string              `json:"nivel,omitempty"`
	Dominio     string              `json:"dominio"`
	Productos   []string            `json:"productos,omitempty"`
	Bandas      []string            `json:"bandas,omitempty"`
	Fechas      map[string][]string `json:"fechas"`
	Descripcion string              `json:"descripcion"`
}

func (e *Engine) buildReport(dest string, downloadedS3 []string, cq query.CanonicalQuery, failedLocal, failedS3 []string, start time.Time) (*Report, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return nil, apperr.FatalQuery(err, "reading destination %s", dest)
	}

	s3Set := make(map[string]bool, len(downloadedS3))
	for _, p := range downloadedS3 {
		s3Set[filepath.Base(p)] = true
	}

	var localFiles, s3Files []string
	var totalBytes int64
	conteoLocal := make(map[string]int)
	conteoS3 := make(map[string]int)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		totalBytes += info.Size()

		name := entry.Name()
		base := normalizeProductToken(extractProductToken(name))
		if s3Set[name] {
			s3Files = append(s3Files, name)
			conteoS3[base]++
		} else {
			localFiles = append(localFiles, name)
			conteoLocal[base]++
		}
	}
	sort.Strings(localFiles)
	sort.Strings(s3Files)

	report := &Report{
		ConteoPorProducto:      conteoLocal,
		ConteoPorProductoS3:    conteoS3,
		TotalArchivos:          len(localFiles) + len(s3Files),
		TotalMB:                float64(totalBytes) / (1024 * 1024),
		RutaDestino:            dest,
		TimestampProcesamiento: time.Now().UTC(),
		DuracionProcesamiento:  time.Since(start).Seconds(),
	}
	report.Fuentes.Lustre = capSummary(localFiles, e.cfg.ReportFileListCap)
	report.Fuentes.S3 = capSummary(s3Files, e.cfg.ReportFileListCap)

	recovery, err := buildRecoveryQuery(cq, append(append([]string{}, failedLocal...), failedS3...))
	if err != nil {
		return nil, err
	}
	report.ConsultaRecuperacion = recovery

	return report, nil
}

func capSummary(files []string, limit int) SourceSummary {
	s := SourceSummary{Total: len(files)}
	if limit <= 0 || len(files) <= limit {
		s.Archivos = files
	} else {
		s.Archivos = files[:limit]
	}
	return s
}

// extractProductToken pulls the product/rad token out of a local archive
// member or remote object filename: the segment following "-L2-" or
// "-L1b-" up to the next "-" or "_".
func extractProductToken(name string) string {
	for _, marker := range []string{"-L2-", "-L1b-"} {
		idx := strings.Index(name, marker)
		if idx == -1 {
			continue
		}
		rest := name[idx+len(marker):]
		end := strings.IndexAny(rest, "-_")
		if end == -1 {
			return rest
		}
		return rest[:end]
	}
	return name
}

var productAliases = map[string]string{
	"CODD": "COD", "CODN": "COD",
	"CPSD": "CPS", "CPSN": "CPS",
	"VAAF": "VAA",
}

// normalizeProductToken strips the trailing domain-letter suffix
// (C|F|M1|M2) from a raw product token, applying the documented aliases
// for the codes whose natural suffix isn't a domain letter.
func normalizeProductToken(raw string) string {
	if alias, ok := productAliases[raw]; ok {
		return alias
	}
	for _, suf := range []string{"M1", "M2", "F", "C"} {
		if strings.HasSuffix(raw, suf) {
			return strings.TrimSuffix(raw, suf)
		}
	}
	return raw
}

// buildRecoveryQuery implements §4.7 step 6: for each failed target,
// recover its YYYYMMDD+HH:MM from the embedded filename timestamp, find
// the original_request.fechas key (single day or range) whose span
// contains that day, find the range within it containing that minute (or
// that key's first range when none does), and append it (deduplicated) to
// the recovery map under that key.
func buildRecoveryQuery(cq query.CanonicalQuery, failedPaths []string) (*RecoveryRequest, error) {
	if len(failedPaths) == 0 {
		return nil, nil
	}

	fechas := make(map[string][]string)
	for _, path := range failedPaths {
		name := filepath.Base(path)
		ts, ok := timeutil.ExtractLocalTimestamp(name)
		if !ok {
			ts, ok = timeutil.ExtractRemoteTimestamp(name)
		}
		if !ok {
			continue
		}
		ymd, err := timeutil.JulianToYMD(ts.DayKey())
		if err != nil {
			continue
		}
		key, rangeStr, ok := findOriginalRange(cq.OriginalRequest.Fechas, ymd, ts.Hour, ts.Minute)
		if !ok {
			continue
		}
		if !containsString(fechas[key], rangeStr) {
			fechas[key] = append(fechas[key], rangeStr)
		}
	}
	if len(fechas) == 0 {
		return nil, nil
	}

	return &RecoveryRequest{
		Satellite:   cq.OriginalRequest.Satellite,
		Sensor:      cq.OriginalRequest.Sensor,
		Nivel:       cq.OriginalRequest.Nivel,
		Dominio:     cq.OriginalRequest.Dominio,
		Productos:   cq.OriginalRequest.Productos,
		Bandas:      cq.OriginalRequest.Bandas,
		Fechas:      fechas,
		Descripcion: fmt.Sprintf("Consulta de recuperación generada el %s", time.Now().UTC().Format(time.RFC3339)),
	}, nil
}

// findOriginalRange locates the original_request.fechas key whose
// (possibly ranged) span contains ymd, then the time-range string within
// it that contains (hour, minute). When no range of that key contains the
// minute, the key's first range is returned.
func findOriginalRange(original map[string][]string, ymd string, hour, minute int) (key, rangeStr string, ok bool) {
	minuteOfDay := hour*60 + minute
	for k, ranges := range original {
		days, err := timeutil.ExpandDateKey(k)
		if err != nil || !containsString(days, ymd) {
			continue
		}
		for _, r := range ranges {
			tr, err := timeutil.ParseTimeRange(r)
			if err != nil {
				continue
			}
			if tr.ContainsMinute(minuteOfDay) {
				return k, r, true
			}
		}
		if len(ranges) > 0 {
			return k, ranges[0], true
		}
	}
	return "", "", false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
