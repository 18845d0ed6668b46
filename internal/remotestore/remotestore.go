// Package remotestore implements the §4.5 remote discoverer and §4.6
// remote downloader: listing and fetching NetCDF objects from the public
// NOAA GOES S3 buckets via an anonymous minio-go client, used as fallback
// when the local archive store does not (yet) have a requested file.
package remotestore

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"goesretrieval/internal/apperr"
	"goesretrieval/internal/catalog"
	"goesretrieval/internal/query"
	"goesretrieval/internal/timeutil"
)

const noaaEndpoint = "s3.amazonaws.com"

// Client wraps an anonymous minio-go client against the public NOAA GOES
// buckets. No credentials are configured; the buckets grant anonymous read.
type Client struct {
	mc             *minio.Client
	cutoverDate    time.Time
	connectTimeout time.Duration
	readTimeout    time.Duration
	retryAttempts  int
	retryBackoff   time.Duration
	progressStep   int
}

// Options configures a Client.
type Options struct {
	Endpoint       string // defaults to s3.amazonaws.com
	CutoverDate    time.Time
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
	ProgressStep   int
}

// NewClient builds an anonymous minio-go client for the public GOES buckets.
func NewClient(opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = noaaEndpoint
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("", "", ""),
		Secure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating anonymous minio client: %w", err)
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.ProgressStep <= 0 {
		opts.ProgressStep = 10
	}
	if opts.CutoverDate.IsZero() {
		opts.CutoverDate = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Client{
		mc:             mc,
		cutoverDate:    opts.CutoverDate,
		connectTimeout: opts.ConnectTimeout,
		readTimeout:    opts.ReadTimeout,
		retryAttempts:  opts.RetryAttempts,
		retryBackoff:   opts.RetryBackoff,
		progressStep:   opts.ProgressStep,
	}, nil
}

// productPath builds the <SENSOR>-<LEVEL>-<suffix><DomainLetter> path
// segment shared by both levels, per §4.5 "Product path".
func productPath(sensor, level, productOrRad, domainLetter string) string {
	return fmt.Sprintf("%s-%s-%s%s", strings.ToUpper(sensor), level, productOrRad, domainLetter)
}

// ProductPaths returns the set of product-path prefixes to enumerate for
// a canonical query. L1b yields one path; L2 yields one per requested
// product (the caller is expected to have already partitioned bands vs.
// non-band products upstream — see DiscoverQuery).
func ProductPaths(q query.CanonicalQuery) []string {
	domainLetter := catalog.DomainLetter(q.Dominio)
	if q.Nivel == catalog.LevelL1b {
		return []string{productPath(q.Sensor, "L1b", "Rad", domainLetter)}
	}
	products := catalog.ExpandProducts(q.Productos)
	paths := make([]string, 0, len(products))
	for _, p := range products {
		paths = append(paths, productPath(q.Sensor, "L2", p, domainLetter))
	}
	return paths
}

// bucketName resolves noaa-goes<NN> for the query's satellite, using the
// date of the first requested day key to resolve operational aliases.
func (c *Client) bucketName(q query.CanonicalQuery) (string, error) {
	dayKeys := q.SortedDayKeys()
	if len(dayKeys) == 0 {
		return "", apperr.BusinessRule("query has no day keys")
	}
	first, err := timeutil.ParseJulian(dayKeys[0])
	if err != nil {
		return "", apperr.BusinessRule("bad day key %q: %v", dayKeys[0], err)
	}
	n, err := catalog.SatelliteBucketNumber(q.Satellite, first, c.cutoverDate)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("noaa-goes%d", n), nil
}

// DiscoverQuery implements the §4.5 contract for one (bands, products)
// partition of a query: enumerate every requested day/hour/product-path,
// list the remote prefix, and filter by band then by minute. Returns a
// map of object basename to its full remote key.
//
// The orchestrator is responsible for calling this twice for L2 queries
// (once for CMI-family products with bands, once for the rest with bands
// cleared) and unioning the results, per §4.7 step 4.
func (c *Client) DiscoverQuery(ctx context.Context, q query.CanonicalQuery) (map[string]string, error) {
	bucket, err := c.bucketName(q)
	if err != nil {
		return nil, err
	}

	bandsApply := q.RequiresBands()
	paths := ProductPaths(q)

	out := make(map[string]string)
	for _, dayKey := range q.SortedDayKeys() {
		ts, ok := timeutil.ParseEmbeddedTimestamp(dayKey + "0000")
		if !ok {
			continue
		}
		ranges, err := parseRanges(q.Fechas[dayKey])
		if err != nil {
			return nil, err
		}
		hourSet := hoursFor(ranges)

		for _, path := range paths {
			for hour := range hourSet {
				prefix := fmt.Sprintf("%s/%04d/%03d/%02d/", path, ts.Year, ts.DayOfYear, hour)
				names, err := c.listWithRetry(ctx, bucket, prefix)
				if err != nil {
					continue // persistent listing failures are skipped, not fatal (§4.5 Robustness)
				}
				for _, name := range names {
					if !strings.HasSuffix(name, ".nc") {
						continue
					}
					base := filepath.Base(name)
					if bandsApply && !matchesAnyBand(base, q.Bandas) {
						continue
					}
					objTS, ok := timeutil.ExtractRemoteTimestamp(base)
					if !ok || objTS.DayKey() != dayKey {
						continue
					}
					if !matchesAnyMinute(objTS.MinuteOfDay(), ranges) {
						continue
					}
					out[base] = bucket + "/" + name
				}
			}
		}
	}
	return out, nil
}

func matchesAnyBand(name string, bands []string) bool {
	for _, b := range catalog.ExpandBands(bands) {
		if strings.Contains(name, "C"+b) {
			return true
		}
	}
	return false
}

func matchesAnyMinute(minuteOfDay int, ranges []timeutil.TimeRange) bool {
	for _, r := range ranges {
		if r.ContainsMinute(minuteOfDay) {
			return true
		}
	}
	return false
}

func hoursFor(ranges []timeutil.TimeRange) map[int]bool {
	hours := make(map[int]bool)
	for _, r := range ranges {
		for h := r.StartHour(); h <= r.EndHour(); h++ {
			hours[h] = true
		}
	}
	return hours
}

func parseRanges(raw []string) ([]timeutil.TimeRange, error) {
	ranges := make([]timeutil.TimeRange, 0, len(raw))
	for _, r := range raw {
		tr, err := timeutil.ParseTimeRange(r)
		if err != nil {
			return nil, apperr.BusinessRule("bad time range %q: %v", r, err)
		}
		ranges = append(ranges, tr)
	}
	return ranges, nil
}

// listWithRetry lists the objects under prefix, retrying with exponential
// backoff plus jitter. A missing "directory" is treated as empty, not an
// error — ListObjects simply yields nothing.
func (c *Client) listWithRetry(ctx context.Context, bucket, prefix string) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff * time.Duration(math.Pow(2, float64(attempt)))
			jitter := time.Duration(rand.Int63n(int64(200 * time.Millisecond)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		listCtx, cancel := context.WithTimeout(ctx, c.connectTimeout+c.readTimeout)
		var names []string
		ok := true
		for obj := range c.mc.ListObjects(listCtx, bucket, minio.ListObjectsOptions{Prefix: prefix}) {
			if obj.Err != nil {
				lastErr = obj.Err
				ok = false
				break
			}
			names = append(names, obj.Key)
		}
		cancel()
		if ok {
			return names, nil
		}
	}
	return nil, apperr.TransientRemote(lastErr, "listing s3://%s/%s", bucket, prefix)
}

// DownloadResult reports the outcome of a download batch.
type DownloadResult struct {
	Downloaded []string
	Failed     []string
}

// ProgressFunc receives cumulative-completions-based progress updates.
type ProgressFunc func(completed, total int)

// Download fetches one remote key into destPath for the §4.6 downloader,
// retrying with exponential backoff. It does no idempotence pre-scan
// (that is PreScan) and no pooling: the caller supplies the concurrency
// bound, and Download is safe to call concurrently for disjoint keys.
func (c *Client) Download(ctx context.Context, key, destPath string) error {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return apperr.TargetFailure(nil, "malformed remote key %q", key)
	}
	bucket, object := parts[0], parts[1]

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		getCtx, cancel := context.WithTimeout(ctx, c.connectTimeout+c.readTimeout)
		err := c.downloadOnce(getCtx, bucket, object, destPath)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if isNotFound(err) {
			break // permanent per-key failure, no retry past a missing object
		}
	}
	return apperr.TargetFailure(lastErr, "downloading s3://%s", key)
}

func (c *Client) downloadOnce(ctx context.Context, bucket, object, destPath string) error {
	obj, err := c.mc.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	tmp := destPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, obj); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, destPath)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}

// PreScan implements the §4.6 idempotence pre-scan: for each key, derive
// dest/<basename(key)>; if it already exists with nonzero size it is
// treated as already done. Returns the remainder to actually download,
// keyed the same way as the input map.
func PreScan(keys map[string]string, dest string) (pending map[string]string, alreadyDone []string) {
	pending = make(map[string]string)
	for base, key := range keys {
		path := filepath.Join(dest, base)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			alreadyDone = append(alreadyDone, path)
			continue
		}
		pending[base] = key
	}
	return pending, alreadyDone
}

// ProgressStep returns the configured batching interval for progress
// updates, per §4.6 "Progress".
func (c *Client) ProgressStep() int { return c.progressStep }
