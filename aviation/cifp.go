// aviation/cifp.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hdsdk/navlog/log"
	"github.com/hdsdk/navlog/util"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/html"
	"google.golang.org/api/option"
)

const (
	// CIFPSourceFAA selects the current cycle published by the FAA.
	CIFPSourceFAA = "faa"
	FAACIFPPage   = "https://www.faa.gov/air_traffic/flight_info/aeronav/digital_products/cifp/download/"
	// FAACIFPFilename is the name of the CIFP within the FAA's zip file.
	FAACIFPFilename = "FAACIFP18"

	// DefaultCacheMaxAge is the length of an AIRAC cycle.
	DefaultCacheMaxAge = 28 * 24 * time.Hour
)

var (
	zipMagic  = []byte("PK\x03\x04")
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// FetchCIFP returns the raw ARINC-424 text for a CIFP source. Sources may
// be "faa", an http(s) URL, a gs:// or s3:// object, or a local path; the
// data may be zip archived or zstd compressed.
func FetchCIFP(ctx context.Context, source string, lg *log.Logger) ([]byte, error) {
	var b []byte
	var err error

	u, perr := url.Parse(source)
	switch {
	case source == CIFPSourceFAA:
		var zipURL string
		if zipURL, err = FAACIFPZipURL(ctx, http.DefaultClient, FAACIFPPage); err == nil {
			lg.Infof("CIFP is at %s", zipURL)
			b, err = fetchHTTP(ctx, http.DefaultClient, zipURL)
		}

	case perr == nil && (u.Scheme == "http" || u.Scheme == "https"):
		b, err = fetchHTTP(ctx, http.DefaultClient, source)

	case perr == nil && u.Scheme == "gs":
		b, err = fetchGCS(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))

	case perr == nil && u.Scheme == "s3":
		b, err = fetchS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))

	case perr == nil && len(u.Scheme) > 1 && u.Scheme != "file":
		// Single-letter schemes are Windows drive letters.
		return nil, fmt.Errorf("%s: %w", source, ErrUnsupportedCIFP)

	default:
		b, err = os.ReadFile(strings.TrimPrefix(source, "file://"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	lg.Infof("%s: received %d bytes", source, len(b))

	if b, err = decodeCIFP(b); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	lg.Debugf("%s: %d bytes after decompression", source, len(b))

	return b, nil
}

// decodeCIFP unwraps zip or zstd encoded CIFP data; anything else is
// returned as is.
func decodeCIFP(b []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(b, zipMagic):
		zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
		if err != nil {
			return nil, err
		}

		var cifp *zip.File
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			if f.Name == FAACIFPFilename || strings.HasSuffix(f.Name, "/"+FAACIFPFilename) {
				cifp = f
				break
			}
			if cifp == nil {
				cifp = f
			}
		}
		if cifp == nil {
			return nil, ErrNoCIFPInArchive
		}

		r, err := cifp.Open()
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)

	case bytes.HasPrefix(b, zstdMagic):
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return zr.DecodeAll(b, nil)

	default:
		return b, nil
	}
}

func fetchHTTP(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP status %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FAACIFPZipURL scrapes the FAA's CIFP download page for the URL of the
// zip file with the current cycle.
func FAACIFPZipURL(ctx context.Context, client *http.Client, page string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: HTTP status %s", page, resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", err
	}

	href := func(n *html.Node) string {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				return attr.Val
			}
		}
		return ""
	}

	// The current cycle is the first link in a <cfoutput> element; failing
	// that, take the first link to a CIFP zip file.
	var zipURL, fallback string
	var parse func(*html.Node, bool)
	parse = func(node *html.Node, inOutput bool) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "cfoutput":
				inOutput = true
			case "a":
				h := href(node)
				if inOutput && zipURL == "" && h != "" {
					zipURL = h
				}
				if fallback == "" && strings.HasSuffix(strings.ToLower(h), ".zip") &&
					strings.Contains(strings.ToUpper(h), "CIFP") {
					fallback = h
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			parse(child, inOutput)
		}
	}
	parse(doc, false)

	if zipURL == "" {
		zipURL = fallback
	}
	if zipURL == "" {
		return "", fmt.Errorf("%s: no CIFP zip file link: %w", page, ErrNoCIFPInArchive)
	}

	// Links may be relative to the page.
	base, err := url.Parse(page)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(zipURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// fetchGCS reads an object from Google Cloud Storage, authenticating with
// the service account JSON in NAVLOG_GCS_CREDENTIALS if it is set.
func fetchGCS(ctx context.Context, bucket, object string) ([]byte, error) {
	opt := option.WithoutAuthentication()
	if creds := os.Getenv("NAVLOG_GCS_CREDENTIALS"); creds != "" {
		opt = option.WithCredentialsJSON([]byte(creds))
	}

	client, err := storage.NewClient(ctx, opt)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// fetchS3 reads an object from S3 using the default AWS configuration.
// NAVLOG_S3_ACCESS_KEY_ID and NAVLOG_S3_SECRET_ACCESS_KEY override the
// credentials and NAVLOG_S3_REGION the region.
func fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	var opts []func(*config.LoadOptions) error
	if id, secret := os.Getenv("NAVLOG_S3_ACCESS_KEY_ID"), os.Getenv("NAVLOG_S3_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	}
	if region := os.Getenv("NAVLOG_S3_REGION"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	out, err := s3.NewFromConfig(cfg).GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

///////////////////////////////////////////////////////////////////////////
// LoadDatabase

type DatabaseOptions struct {
	Source string
	// CacheDir overrides the user cache directory.
	CacheDir string
	NoCache  bool
	// MaxAge is how long a cached database is used before the source is
	// read again; zero selects DefaultCacheMaxAge.
	MaxAge time.Duration
}

type cachedDatabase struct {
	Source    string
	Airports  map[string]*Airport
	Waypoints map[string][]Waypoint
}

func databaseCachePath(source string) string {
	h := sha256.Sum256([]byte(source))
	return "navdb/" + hex.EncodeToString(h[:8]) + ".msgpack.zst"
}

// LoadDatabase returns the navigation database for the CIFP source,
// using the parsed database cached from an earlier run when it is recent
// enough. Cache failures are logged and otherwise ignored.
func LoadDatabase(ctx context.Context, opts DatabaseOptions, lg *log.Logger) (*StaticDatabase, error) {
	maxAge := util.Select(opts.MaxAge > 0, opts.MaxAge, DefaultCacheMaxAge)

	var cacheDir string
	if !opts.NoCache {
		var err error
		if cacheDir, err = util.CacheDir(opts.CacheDir); err != nil {
			lg.Warnf("cache directory: %v", err)
		}
	}
	cachePath := databaseCachePath(opts.Source)

	if cacheDir != "" {
		var cached cachedDatabase
		t, err := util.CacheRetrieveObject(cacheDir, cachePath, &cached)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			lg.Debugf("%s: no cached database", opts.Source)
		case err != nil:
			lg.Warnf("%s: cached database: %v", opts.Source, err)
		case cached.Source != opts.Source:
			lg.Warnf("%s: cached database is for %q", opts.Source, cached.Source)
		case time.Since(t) > maxAge:
			lg.Infof("%s: cached database from %s is stale", opts.Source, t.Format(time.DateOnly))
		default:
			db := &StaticDatabase{Airports: cached.Airports, Waypoints: cached.Waypoints}
			if db.Airports == nil {
				db.Airports = make(map[string]*Airport)
			}
			if db.Waypoints == nil {
				db.Waypoints = make(map[string][]Waypoint)
			}
			lg.Info("using cached navigation database", "source", opts.Source, "stored", t, "contents", db.String())
			return db, nil
		}
	}

	b, err := FetchCIFP(ctx, opts.Source, lg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	db, err := ParseARINC424(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Source, err)
	}
	lg.Info("parsed CIFP", "source", opts.Source, "contents", db.String(), "elapsed", time.Since(start))

	if cacheDir != "" {
		err := util.CacheStoreObject(cacheDir, cachePath, cachedDatabase{
			Source:    opts.Source,
			Airports:  db.Airports,
			Waypoints: db.Waypoints,
		})
		if err != nil {
			lg.Warnf("%s: caching database: %v", opts.Source, err)
		}
	}

	return db, nil
}
