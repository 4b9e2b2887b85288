// Package fetch downloads release archives, verifies their checksum and
// unpacks them.
package fetch

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/qiniu/x/log"
	"github.com/ulikunitz/xz"
)

// ErrChecksumMismatch is returned when a downloaded archive does not hash
// to the expected value.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Fetcher downloads archives into a cache directory and extracts them.
type Fetcher struct {
	cacheDir   string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client, which times out after 60s.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New returns a Fetcher keeping downloaded archives in cacheDir.
func New(cacheDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log.Std,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get makes sure the archive at rawURL is cached with the given sha256,
// then extracts it into destDir and returns destDir.
// A cached archive with a matching checksum is not downloaded again.
func (f *Fetcher) Get(ctx context.Context, rawURL, sum, destDir string) (string, error) {
	name, err := archiveName(rawURL)
	if err != nil {
		return "", err
	}
	archive := filepath.Join(f.cacheDir, strings.ToLower(sum)+"-"+name)

	if err := verifyFileHash(archive, sum); err == nil {
		f.logger.Debugf("Using cached %s", archive)
	} else {
		if err := f.download(ctx, rawURL, archive); err != nil {
			return "", err
		}
		if err := verifyFileHash(archive, sum); err != nil {
			os.Remove(archive)
			return "", fmt.Errorf("fetch %s: %w", rawURL, err)
		}
	}

	f.logger.Infof("Extracting %s to %s", name, destDir)
	if err := Extract(archive, destDir); err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	return destDir, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	f.logger.Infof("Downloading %s", rawURL)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	f.logger.Debugf("Downloaded %d bytes to %s", written, dest)

	return os.Rename(tmp.Name(), dest)
}

func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("fetch: no file name in %q", rawURL)
	}
	return name, nil
}

func verifyFileHash(file, want string) error {
	fp, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fp.Close()

	h := sha256.New()
	if _, err := io.Copy(h, fp); err != nil {
		return fmt.Errorf("computing hash: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, want, got)
	}
	return nil
}

// Extract unpacks a .tar.gz, .tgz, .tar.xz, .tar.zst or plain .tar archive
// into destDir. Entries resolving outside destDir are rejected.
func Extract(archive, destDir string) error {
	fp, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer fp.Close()

	var r io.Reader
	switch name := strings.ToLower(archive); {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(fp)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		x, err := xz.NewReader(fp)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		r = x
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		zs, err := zstd.NewReader(fp)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zs.Close()
		r = zs
	case strings.HasSuffix(name, ".tar"):
		r = fp
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archive))
	}
	return untar(r, destDir)
}

func untar(r io.Reader, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("tar entry %q escapes destination", hdr.Name)
		}
		target := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return fmt.Errorf("creating file %s: %w", target, err)
			}
			_, err = io.Copy(out, tr)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("writing file %s: %w", target, err)
			}
		case tar.TypeSymlink:
			link := filepath.Join(filepath.Dir(name), filepath.FromSlash(hdr.Linkname))
			if filepath.IsAbs(hdr.Linkname) || !filepath.IsLocal(link) {
				return fmt.Errorf("symlink %q -> %q escapes destination", hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory for symlink: %w", err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return fmt.Errorf("creating symlink %s -> %s: %w", target, hdr.Linkname, err)
			}
		default:
			// pax global headers and device nodes carry nothing to unpack.
		}
	}
}
