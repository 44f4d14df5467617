// Package artifacts persists what a query leaves behind: the result page,
// its extracted record, a text dump, a screenshot, batch summaries and
// failure diagnostics.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrArtifactNotFound is returned for unknown names or kinds
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInvalidKind is returned when a kind string is not recognized
	ErrInvalidKind = errors.New("invalid artifact kind")
)

// Kind is one of the files written per completed query
type Kind string

const (
	KindHTML       Kind = "html"
	KindJSON       Kind = "json"
	KindText       Kind = "txt"
	KindScreenshot Kind = "screenshot"
)

// Kinds lists every result kind in write order
var Kinds = []Kind{KindHTML, KindJSON, KindText, KindScreenshot}

// ParseKind validates a kind taken from a request
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Ext is the file extension of the kind
func (k Kind) Ext() string {
	if k == KindScreenshot {
		return "png"
	}
	return string(k)
}

// ContentType is the MIME type served for the kind
func (k Kind) ContentType() string {
	switch k {
	case KindHTML:
		return "text/html; charset=utf-8"
	case KindJSON:
		return "application/json; charset=utf-8"
	case KindText:
		return "text/plain; charset=utf-8"
	default:
		return "image/png"
	}
}

// Blobs is the byte storage under the artifact store
type Blobs interface {
	// Put stores data under key and returns where it ended up
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Get returns an error wrapping ErrArtifactNotFound for missing keys
	Get(ctx context.Context, key string) ([]byte, error)
}

// Result is everything captured for one completed query
type Result struct {
	Name       string
	HTML       string
	Record     models.ResultRecord
	Text       string
	Screenshot []byte
}

// Store names and writes artifacts on top of a Blobs backend
type Store struct {
	blobs      Blobs
	resultsDir string
	debugDir   string
	logger     *logrus.Logger
	now        func() time.Time
}

// NewStore creates a store writing results under resultsDir and
// diagnostics under debugDir
func NewStore(blobs Blobs, resultsDir, debugDir string, logger *logrus.Logger) *Store {
	return &Store{
		blobs:      blobs,
		resultsDir: resultsDir,
		debugDir:   debugDir,
		logger:     logger,
		now:        time.Now,
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName reduces a name to characters allowed in artifact file names
func SafeName(name string) string {
	return unsafeName.ReplaceAllString(name, "_")
}

func (s *Store) resultKey(name string, kind Kind) string {
	return path.Join(s.resultsDir, fmt.Sprintf("resultado_%s.%s", name, kind.Ext()))
}

func (s *Store) batchKey(id string) string {
	return path.Join(s.resultsDir, fmt.Sprintf("lote_%s.json", id))
}

// SaveResult writes the result files concurrently and returns their
// locations by kind. Empty text or screenshot are skipped.
func (s *Store) SaveResult(ctx context.Context, r Result) (map[string]string, error) {
	name := SafeName(r.Name)
	record, err := encodeJSON(r.Record)
	if err != nil {
		return nil, fmt.Errorf("encode result record: %w", err)
	}

	files := map[Kind][]byte{
		KindHTML: []byte(r.HTML),
		KindJSON: record,
	}
	if r.Text != "" {
		files[KindText] = []byte(r.Text)
	}
	if len(r.Screenshot) > 0 {
		files[KindScreenshot] = r.Screenshot
	}

	locations := make([]string, len(Kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(Kinds))
	for i, kind := range Kinds {
		data, ok := files[kind]
		if !ok {
			continue
		}
		g.Go(func() error {
			loc, err := s.blobs.Put(gctx, s.resultKey(name, kind), kind.ContentType(), data)
			if err != nil {
				return fmt.Errorf("save %s: %w", kind, err)
			}
			locations[i] = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(files))
	for i, kind := range Kinds {
		if locations[i] != "" {
			out[string(kind)] = locations[i]
		}
	}

	s.logger.WithFields(logrus.Fields{"name": name, "files": len(out)}).Info("Result artifacts saved")
	return out, nil
}

// SaveDiagnostics stores a screenshot and page source for a failed step.
// Whatever could be written is returned even when one write fails.
func (s *Store) SaveDiagnostics(ctx context.Context, prefix string, screenshot []byte, html string) ([]string, error) {
	base := fmt.Sprintf("%s_%d", SafeName(prefix), s.now().Unix())
	var saved []string
	var errs []error

	if len(screenshot) > 0 {
		loc, err := s.blobs.Put(ctx, path.Join(s.debugDir, base+".png"), KindScreenshot.ContentType(), screenshot)
		if err != nil {
			errs = append(errs, err)
		} else {
			saved = append(saved, loc)
		}
	}
	if html != "" {
		loc, err := s.blobs.Put(ctx, path.Join(s.debugDir, base+".html"), KindHTML.ContentType(), []byte(html))
		if err != nil {
			errs = append(errs, err)
		} else {
			saved = append(saved, loc)
		}
	}

	if len(saved) > 0 {
		s.logger.WithField("files", saved).Info("Diagnostics saved")
	}
	return saved, errors.Join(errs...)
}

// SaveBatch writes the consolidated per-row outcomes of a batch
func (s *Store) SaveBatch(ctx context.Context, batchID string, outcomes []models.RowOutcome) (string, error) {
	if outcomes == nil {
		outcomes = []models.RowOutcome{}
	}
	data, err := encodeJSON(outcomes)
	if err != nil {
		return "", fmt.Errorf("encode batch outcomes: %w", err)
	}
	loc, err := s.blobs.Put(ctx, s.batchKey(SafeName(batchID)), KindJSON.ContentType(), data)
	if err != nil {
		return "", fmt.Errorf("save batch %s: %w", batchID, err)
	}
	return loc, nil
}

// Open reads one result artifact
func (s *Store) Open(ctx context.Context, name string, kind Kind) ([]byte, error) {
	if name == "" || SafeName(name) != name {
		return nil, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
	}
	return s.blobs.Get(ctx, s.resultKey(name, kind))
}

// OpenBatch reads a consolidated batch file
func (s *Store) OpenBatch(ctx context.Context, batchID string) ([]byte, error) {
	if batchID == "" || SafeName(batchID) != batchID {
		return nil, fmt.Errorf("%w: %q", ErrArtifactNotFound, batchID)
	}
	return s.blobs.Get(ctx, s.batchKey(batchID))
}

func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
