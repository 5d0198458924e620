// Package manifest records which codebook blobs make up a library.
//
// A library lives under a prefix in a blobstore.BlobStore:
//
//	<prefix>/MANIFEST
//	<prefix>/trajectory-v3.mcb
//	<prefix>/pose-v1.mcb
//
// Every metric carries its own version. Saving a library bumps a metric's
// version only when its codebook checksum changed, so unchanged codebooks
// keep their blob and version across saves.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/hupe1980/motionvq/blobstore"
	"github.com/hupe1980/motionvq/codec"
)

const (
	// FileName is the manifest blob name below the library prefix.
	FileName = "MANIFEST"
	// FormatVersion is the manifest layout written by this package.
	FormatVersion = 1
	// BlobExt is the extension of codebook blobs.
	BlobExt = ".mcb"
)

// CodebookInfo describes one persisted codebook.
type CodebookInfo struct {
	Metric      string `json:"metric"`
	Version     uint32 `json:"version"`
	Path        string `json:"path"`
	Checksum    uint32 `json:"checksum"`
	Rows        int    `json:"rows"`
	Size        int64  `json:"size"`
	Compression string `json:"compression,omitempty"`
}

// Manifest lists the codebooks of a library, sorted by metric name.
type Manifest struct {
	FormatVersion int            `json:"format_version"`
	Codebooks     []CodebookInfo `json:"codebooks"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{FormatVersion: FormatVersion}
}

// Lookup returns the entry for metric.
func (m *Manifest) Lookup(metric string) (CodebookInfo, bool) {
	if m == nil {
		return CodebookInfo{}, false
	}
	for _, info := range m.Codebooks {
		if info.Metric == metric {
			return info, true
		}
	}
	return CodebookInfo{}, false
}

// Set inserts or replaces the entry for info.Metric.
func (m *Manifest) Set(info CodebookInfo) {
	for i := range m.Codebooks {
		if m.Codebooks[i].Metric == info.Metric {
			m.Codebooks[i] = info
			return
		}
	}
	m.Codebooks = append(m.Codebooks, info)
	slices.SortFunc(m.Codebooks, func(a, b CodebookInfo) int { return strings.Compare(a.Metric, b.Metric) })
}

// Metrics returns the metric names in order.
func (m *Manifest) Metrics() []string {
	names := make([]string, len(m.Codebooks))
	for i, info := range m.Codebooks {
		names[i] = info.Metric
	}
	return names
}

// NextVersion returns the version a codebook with the given checksum gets
// when saved on top of m, and whether its blob must be written.
func (m *Manifest) NextVersion(metric string, checksum uint32) (uint32, bool) {
	prev, ok := m.Lookup(metric)
	switch {
	case !ok:
		return 1, true
	case prev.Checksum == checksum:
		return prev.Version, false
	default:
		return prev.Version + 1, true
	}
}

// Validate checks entries for duplicates and empty fields.
func (m *Manifest) Validate() error {
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("manifest: unsupported format version %d (expected %d)", m.FormatVersion, FormatVersion)
	}
	seen := make(map[string]struct{}, len(m.Codebooks))
	for _, info := range m.Codebooks {
		if info.Metric == "" || info.Path == "" || info.Version == 0 {
			return fmt.Errorf("manifest: incomplete entry %+v", info)
		}
		if _, dup := seen[info.Metric]; dup {
			return fmt.Errorf("manifest: duplicate metric %q", info.Metric)
		}
		seen[info.Metric] = struct{}{}
	}
	return nil
}

// BlobName returns the blob name of a metric version, relative to the
// library prefix.
func BlobName(metric string, version uint32) string {
	return fmt.Sprintf("%s-v%d%s", metric, version, BlobExt)
}

// Store reads and writes manifests of one library.
type Store struct {
	blobs  blobstore.BlobStore
	prefix string
	codec  codec.Codec
}

// NewStore creates a Store for the library at prefix. A nil codec selects
// codec.Default.
func NewStore(blobs blobstore.BlobStore, prefix string, c codec.Codec) *Store {
	if c == nil {
		c = codec.Default
	}
	return &Store{blobs: blobs, prefix: strings.Trim(prefix, "/"), codec: c}
}

// Path joins name below the library prefix.
func (s *Store) Path(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Load reads the manifest. A missing manifest yields an empty one and
// blobstore.ErrNotFound.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	b, err := s.blobs.Open(ctx, s.Path(FileName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return New(), err
		}
		return nil, err
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}

	m := New()
	if err := s.codec.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes m atomically, replacing the previous manifest.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	m.FormatVersion = FormatVersion
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := s.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	return s.blobs.Put(ctx, s.Path(FileName), data)
}

// Prune deletes codebook blobs below the prefix that m does not reference.
// It returns the deleted names.
func (s *Store) Prune(ctx context.Context, m *Manifest) ([]string, error) {
	dir := s.prefix
	if dir != "" {
		dir += "/"
	}
	names, err := s.blobs.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	live := make(map[string]struct{}, len(m.Codebooks))
	for _, info := range m.Codebooks {
		live[s.Path(info.Path)] = struct{}{}
	}

	var deleted []string
	for _, name := range names {
		// Only direct children; nested libraries own their blobs.
		rel := strings.TrimPrefix(name, dir)
		if strings.Contains(rel, "/") || !strings.HasSuffix(rel, BlobExt) {
			continue
		}
		if _, ok := live[name]; ok {
			continue
		}
		if err := s.blobs.Delete(ctx, name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}
