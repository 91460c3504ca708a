package psgc

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
)

// Service implements the read operations exposed over HTTP. Results keep
// the dataset order of the underlying index.
type Service struct {
	index        *Index
	resolver     *Resolver
	scheme       Scheme
	strictLevels bool
	logger       *slog.Logger
}

type Option func(*Service)

// WithStrictLevels controls how SearchByName treats a level it does not
// recognise: strict services return ErrInvalidLevel, permissive ones an
// empty result.
func WithStrictLevels(strict bool) Option {
	return func(s *Service) {
		s.strictLevels = strict
	}
}

func NewService(index *Index, scheme Scheme, opts ...Option) *Service {
	s := &Service{
		index:        index,
		resolver:     NewResolver(index, scheme),
		scheme:       scheme,
		strictLevels: true,
		logger:       slog.Default().With("component", "psgc-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Index() *Index {
	return s.index
}

// CacheNamespace identifies the responses this service produces. Responses
// depend on the dataset, the segmentation scheme and the level policy, so
// services that differ in any of them never share cached entries.
func (s *Service) CacheNamespace() string {
	return fmt.Sprintf("%s-%s-%t", s.index.Fingerprint(), s.scheme.Name, s.strictLevels)
}

// ListRegions returns every region. A region's path is its own name.
func (s *Service) ListRegions() []Entry {
	return s.entries(s.index.Select("", LevelRegion))
}

// ListProvinces returns provinces, limited to those under regionCode when
// it is non-empty.
func (s *Service) ListProvinces(regionCode string) []Entry {
	return s.entries(s.index.Select(s.parentPrefix(regionCode, LevelRegion), LevelProvince))
}

// ListCitiesMunicipalities returns cities and municipalities together,
// limited to those under provinceCode when it is non-empty.
func (s *Service) ListCitiesMunicipalities(provinceCode string) []Entry {
	return s.entries(s.index.Select(s.parentPrefix(provinceCode, LevelProvince), LevelCity, LevelMunicipality))
}

// ListBarangays returns barangays, limited to those under municipalityCode
// when it is non-empty.
func (s *Service) ListBarangays(municipalityCode string) []Entry {
	return s.entries(s.index.Select(s.parentPrefix(municipalityCode, LevelCity), LevelBarangay))
}

// Search returns the records at levels whose name contains query, ignoring
// case. An empty query matches the whole level.
func (s *Service) Search(query string, levels ...Level) []Entry {
	needle := strings.ToLower(query)
	positions := s.index.positions("", levels...)
	out := make([]Entry, 0)
	for _, pos := range positions {
		if strings.Contains(s.index.folded[pos], needle) {
			out = append(out, s.resolver.Entry(s.index.records[pos]))
		}
	}
	return out
}

// SearchByName resolves level by name (see ParseScope) before searching.
// Unknown levels follow the service's level policy.
func (s *Service) SearchByName(level, query string) ([]Entry, error) {
	levels, err := ParseScope(level)
	if err != nil {
		if s.strictLevels {
			return nil, apperrors.New(apperrors.ErrInvalidLevel, 400, fmt.Sprintf("unknown level %q", level))
		}
		s.logger.Debug("unknown level, returning empty result", "level", level)
		return []Entry{}, nil
	}
	return s.Search(query, levels...), nil
}

// Lookup returns a single record with its full path.
func (s *Service) Lookup(code string) (Entry, error) {
	rec, ok := s.index.Get(code)
	if !ok {
		return Entry{}, apperrors.Newf(apperrors.ErrNotFound, 404, "no record with code %q", code)
	}
	return s.resolver.Entry(rec), nil
}

// IsUnknownLevel reports whether err came from an unrecognised level name.
func IsUnknownLevel(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidLevel)
}

// parentPrefix turns a parent code into the prefix its children share. An
// empty code means no filter.
func (s *Service) parentPrefix(code string, parent Level) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return s.scheme.Prefix(code, parent)
}

func (s *Service) entries(records []Record) []Entry {
	out := make([]Entry, len(records))
	for i, rec := range records {
		out[i] = s.resolver.Entry(rec)
	}
	return out
}
