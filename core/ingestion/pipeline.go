package ingestion

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pharma-margin/core/determinism"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
	"pharma-margin/internal/logging"
)

// Phase is a step of the ingestion lifecycle
type Phase int

const (
	PhaseReading Phase = iota
	PhaseSniffing
	PhaseParsing
	PhaseNormalizing
	PhaseReady
	PhaseFailed
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseReading:
		return "reading"
	case PhaseSniffing:
		return "sniffing"
	case PhaseParsing:
		return "parsing"
	case PhaseNormalizing:
		return "normalizing"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source is a rate file read into memory
type Source struct {
	Path        string
	Data        []byte
	ModTime     time.Time
	Size        int64
	Fingerprint determinism.Fingerprint
}

// ReadSource loads a file and records its modification signature
func ReadSource(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.SourceNotFound([]string{path})
		}
		return nil, errors.Internal("stat rate file", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Internal("read rate file", err)
	}
	return &Source{
		Path:        path,
		Data:        data,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
		Fingerprint: determinism.FingerprintOf(data),
	}, nil
}

// Signature identifies a version of a file without reading it
func Signature(path string, modTime time.Time, size int64) string {
	return path + "|" + strconv.FormatInt(modTime.UnixNano(), 10) + "|" + strconv.FormatInt(size, 10)
}

// Signature returns the modification signature of the source
func (s *Source) Signature() string {
	return Signature(s.Path, s.ModTime, s.Size)
}

// Result is the outcome of a successful ingestion
type Result struct {
	Path        string
	Signature   string
	Fingerprint determinism.Fingerprint
	Format      Format
	Schema      types.ColumnSchema
	Rows        []types.RateRow
	Diagnostics Diagnostics
	Duration    time.Duration
}

// Lifecycle runs sniff → read → normalize over a source
type Lifecycle struct {
	opts Options
	log  *zap.Logger
}

// NewLifecycle creates a lifecycle
func NewLifecycle(opts Options) *Lifecycle {
	return &Lifecycle{
		opts: opts,
		log:  logging.Named("ingestion"),
	}
}

// Options returns the options the lifecycle runs with
func (l *Lifecycle) Options() Options {
	return l.opts
}

// Load reads and ingests a file
func (l *Lifecycle) Load(path string) (*Result, error) {
	src, err := ReadSource(path)
	if err != nil {
		l.log.Debug("read failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return l.Ingest(src)
}

// Ingest turns source bytes into validated rate rows
func (l *Lifecycle) Ingest(src *Source) (*Result, error) {
	start := time.Now()
	phase := PhaseSniffing

	fail := func(err error) (*Result, error) {
		l.log.Debug("ingestion failed",
			zap.String("path", src.Path),
			zap.Stringer("phase", phase),
			zap.String("kind", string(errors.TypeOf(err))),
			zap.Error(err))
		return nil, err
	}

	var raw *RawTable
	if IsSpreadsheet(src.Path, src.Data) {
		phase = PhaseParsing
		table, err := ReadSpreadsheet(src.Data, l.opts)
		if err != nil {
			return fail(err)
		}
		raw = table
	} else {
		candidates, lines, err := NewSniffer(l.opts).Candidates(src.Data)
		if err != nil {
			return fail(err)
		}
		l.log.Debug("sniffed", zap.String("path", src.Path), zap.Stringer("preferred", candidates[0]))

		phase = PhaseParsing
		table, err := ReadTable(candidates, lines, l.opts.MinWidth())
		if err != nil {
			return fail(err)
		}
		raw = table
	}

	phase = PhaseNormalizing
	normalized, err := NewSchemaNormalizer(l.opts).Normalize(raw)
	if err != nil {
		return fail(err)
	}

	for _, f := range normalized.Diagnostics.Flagged {
		l.log.Warn("row rejected", zap.String("path", src.Path), zap.Int("line", f.Line), zap.String("reason", f.Reason))
	}

	result := &Result{
		Path:        src.Path,
		Signature:   src.Signature(),
		Fingerprint: src.Fingerprint,
		Format:      raw.Format,
		Schema:      normalized.Schema,
		Rows:        normalized.Rows,
		Diagnostics: normalized.Diagnostics,
		Duration:    time.Since(start),
	}
	l.log.Debug("ingested", append(normalized.Diagnostics.Fields(),
		zap.String("path", src.Path),
		zap.Stringer("fingerprint", src.Fingerprint),
		zap.Duration("duration", result.Duration))...)

	return result, nil
}
