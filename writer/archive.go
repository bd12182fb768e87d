package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"spreadwatch/config"
	"spreadwatch/logger"
	"spreadwatch/processor"
)

// SpreadRecord is one row of the spreads archive.
type SpreadRecord struct {
	SessionID string  `parquet:"name=session_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol    string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64   `parquet:"name=timestamp, type=INT64"`
	Spread    float64 `parquet:"name=spread, type=DOUBLE"`
	Widening  bool    `parquet:"name=widening, type=BOOLEAN"`
}

// WallRecord is one row of the walls archive.
type WallRecord struct {
	SessionID string  `parquet:"name=session_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol    string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side      string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
	Quantity  float64 `parquet:"name=quantity, type=DOUBLE"`
}

// memoryFileWriter implements source.ParquetFile on top of a buffer so files
// can be built without touching disk.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (m *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return m, nil }
func (m *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return m, nil }

// Seek only reports the current size; the parquet writer never seeks back.
func (m *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(m.buffer.Len()), nil
}

func (m *memoryFileWriter) Read(b []byte) (int, error)  { return m.buffer.Read(b) }
func (m *memoryFileWriter) Write(b []byte) (int, error) { return m.buffer.Write(b) }
func (m *memoryFileWriter) Close() error                { return nil }
func (m *memoryFileWriter) Bytes() []byte               { return m.buffer.Bytes() }

// objectStore persists an archive file under a key.
type objectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Location(key string) string
}

type localStore struct {
	dir string
}

func (s *localStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := writeFile(s.dir, key, data)
	return err
}

func (s *localStore) Location(key string) string { return path.Join(s.dir, key) }

type s3Store struct {
	client      *s3.Client
	bucket      string
	compression string
	version     string
}

func (s *s3Store) Put(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":        "parquet",
			"compression":         s.compression,
			"spreadwatch-version": s.version,
		},
	}
	if _, err := s.client.PutObject(context.WithoutCancel(ctx), input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *s3Store) Location(key string) string { return fmt.Sprintf("s3://%s/%s", s.bucket, key) }

// ArchiveWriter stores the spread series and wall list as parquet files,
// either below the output directory or in S3.
type ArchiveWriter struct {
	store       objectStore
	prefix      string
	compression string
	log         *logger.Log
}

// NewArchiveWriter uses S3 when storage.s3.enabled is set and the local
// output directory otherwise.
func NewArchiveWriter(ctx context.Context, cfg *config.Config) (*ArchiveWriter, error) {
	w := &ArchiveWriter{
		compression: cfg.Writer.Archive.Compression,
		log:         logger.GetLogger(),
	}

	if !cfg.Storage.S3.Enabled {
		w.store = &localStore{dir: path.Join(cfg.Writer.OutputDir, "archive")}
		return w, nil
	}

	client, err := newS3Client(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, err
	}
	w.store = &s3Store{
		client:      client,
		bucket:      cfg.Storage.S3.Bucket,
		compression: cfg.Writer.Archive.Compression,
		version:     cfg.Spreadwatch.Version,
	}
	w.prefix = strings.Trim(cfg.Storage.S3.Prefix, "/")

	w.log.WithComponent("archive_writer").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("s3 archive initialized")
	return w, nil
}

func newS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

func (w *ArchiveWriter) Name() string { return "archive" }

func (w *ArchiveWriter) Publish(ctx context.Context, result *processor.Result) error {
	log := w.log.WithComponent("archive_writer").WithField("session_id", result.SessionID)
	if result.NoData {
		log.Info("no samples to archive")
		return nil
	}

	spreads := make([]interface{}, 0, len(result.Samples))
	for i, s := range result.Samples {
		rec := SpreadRecord{
			SessionID: result.SessionID,
			Symbol:    result.Symbol,
			Timestamp: s.Timestamp.UnixMilli(),
			Spread:    s.Spread.InexactFloat64(),
		}
		if i < len(result.Flags) {
			rec.Widening = result.Flags[i]
		}
		spreads = append(spreads, rec)
	}
	if err := w.archive(ctx, log, result, "spreads", new(SpreadRecord), spreads); err != nil {
		return err
	}

	if len(result.Walls) == 0 {
		return nil
	}
	walls := make([]interface{}, 0, len(result.Walls))
	for _, wall := range result.Walls {
		walls = append(walls, WallRecord{
			SessionID: result.SessionID,
			Symbol:    result.Symbol,
			Side:      string(wall.Side),
			Price:     wall.Price.InexactFloat64(),
			Quantity:  wall.Quantity.InexactFloat64(),
		})
	}
	return w.archive(ctx, log, result, "walls", new(WallRecord), walls)
}

func (w *ArchiveWriter) archive(ctx context.Context, log *logger.Entry, result *processor.Result, kind string, schema interface{}, rows []interface{}) error {
	start := time.Now()
	data, err := encodeParquet(schema, rows, w.compression)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	key := archiveKey(w.prefix, result.Symbol, result.StartedAt, kind, result.SessionID)
	if err := w.store.Put(ctx, key, data); err != nil {
		return err
	}

	logger.LogPerformanceEntry(log, "archive_writer", "store_"+kind, time.Since(start), logger.Fields{
		"location": w.store.Location(key),
		"rows":     len(rows),
		"bytes":    len(data),
	})
	log.LogMetric("archive_writer", "rows_written", int64(len(rows)), "counter", logger.Fields{
		"kind":   kind,
		"symbol": result.Symbol,
	})
	return nil
}

// archiveKey builds [prefix/]symbol=<SYM>/date=<YYYY-MM-DD>/<kind>_<session>.parquet.
func archiveKey(prefix, symbol string, at time.Time, kind, sessionID string) string {
	key := fmt.Sprintf("symbol=%s/date=%s/%s_%s.parquet", symbol, at.UTC().Format("2006-01-02"), kind, sessionID)
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

func encodeParquet(schema interface{}, rows []interface{}, compression string) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := pqwriter.NewParquetWriter(fw, schema, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}
