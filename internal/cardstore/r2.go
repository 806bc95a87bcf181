package cardstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/klauspost/compress/zstd"
)

const zstdSuffix = ".zst"

// R2Config holds Cloudflare R2 settings.
type R2Config struct {
	Endpoint    string // e.g. https://<account-id>.r2.cloudflarestorage.com
	AccessKeyID string
	SecretKey   string
	Bucket      string
	Prefix      string // key prefix, e.g. "cards/"
	Compress    bool   // store zstd-compressed objects under "<key>.zst"
}

// objectAPI is the subset of *s3.Client used by R2Store.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Store keeps card documents as objects in an R2 bucket.
type R2Store struct {
	api      objectAPI
	bucket   string
	prefix   string
	compress bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewR2 builds an S3 client pointed at R2 and returns the store.
func NewR2(ctx context.Context, cfg R2Config) (*R2Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("cardstore: r2 endpoint, credentials and bucket are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("cardstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // required by R2
	})

	return newR2Store(client, cfg)
}

func newR2Store(api objectAPI, cfg R2Config) (*R2Store, error) {
	s := &R2Store{
		api:      api,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		compress: cfg.Compress,
	}
	if cfg.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("cardstore: create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			_ = enc.Close()
			return nil, fmt.Errorf("cardstore: create zstd decoder: %w", err)
		}
		s.encoder, s.decoder = enc, dec
	}
	return s, nil
}

// Name implements Store.
func (s *R2Store) Name() string { return BackendR2 }

// Key returns the object key used for a document name.
func (s *R2Store) Key(name string) string {
	key := s.prefix + name
	if s.compress {
		key += zstdSuffix
	}
	return key
}

// Get implements Store.
func (s *R2Store) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	key := s.Key(name)
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("cardstore: download %q: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("cardstore: read %q: %w", key, err)
	}
	if !s.compress {
		return data, nil
	}

	plain, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("cardstore: decompress %q: %w", key, err)
	}
	return plain, nil
}

// Put implements Writer.
func (s *R2Store) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	body := data
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(name)),
		ContentType: aws.String("application/json"),
	}
	if s.compress {
		body = s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
		input.ContentEncoding = aws.String("zstd")
	}
	input.Body = bytes.NewReader(body)

	if _, err := s.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("cardstore: upload %q: %w", *input.Key, err)
	}
	return nil
}

// Close implements Store.
func (s *R2Store) Close() error {
	if s.decoder != nil {
		s.decoder.Close()
	}
	if s.encoder != nil {
		return s.encoder.Close()
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
