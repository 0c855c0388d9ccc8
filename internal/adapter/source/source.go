package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/semmidev/keepsake/internal/config"
	"github.com/semmidev/keepsake/internal/domain"
	"github.com/semmidev/keepsake/internal/usecase"
)

// Clients carries the remote services sources may need. A nil client is
// created on demand from the sources section of the config.
type Clients struct {
	S3    S3Downloader
	Drive DriveFiles
}

// New builds the payload source of one configured schedule.
func New(ctx context.Context, cfg config.SourceConfig, remote config.SourcesConfig, clients Clients) (domain.Source, error) {
	switch cfg.Type {
	case config.SourceInline:
		value, err := decode([]byte(cfg.InlineJSON))
		if err != nil {
			return nil, fmt.Errorf("inline source: %w", err)
		}
		return NewInline(value), nil

	case config.SourceFile:
		return NewFile(cfg.Path), nil

	case config.SourceHTTP:
		return NewHTTP(cfg.URL, nil), nil

	case config.SourceS3:
		downloader := clients.S3
		if downloader == nil {
			s3cfg := remote.S3
			if cfg.Region != "" {
				s3cfg.Region = cfg.Region
			}
			d, err := NewS3Downloader(ctx, s3cfg)
			if err != nil {
				return nil, err
			}
			downloader = d
		}
		return NewS3(downloader, cfg.Bucket, cfg.Key), nil

	case config.SourceGDrive:
		files := clients.Drive
		if files == nil {
			gcfg := remote.GDrive
			if cfg.CredentialsFile != "" {
				gcfg.CredentialsFile = cfg.CredentialsFile
			}
			f, err := NewDriveFiles(ctx, gcfg)
			if err != nil {
				return nil, err
			}
			files = f
		}
		return NewGDrive(files, cfg.FileID), nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}

// decode parses exactly one JSON document, keeping numbers as written.
func decode(raw []byte) (any, error) {
	var v any
	if err := usecase.DecodeJSON(bytes.NewReader(raw), &v); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return v, nil
}
