package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/keepsake/internal/config"
)

// DriveFiles downloads the content of a Drive file.
type DriveFiles interface {
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

type driveService struct {
	service *drive.Service
}

// NewDriveFiles authenticates with a refresh token when one is configured
// (see the drive-auth command) and with a credentials file otherwise.
func NewDriveFiles(ctx context.Context, cfg config.GDriveConfig, opts ...option.ClientOption) (DriveFiles, error) {
	switch {
	case cfg.RefreshToken != "" && cfg.ClientSecretFile != "":
		b, err := os.ReadFile(cfg.ClientSecretFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read client secret: %w", err)
		}
		oauthCfg, err := google.ConfigFromJSON(b, drive.DriveReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse client secret: %w", err)
		}
		ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		opts = append(opts, option.WithTokenSource(ts))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case len(opts) == 0:
		return nil, errors.New("gdrive source needs either a refresh token or a credentials file")
	}

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &driveService{service: service}, nil
}

func (d *driveService) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := d.service.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GDrive downloads one Drive file on every tick.
type GDrive struct {
	files  DriveFiles
	fileID string
}

func NewGDrive(files DriveFiles, fileID string) *GDrive {
	return &GDrive{files: files, fileID: fileID}
}

func (s *GDrive) Describe() string {
	return "gdrive:" + s.fileID
}

func (s *GDrive) Produce(ctx context.Context) (any, error) {
	body, err := s.files.Download(ctx, s.fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to download drive file %s: %w", s.fileID, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read drive file %s: %w", s.fileID, err)
	}
	if len(raw) > maxPayloadSize {
		return nil, fmt.Errorf("drive file %s exceeds %d bytes", s.fileID, maxPayloadSize)
	}
	return decode(raw)
}
