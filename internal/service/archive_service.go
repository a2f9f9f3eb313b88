package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/util"
	"lingua_voice_backend/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveService stores the raw session audio after close. PCM is wrapped
// into WAV first; the encoded file goes to MinIO or stays on local disk
// depending on storage config.
type ArchiveService struct {
	cfg        config.StorageConfig
	sampleRate int
	client     *minio.Client
}

func NewArchiveService(cfg config.StorageConfig, sampleRate int) (*ArchiveService, error) {
	s := &ArchiveService{cfg: cfg, sampleRate: sampleRate}

	if cfg.Type == "minio" {
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		s.client = client

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		exists, err := client.BucketExists(ctx, cfg.MinioBucket)
		if err != nil {
			return nil, fmt.Errorf("minio bucket check: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("minio bucket create: %w", err)
			}
		}
	}

	return s, nil
}

// Store encodes and persists one session's audio, returning the object
// path recorded on the summary.
func (s *ArchiveService) Store(ctx context.Context, sessionID string, pcm []byte) (string, error) {
	tmpDir, err := os.MkdirTemp("", "voice-archive-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, sessionID+".wav")
	if err := util.EncodePCMToWAV(pcm, s.sampleRate, wavPath); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("sessions/%s/%s.wav", time.Now().UTC().Format("2006-01-02"), sessionID)

	if s.client != nil {
		info, err := s.client.FPutObject(ctx, s.cfg.MinioBucket, objectName, wavPath,
			minio.PutObjectOptions{ContentType: "audio/wav"})
		if err != nil {
			return "", fmt.Errorf("minio upload: %w", err)
		}
		logger.Log.Info("session audio archived",
			zap.String("sessionId", sessionID),
			zap.String("object", objectName),
			zap.Int64("size", info.Size))
		return objectName, nil
	}

	destPath := filepath.Join(s.cfg.LocalPath, objectName)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(wavPath, destPath); err != nil {
		// rename fails across filesystems, fall back to copy
		data, rerr := os.ReadFile(wavPath)
		if rerr != nil {
			return "", err
		}
		if werr := os.WriteFile(destPath, data, 0o644); werr != nil {
			return "", werr
		}
	}

	logger.Log.Info("session audio archived",
		zap.String("sessionId", sessionID),
		zap.String("path", destPath))
	return objectName, nil
}
