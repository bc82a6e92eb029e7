package media

import (
	"context"
	"errors"
	"log/slog"

	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/storage"
)

// Acquirer turns a job's declared source into concrete recognition inputs:
// a local file, a durable object-store URI, or both.
type Acquirer struct {
	store      storage.ObjectStore
	downloader *Downloader
	logger     *slog.Logger
}

func NewAcquirer(store storage.ObjectStore, downloader *Downloader, logger *slog.Logger) *Acquirer {
	return &Acquirer{
		store:      store,
		downloader: downloader,
		logger:     logging.NewComponentLogger(logger, "acquirer"),
	}
}

// Resolve fills job.SourcePath and job.RemoteURI in place. Origin URLs are
// downloaded first; local files are then promoted to object storage so the
// remote recognition path stays available. A missing storage bucket is not
// fatal here: small files can still be recognized inline.
func (a *Acquirer) Resolve(ctx context.Context, job *queue.Job) error {
	if job.OriginURL != "" && job.SourcePath == "" && job.RemoteURI == "" {
		path, err := a.downloader.Download(ctx, job.OriginURL)
		if err != nil {
			return err
		}
		job.SourcePath = path
		a.logger.Info("origin audio downloaded",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("path", path),
		)
	}

	if job.SourcePath != "" {
		if !fileutil.FileExists(job.SourcePath) {
			return services.Wrap(services.ErrNotFound, "acquire", "stat source", "audio file does not exist: "+job.SourcePath, nil)
		}
		if job.RemoteURI == "" {
			uri, err := a.store.Put(ctx, job.SourcePath)
			switch {
			case err == nil:
				job.RemoteURI = uri
				a.logger.Info("audio promoted to object storage",
					logging.String(logging.FieldJobID, job.ID),
					logging.String("uri", uri),
				)
			case errors.Is(err, services.ErrConfiguration):
				a.logger.Debug("object storage not configured; inline recognition only",
					logging.String(logging.FieldJobID, job.ID),
				)
			default:
				return err
			}
		}
		return nil
	}

	if job.RemoteURI == "" {
		return services.Wrap(services.ErrValidation, "acquire", "resolve source", "job has no audio source", nil)
	}
	return nil
}
