// Package production implements the scene/order state machine: the
// per-scene mutation operations the reconciler, the housekeeping jobs and
// the processing grid callbacks drive scenes through.
package production

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
	"github.com/ternarybob/orbiter/internal/services/disposition"
)

// SceneRef names a scene by its primary identity.
type SceneRef struct {
	Name    string
	OrderID string
}

// Service exposes the state machine operations. Local mutations always
// commit; external archive notifications are best-effort and recorded as
// FailedExternalSync when they fail.
type Service struct {
	store      interfaces.StorageManager
	landsat    interfaces.LandsatArchive
	cache      interfaces.OnlineCache
	notifier   interfaces.Notifier
	classifier *disposition.Classifier
	cfg        *common.Config
	logger     arbor.ILogger
}

// NewService creates a new production service.
func NewService(store interfaces.StorageManager, landsat interfaces.LandsatArchive, cache interfaces.OnlineCache, notifier interfaces.Notifier, classifier *disposition.Classifier, cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		store:      store,
		landsat:    landsat,
		cache:      cache,
		notifier:   notifier,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// QueueScenes bulk-transitions the named scenes to queued, recording the
// dispatch location and job correlation id. Scenes are grouped by owning
// order to minimize store round-trips. Fails loudly if any referenced scene
// does not exist.
func (s *Service) QueueScenes(ctx context.Context, refs []SceneRef, location, jobName string) error {
	if len(refs) == 0 {
		return nil
	}

	byOrder := make(map[string][]string)
	for _, ref := range refs {
		if ref.Name == "" || ref.OrderID == "" {
			return fmt.Errorf("scene reference requires name and order id")
		}
		byOrder[ref.OrderID] = append(byOrder[ref.OrderID], ref.Name)
	}

	for orderID, names := range byOrder {
		wanted := make(map[string]struct{}, len(names))
		for _, n := range names {
			wanted[n] = struct{}{}
		}

		updated, err := s.store.Scenes().UpdateMatching(ctx, &interfaces.SceneFilter{OrderID: orderID}, func(scene *models.Scene) {
			if _, ok := wanted[scene.Name]; !ok {
				return
			}
			scene.Status = models.SceneStatusQueued
			scene.ProcessingLocation = location
			scene.JobName = jobName
			scene.Note = ""
			scene.LogContents = ""
			delete(wanted, scene.Name)
		})
		if err != nil {
			return fmt.Errorf("failed to queue scenes for order %s: %w", orderID, err)
		}
		if len(wanted) > 0 {
			missing := make([]string, 0, len(wanted))
			for n := range wanted {
				missing = append(missing, n)
			}
			return fmt.Errorf("%w: order %s scenes %s", interfaces.ErrSceneNotFound, orderID, strings.Join(missing, ", "))
		}
		s.logger.Debug().
			Str("order_id", orderID).
			Str("job_name", jobName).
			Int("count", updated).
			Msg("Queued scenes")
	}
	return nil
}

// UpdateStatus applies a free-form progress update from the processing grid.
// Empty location or status fields leave the current value untouched.
func (s *Service) UpdateStatus(ctx context.Context, name, orderID, location string, status models.SceneStatus) error {
	scene, err := s.store.Scenes().GetScene(ctx, orderID, name)
	if err != nil {
		return err
	}
	if location != "" {
		scene.ProcessingLocation = location
	}
	if status != "" {
		if !models.IsValidSceneStatus(status) {
			return fmt.Errorf("invalid scene status: %s", status)
		}
		scene.Status = status
	}
	return s.store.Scenes().UpdateScene(ctx, scene)
}

// MarkComplete validates the finished artifact, records its distribution
// locations and download URLs, and sets the scene complete. When the owning
// order is externally-sourced the archive is notified with code C; a failed
// notification records FailedExternalSync instead of failing the call.
func (s *Service) MarkComplete(ctx context.Context, name, orderID, location, artifactPath, checksumPath, logText string) error {
	scene, err := s.store.Scenes().GetScene(ctx, orderID, name)
	if err != nil {
		return err
	}

	size, err := s.cache.VerifyArtifact(ctx, artifactPath)
	if err != nil {
		return fmt.Errorf("artifact missing for scene %s: %w", scene.Key(), err)
	}

	now := time.Now()
	scene.Status = models.SceneStatusComplete
	scene.CompletionDate = &now
	scene.ProcessingLocation = location
	scene.ProductDistroLocation = artifactPath
	scene.ProductDownloadURL = s.downloadURL(orderID, artifactPath)
	scene.ChecksumDistroLocation = checksumPath
	scene.ChecksumDownloadURL = s.downloadURL(orderID, checksumPath)
	scene.LogContents = logText
	scene.Note = ""

	s.logger.Info().
		Str("scene", scene.Key()).
		Int64("size", size).
		Msg("Scene complete")

	s.pushExternalStatus(ctx, scene, interfaces.UnitStatusComplete)

	return s.store.Scenes().UpdateScene(ctx, scene)
}

// MarkUnavailable sets a single scene permanently unavailable.
func (s *Service) MarkUnavailable(ctx context.Context, name, orderID, location, errText, reason string) error {
	scene, err := s.store.Scenes().GetScene(ctx, orderID, name)
	if err != nil {
		return err
	}
	if location != "" {
		scene.ProcessingLocation = location
	}
	s.markSceneUnavailable(ctx, scene, errText, reason)
	return s.store.Scenes().UpdateScene(ctx, scene)
}

// BulkMarkUnavailable sets every given scene unavailable with a shared
// reason. Used by reconciliation verdicts; per-scene persistence failures
// abort, external notification failures do not.
func (s *Service) BulkMarkUnavailable(ctx context.Context, scenes []*models.Scene, reason string) error {
	for _, scene := range scenes {
		s.markSceneUnavailable(ctx, scene, "", reason)
		if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) markSceneUnavailable(ctx context.Context, scene *models.Scene, errText, reason string) {
	now := time.Now()
	scene.Status = models.SceneStatusUnavailable
	scene.CompletionDate = &now
	scene.Note = reason
	if errText != "" {
		scene.LogContents = errText
	}
	s.pushExternalStatus(ctx, scene, interfaces.UnitStatusRejected)
}

// SetRetry increments the retry counter and schedules re-entry. If the new
// count would exceed the retry limit the call fails without mutating the
// scene; the caller must fall back to error/unavailable.
func (s *Service) SetRetry(ctx context.Context, name, orderID, location, errText, reason string, retryAfter time.Time, retryLimit *int) error {
	scene, err := s.store.Scenes().GetScene(ctx, orderID, name)
	if err != nil {
		return err
	}

	limit := scene.RetryLimit
	if retryLimit != nil {
		limit = *retryLimit
	}
	if limit <= 0 {
		limit = s.cfg.Production.DefaultRetries
	}

	if scene.RetryCount+1 > limit {
		return fmt.Errorf("%w: scene %s at %d of %d", interfaces.ErrRetryLimitExceeded, scene.Key(), scene.RetryCount, limit)
	}

	scene.RetryCount++
	scene.RetryLimit = limit
	scene.RetryAfter = &retryAfter
	scene.Status = models.SceneStatusRetry
	scene.Note = reason
	scene.LogContents = errText
	if location != "" {
		scene.ProcessingLocation = location
	}
	return s.store.Scenes().UpdateScene(ctx, scene)
}

// SetError routes a processing failure through the classifier. Plot scenes
// are exempt from classification and go straight to error; unmatched errors
// do the same. A retry disposition that overruns the retry limit escalates
// to error as well.
func (s *Service) SetError(ctx context.Context, name, orderID, location, errText string) error {
	scene, err := s.store.Scenes().GetScene(ctx, orderID, name)
	if err != nil {
		return err
	}

	if scene.IsPlot() {
		return s.setErrorStatus(ctx, scene, location, errText, "")
	}

	d, matched := s.classifier.Classify(errText)
	if !matched {
		return s.setErrorStatus(ctx, scene, location, errText, "")
	}

	if d.CorruptInput {
		s.alertCorruptInput(ctx, scene)
	}

	switch d.Status {
	case models.SceneStatusRetry:
		err := s.SetRetry(ctx, name, orderID, location, errText, d.Reason, *d.RetryAfter, &d.RetryLimit)
		if err == nil {
			return nil
		}
		if !errors.Is(err, interfaces.ErrRetryLimitExceeded) {
			return err
		}
		return s.setErrorStatus(ctx, scene, location, errText, "Retry limit exceeded: "+d.Reason)

	case models.SceneStatusSubmitted:
		// Reorder from scratch; no retry counter consumed
		scene.Status = models.SceneStatusSubmitted
		scene.Note = d.Reason
		scene.LogContents = errText
		scene.JobName = ""
		if location != "" {
			scene.ProcessingLocation = location
		}
		return s.store.Scenes().UpdateScene(ctx, scene)

	case models.SceneStatusUnavailable:
		return s.MarkUnavailable(ctx, name, orderID, location, errText, d.Reason)

	default:
		return fmt.Errorf("classifier returned unexpected status %s", d.Status)
	}
}

func (s *Service) setErrorStatus(ctx context.Context, scene *models.Scene, location, errText, note string) error {
	scene.Status = models.SceneStatusError
	scene.LogContents = errText
	if note != "" {
		scene.Note = note
	}
	if location != "" {
		scene.ProcessingLocation = location
	}
	s.logger.Warn().
		Str("scene", scene.Key()).
		Str("note", note).
		Msg("Scene errored, held for operator attention")
	return s.store.Scenes().UpdateScene(ctx, scene)
}

func (s *Service) alertCorruptInput(ctx context.Context, scene *models.Scene) {
	info, err := models.ClassifyProductID(scene.Name)
	if err != nil || !info.LandsatFamily {
		return
	}
	if err := s.notifier.SendCorruptInputAlert(ctx, scene.Name); err != nil {
		s.logger.Warn().Err(err).Str("scene", scene.Key()).Msg("Failed to send corrupt input alert")
	}
}

// pushExternalStatus performs the best-effort archive notification for
// scenes tied to an external order. The local state change always persists;
// a failed push records the pending code for the failed-sync retry pass.
func (s *Service) pushExternalStatus(ctx context.Context, scene *models.Scene, code string) {
	if scene.ExternalOrderRef == "" {
		scene.FailedExternalSync = ""
		return
	}
	order, err := s.store.Orders().GetOrder(ctx, scene.OrderID)
	if err != nil || order.OrderSource != models.OrderSourceExternal {
		return
	}
	if err := s.landsat.PushStatus(ctx, scene.ExternalOrderRef, scene.ExternalUnitRef, code); err != nil {
		s.logger.Warn().
			Err(err).
			Str("scene", scene.Key()).
			Str("code", code).
			Msg("External status push failed, will retry")
		scene.FailedExternalSync = code
		return
	}
	scene.FailedExternalSync = ""
}

// downloadURL maps an on-cache artifact path to its externally-servable URL.
func (s *Service) downloadURL(orderID, artifactPath string) string {
	if artifactPath == "" {
		return ""
	}
	base := strings.TrimRight(s.cfg.Cache.DownloadBaseURL, "/")
	return base + "/" + orderID + "/" + path.Base(artifactPath)
}
