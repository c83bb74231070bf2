package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

// ReasonNotFoundInArchive is the user-facing note for scenes the archive
// does not know.
const ReasonNotFoundInArchive = "not found in archive"

// ReasonNLAPS is the note for scenes held in the historical NLAPS format,
// which the processing system cannot consume.
const ReasonNLAPS = "NLAPS formatted data is not processable"

// OrderSubmittedLandsat runs the Landsat-side submitted-scene flow: filter
// the NLAPS disallow-list, group the rest by the owning user's archive
// contact id and place bulk orders, then apply the archive's per-scene
// verdict.
func (s *Service) OrderSubmittedLandsat(ctx context.Context) error {
	scenes, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses:    []models.SceneStatus{models.SceneStatusSubmitted},
		SensorTypes: []models.SensorType{models.SensorTypeLandsat},
		SortBy:      "CreatedAt",
		Limit:       s.cfg.Production.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to list submitted landsat scenes: %w", err)
	}
	if len(scenes) == 0 {
		return nil
	}

	orderable, nlaps := splitNLAPS(scenes)
	if len(nlaps) > 0 {
		if err := s.production.BulkMarkUnavailable(ctx, nlaps, ReasonNLAPS); err != nil {
			return fmt.Errorf("failed to mark nlaps scenes unavailable: %w", err)
		}
		s.logger.Info().Int("count", len(nlaps)).Msg("Filtered NLAPS scenes")
	}
	if len(orderable) == 0 {
		return nil
	}

	byContact, err := s.groupByContact(ctx, orderable)
	if err != nil {
		return err
	}

	for contactID, contactScenes := range byContact {
		if len(contactScenes) > s.cfg.Production.BatchSize {
			contactScenes = contactScenes[:s.cfg.Production.BatchSize]
		}
		if err := s.orderForContact(ctx, contactID, contactScenes); err != nil {
			// Per-contact isolation: one archive failure must not starve
			// the other contacts this pass
			s.logger.Error().Err(err).Str("contact_id", contactID).Msg("Bulk order failed for contact")
		}
	}
	return nil
}

func (s *Service) orderForContact(ctx context.Context, contactID string, scenes []*models.Scene) error {
	byID := make(map[string][]*models.Scene, len(scenes))
	ids := make([]string, 0, len(scenes))
	for _, scene := range scenes {
		if _, seen := byID[scene.Name]; !seen {
			ids = append(ids, scene.Name)
		}
		byID[scene.Name] = append(byID[scene.Name], scene)
	}

	verdict, err := s.landsat.OrderScenes(ctx, ids, contactID, s.cfg.Production.OrderPriority)
	if err != nil {
		return fmt.Errorf("archive bulk order failed: %w", err)
	}

	if len(verdict.Available) > 0 {
		available := collect(byID, verdict.Available)
		for _, scene := range available {
			scene.Status = models.SceneStatusOnCache
			scene.Note = ""
			if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
				return err
			}
		}
	}

	if len(verdict.Ordered) > 0 {
		ordered := collect(byID, verdict.Ordered)
		for _, scene := range ordered {
			scene.Status = models.SceneStatusOnOrder
			scene.ExternalOrderRef = verdict.ExternalOrderRef
			scene.Note = ""
			if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
				return err
			}
		}
	}

	if len(verdict.Invalid) > 0 {
		invalid := collect(byID, verdict.Invalid)
		if err := s.production.BulkMarkUnavailable(ctx, invalid, ReasonNotFoundInArchive); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("contact_id", contactID).
		Int("available", len(verdict.Available)).
		Int("ordered", len(verdict.Ordered)).
		Int("invalid", len(verdict.Invalid)).
		Str("external_order_ref", verdict.ExternalOrderRef).
		Msg("Applied archive order verdict")
	return nil
}

// PollOnOrderScenes polls the distinct external batch references of onorder
// scenes, oldest first (references are monotonically increasing), and
// applies per-unit verdicts: R rejects, C stages. Intermediate verdicts are
// ignored until a later pass.
func (s *Service) PollOnOrderScenes(ctx context.Context) error {
	scenes, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses: []models.SceneStatus{models.SceneStatusOnOrder},
		SortBy:   "ExternalOrderRef",
		Limit:    s.cfg.Production.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to list onorder scenes: %w", err)
	}
	if len(scenes) == 0 {
		return nil
	}

	byRef := make(map[string][]*models.Scene)
	refs := make([]string, 0)
	for _, scene := range scenes {
		if scene.ExternalOrderRef == "" {
			s.logger.Warn().Str("scene", scene.Key()).Msg("Onorder scene without external order ref")
			continue
		}
		if _, seen := byRef[scene.ExternalOrderRef]; !seen {
			refs = append(refs, scene.ExternalOrderRef)
		}
		byRef[scene.ExternalOrderRef] = append(byRef[scene.ExternalOrderRef], scene)
	}

	for _, ref := range refs {
		units, err := s.landsat.PollStatus(ctx, ref)
		if err != nil {
			s.logger.Error().Err(err).Str("external_order_ref", ref).Msg("Failed to poll external batch")
			continue
		}
		if err := s.applyUnitVerdicts(ctx, byRef[ref], units); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applyUnitVerdicts(ctx context.Context, scenes []*models.Scene, units []interfaces.UnitStatus) error {
	verdicts := make(map[string]string, len(units))
	for _, u := range units {
		verdicts[strings.ToUpper(u.SceneID)] = u.Status
	}

	var rejected []*models.Scene
	for _, scene := range scenes {
		switch verdicts[strings.ToUpper(scene.Name)] {
		case interfaces.UnitStatusComplete:
			// Includes archive-side duplicate collapsing
			scene.Status = models.SceneStatusOnCache
			scene.Note = ""
			if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
				return err
			}
		case interfaces.UnitStatusRejected:
			rejected = append(rejected, scene)
		}
	}
	if len(rejected) > 0 {
		if err := s.production.BulkMarkUnavailable(ctx, rejected, "rejected by the archive"); err != nil {
			return err
		}
	}
	return nil
}

// groupByContact resolves each scene's owning order to the archive contact
// id the bulk order must be placed under.
func (s *Service) groupByContact(ctx context.Context, scenes []*models.Scene) (map[string][]*models.Scene, error) {
	contacts := make(map[string]string) // order id -> contact id
	grouped := make(map[string][]*models.Scene)

	for _, scene := range scenes {
		contactID, ok := contacts[scene.OrderID]
		if !ok {
			order, err := s.store.Orders().GetOrder(ctx, scene.OrderID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve order %s: %w", scene.OrderID, err)
			}
			contactID = order.ContactID
			if contactID == "" {
				requester, err := s.store.Requesters().GetOrCreate(ctx, order.RequesterEmail, "")
				if err != nil {
					return nil, err
				}
				contactID = requester.ContactID
			}
			contacts[scene.OrderID] = contactID
		}
		grouped[contactID] = append(grouped[contactID], scene)
	}
	return grouped, nil
}

func collect(byID map[string][]*models.Scene, ids []string) []*models.Scene {
	var out []*models.Scene
	for _, id := range ids {
		out = append(out, byID[id]...)
	}
	return out
}

// splitNLAPS separates scenes held in the historical NLAPS format. TM
// acquisitions from the NLAPS conversion era cannot be processed; the
// window is static, it describes the archive's holdings, not policy.
func splitNLAPS(scenes []*models.Scene) (orderable, nlaps []*models.Scene) {
	for _, scene := range scenes {
		if isNLAPS(scene.Name) {
			nlaps = append(nlaps, scene)
		} else {
			orderable = append(orderable, scene)
		}
	}
	return orderable, nlaps
}

var (
	nlapsWindowStart = time.Date(1986, time.January, 1, 0, 0, 0, 0, time.UTC)
	nlapsWindowEnd   = time.Date(1989, time.December, 31, 23, 59, 59, 0, time.UTC)
)

func isNLAPS(sceneID string) bool {
	info, err := models.ClassifyProductID(sceneID)
	if err != nil || info.Kind != models.SensorKindTM {
		return false
	}
	acquired, err := models.AcquisitionDate(sceneID)
	if err != nil {
		return false
	}
	return !acquired.Before(nlapsWindowStart) && !acquired.After(nlapsWindowEnd)
}
