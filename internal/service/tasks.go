package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
)

const (
	msgTouchPointNotFound = "Touch point not found"
	msgInvalidAction      = "Invalid action."
)

const week = 7 * 24 * time.Hour

// WeeksSince is the number of whole weeks from from to now, rounded down,
// so the week before surgery is period -1.
func WeeksSince(from, now time.Time) int {
	d := now.Sub(from)
	w := int(d / week)
	if d < 0 && d%week != 0 {
		w--
	}
	return w
}

func (s *Service) period(p *models.Participant) int {
	if p.DateOfSurgery == nil {
		return 0
	}
	return WeeksSince(*p.DateOfSurgery, s.now())
}

// dropShadowedPaths removes the participant's group-wide paths when a
// location-specific path is present. Global paths are kept.
func dropShadowedPaths(paths []models.Path) []models.Path {
	hasLocation := slices.ContainsFunc(paths, func(p models.Path) bool { return p.LocationID != nil })
	if !hasLocation {
		return paths
	}
	out := make([]models.Path, 0, len(paths))
	for _, p := range paths {
		if p.GroupID != nil && p.LocationID == nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// applicablePaths returns the paths that apply to p. With stageID nil the
// paths of every stage are returned, shadowing applied per stage.
func (s *Service) applicablePaths(ctx context.Context, p *models.Participant, stageID *uuid.UUID) ([]models.Path, error) {
	candidates, err := s.store.Paths.ListCandidates(ctx, repository.PathQuery{
		GroupID:    p.GroupID,
		LocationID: p.LocationID,
		UserType:   p.Type,
		StageID:    stageID,
	})
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	if stageID != nil {
		return dropShadowedPaths(candidates), nil
	}

	byStage := make(map[uuid.UUID][]models.Path)
	order := make([]uuid.UUID, 0)
	for _, c := range candidates {
		if _, ok := byStage[c.StageID]; !ok {
			order = append(order, c.StageID)
		}
		byStage[c.StageID] = append(byStage[c.StageID], c)
	}
	out := make([]models.Path, 0, len(candidates))
	for _, st := range order {
		out = append(out, dropShadowedPaths(byStage[st])...)
	}
	return out, nil
}

func visibleTo(tp models.TouchPoint, groupID uuid.UUID) bool {
	if tp.GroupID != nil && *tp.GroupID != groupID {
		return false
	}
	return !slices.Contains(tp.DisabledFor, groupID) && !slices.Contains(tp.ReplacedFor, groupID)
}

func (s *Service) touchPoints(ctx context.Context, p *models.Participant, paths []models.Path, maxPeriod int) ([]models.TouchPoint, error) {
	ids := make([]uuid.UUID, len(paths))
	for i, path := range paths {
		ids[i] = path.ID
	}
	all, err := s.store.TouchPoints.ListForPaths(ctx, ids, maxPeriod)
	if err != nil {
		return nil, fmt.Errorf("list touch points: %w", err)
	}
	out := make([]models.TouchPoint, 0, len(all))
	for _, tp := range all {
		if visibleTo(tp, p.GroupID) {
			out = append(out, tp)
		}
	}
	return out, nil
}

// TaskResource is a scheduled resource together with the touch point that
// scheduled it and whether the participant has read it.
type TaskResource struct {
	models.Resource
	TouchPointID uuid.UUID               `json:"touchPoint"`
	Period       int                     `json:"period"`
	IsRead       bool                    `json:"isRead"`
	Action       models.TouchPointAction `json:"action,omitempty"`
}

type TaskQuestionnaire struct {
	TouchPointID    uuid.UUID `json:"touchPoint"`
	QuestionnaireID uuid.UUID `json:"questionnaire"`
	Period          int       `json:"period"`
	IsDone          bool      `json:"isDone"`
}

type Tasks struct {
	Stage          *models.Stage       `json:"stage,omitempty"`
	Period         int                 `json:"period"`
	Questionnaires []TaskQuestionnaire `json:"questionnaires"`
	ToDoList       []TaskResource      `json:"toDoList"`
}

// resourcesFor resolves the RESOURCE touch points to ACTIVE resources
// ordered by the group's positions. A resource scheduled twice is listed
// once, under its earliest touch point.
func (s *Service) resourcesFor(ctx context.Context, p *models.Participant, tps []models.TouchPoint, search string) ([]TaskResource, error) {
	byResource := make(map[uuid.UUID]models.TouchPoint)
	ids := make([]uuid.UUID, 0, len(tps))
	tpIDs := make([]uuid.UUID, 0, len(tps))
	for _, tp := range tps {
		if tp.Kind != models.TouchPointResource {
			continue
		}
		if _, dup := byResource[tp.TargetID]; dup {
			continue
		}
		byResource[tp.TargetID] = tp
		ids = append(ids, tp.TargetID)
		tpIDs = append(tpIDs, tp.ID)
	}
	if len(ids) == 0 {
		return []TaskResource{}, nil
	}

	found, err := s.store.Resources.ListByIDs(ctx, ids, search)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	byID := make(map[uuid.UUID]models.Resource, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	inOrder := make([]models.Resource, 0, len(found))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			inOrder = append(inOrder, r)
		}
	}
	sorted, err := s.GetReorderedResources(ctx, p.GroupID, inOrder)
	if err != nil {
		return nil, err
	}

	reads, err := s.store.TouchPointReads.ListRead(ctx, p.ID, tpIDs)
	if err != nil {
		return nil, fmt.Errorf("list reads: %w", err)
	}
	out := make([]TaskResource, 0, len(sorted))
	for _, r := range sorted {
		tp := byResource[r.ID]
		action, read := reads[tp.ID]
		out = append(out, TaskResource{
			Resource:     r,
			TouchPointID: tp.ID,
			Period:       tp.Period,
			IsRead:       read,
			Action:       action,
		})
	}
	return out, nil
}

// taskParticipant loads an ACTIVE participant with its primary's care
// fields merged in.
func (s *Service) taskParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	p, err := s.activeParticipant(ctx, id, apperr.Forbidden(msgNoParticipantFound))
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, p)
	if err != nil {
		return nil, err
	}
	return &v.Participant, nil
}

// GetMyTasks returns what is due for the participant up to the current
// period: resources to read and questionnaires to fill in.
func (s *Service) GetMyTasks(ctx context.Context, participantID uuid.UUID) (*Tasks, error) {
	p, err := s.taskParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	st, err := s.stage(ctx, p.StageID)
	if err != nil {
		return nil, err
	}
	out := &Tasks{
		Stage:          st,
		Period:         s.period(p),
		Questionnaires: []TaskQuestionnaire{},
		ToDoList:       []TaskResource{},
	}
	if p.StageID == nil {
		return out, nil
	}

	paths, err := s.applicablePaths(ctx, p, p.StageID)
	if err != nil {
		return nil, err
	}
	tps, err := s.touchPoints(ctx, p, paths, out.Period)
	if err != nil {
		return nil, err
	}

	out.ToDoList, err = s.resourcesFor(ctx, p, tps, "")
	if err != nil {
		return nil, err
	}

	questionnaireTPs := make([]uuid.UUID, 0)
	for _, tp := range tps {
		if tp.Kind == models.TouchPointQuestionnaire {
			questionnaireTPs = append(questionnaireTPs, tp.ID)
		}
	}
	reads, err := s.store.TouchPointReads.ListRead(ctx, p.ID, questionnaireTPs)
	if err != nil {
		return nil, fmt.Errorf("list reads: %w", err)
	}
	for _, tp := range tps {
		if tp.Kind != models.TouchPointQuestionnaire {
			continue
		}
		out.Questionnaires = append(out.Questionnaires, TaskQuestionnaire{
			TouchPointID:    tp.ID,
			QuestionnaireID: tp.TargetID,
			Period:          tp.Period,
			IsDone:          reads[tp.ID] == models.ActionDone,
		})
	}
	return out, nil
}

// GetResourceLibrary lists every resource scheduled for the stage,
// regardless of period. A nil stageID means the participant's own stage.
func (s *Service) GetResourceLibrary(ctx context.Context, participantID uuid.UUID, stageID *uuid.UUID) ([]TaskResource, error) {
	p, err := s.taskParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if stageID == nil {
		stageID = p.StageID
	}
	if stageID == nil {
		return []TaskResource{}, nil
	}
	paths, err := s.applicablePaths(ctx, p, stageID)
	if err != nil {
		return nil, err
	}
	tps, err := s.touchPoints(ctx, p, paths, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return s.resourcesFor(ctx, p, tps, "")
}

// SearchResourceLibrary searches the headlines of the resources scheduled
// for the participant's type across all stages.
func (s *Service) SearchResourceLibrary(ctx context.Context, participantID uuid.UUID, query string) ([]TaskResource, error) {
	p, err := s.taskParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	paths, err := s.applicablePaths(ctx, p, nil)
	if err != nil {
		return nil, err
	}
	tps, err := s.touchPoints(ctx, p, paths, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return s.resourcesFor(ctx, p, tps, query)
}

// MarkTouchPointRead records that the participant read or completed a
// touch point. Marking again overwrites the action.
func (s *Service) MarkTouchPointRead(ctx context.Context, participantID, touchPointID uuid.UUID, action models.TouchPointAction) error {
	if !action.Valid() {
		return apperr.BadRequest(msgInvalidAction)
	}
	p, err := s.activeParticipant(ctx, participantID, apperr.Forbidden(msgNoParticipantFound))
	if err != nil {
		return err
	}
	tp, err := s.store.TouchPoints.GetByID(ctx, touchPointID)
	if err != nil {
		return fmt.Errorf("get touch point: %w", err)
	}
	if tp == nil || tp.Status != models.ContentActive || !visibleTo(*tp, p.GroupID) {
		return apperr.Forbidden(msgTouchPointNotFound)
	}
	if err := s.store.TouchPointReads.Mark(ctx, models.TouchPointRead{
		TouchPointID:  tp.ID,
		ParticipantID: p.ID,
		Action:        action,
	}); err != nil {
		return fmt.Errorf("mark touch point: %w", err)
	}
	return nil
}
