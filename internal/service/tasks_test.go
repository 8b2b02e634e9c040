package service

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeksSince(t *testing.T) {
	surgery := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"day of surgery", surgery, 0},
		{"six days after", surgery.Add(6 * day), 0},
		{"one week after", surgery.Add(7 * day), 1},
		{"thirteen days after", surgery.Add(13 * day), 1},
		{"one day before", surgery.Add(-day), -1},
		{"one week before", surgery.Add(-7 * day), -1},
		{"eight days before", surgery.Add(-8 * day), -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeeksSince(surgery, tt.now))
		})
	}
}

func (f *fixture) path(groupID, locationID *uuid.UUID, typ models.ParticipantType, stageID uuid.UUID) *models.Path {
	f.t.Helper()
	p, err := f.store.Paths.Create(f.ctx, &models.Path{
		GroupID:    groupID,
		LocationID: locationID,
		UserType:   typ,
		StageID:    stageID,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) touchPoint(path *models.Path, kind models.TouchPointKind, period int, target uuid.UUID) *models.TouchPoint {
	f.t.Helper()
	tp, err := f.store.TouchPoints.Create(f.ctx, &models.TouchPoint{
		PathID:   path.ID,
		Kind:     kind,
		Period:   period,
		TargetID: target,
	})
	require.NoError(f.t, err)
	return tp
}

func taskHeadlines(rs []TaskResource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Headline
	}
	return out
}

func TestGetMyTasksFiltersByPeriod(t *testing.T) {
	f := newFixture(t)
	p := f.signup("pat@example.com")
	cat := f.category("exercise")
	admin := adminActor()

	path := f.path(nil, nil, models.ParticipantPrimary, f.stage.ID)
	warmup := f.resource(admin, cat, "warmup")
	stretch := f.resource(admin, cat, "stretch")
	later := f.resource(admin, cat, "later")
	tpWarmup := f.touchPoint(path, models.TouchPointResource, 0, warmup.ID)
	f.touchPoint(path, models.TouchPointResource, 1, stretch.ID)
	f.touchPoint(path, models.TouchPointResource, 1, warmup.ID)
	f.touchPoint(path, models.TouchPointResource, 3, later.ID)
	questionnaire := uuid.New()
	tpQ := f.touchPoint(path, models.TouchPointQuestionnaire, 0, questionnaire)

	tasks, err := f.svc.GetMyTasks(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tasks.Period)
	require.NotNil(t, tasks.Stage)
	assert.Equal(t, "Pre-op", tasks.Stage.Name)

	assert.Equal(t, []string{"warmup", "stretch"}, taskHeadlines(tasks.ToDoList))
	assert.Equal(t, tpWarmup.ID, tasks.ToDoList[0].TouchPointID)
	assert.Equal(t, 0, tasks.ToDoList[0].Period)
	assert.False(t, tasks.ToDoList[0].IsRead)

	require.Len(t, tasks.Questionnaires, 1)
	assert.Equal(t, questionnaire, tasks.Questionnaires[0].QuestionnaireID)
	assert.False(t, tasks.Questionnaires[0].IsDone)

	require.NoError(t, f.svc.MarkTouchPointRead(f.ctx, p.ID, tpWarmup.ID, models.ActionRead))
	require.NoError(t, f.svc.MarkTouchPointRead(f.ctx, p.ID, tpQ.ID, models.ActionDone))

	tasks, err = f.svc.GetMyTasks(f.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, tasks.ToDoList[0].IsRead)
	assert.Equal(t, models.ActionRead, tasks.ToDoList[0].Action)
	assert.False(t, tasks.ToDoList[1].IsRead)
	assert.True(t, tasks.Questionnaires[0].IsDone)
}

func TestGetMyTasksUsesGroupOrder(t *testing.T) {
	f := newFixture(t)
	p := f.signup("pat@example.com")
	cat := f.category("exercise")
	admin := adminActor()

	path := f.path(nil, nil, models.ParticipantPrimary, f.stage.ID)
	first := f.resource(admin, cat, "first")
	second := f.resource(admin, cat, "second")
	f.touchPoint(path, models.TouchPointResource, 0, first.ID)
	f.touchPoint(path, models.TouchPointResource, 0, second.ID)

	require.NoError(t, f.svc.SetOrder(f.ctx, f.group.ID, []uuid.UUID{second.ID, first.ID}))

	tasks, err := f.svc.GetMyTasks(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, taskHeadlines(tasks.ToDoList))
}

func TestGetMyTasksSkipsDisabledTouchPoints(t *testing.T) {
	f := newFixture(t)
	p := f.signup("pat@example.com")
	cat := f.category("exercise")
	admin := adminActor()

	path := f.path(nil, nil, models.ParticipantPrimary, f.stage.ID)
	kept := f.resource(admin, cat, "kept")
	hidden := f.resource(admin, cat, "hidden")
	f.touchPoint(path, models.TouchPointResource, 0, kept.ID)
	disabled, err := f.store.TouchPoints.Create(f.ctx, &models.TouchPoint{
		PathID:      path.ID,
		Kind:        models.TouchPointResource,
		TargetID:    hidden.ID,
		DisabledFor: []uuid.UUID{f.group.ID},
	})
	require.NoError(t, err)

	tasks, err := f.svc.GetMyTasks(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, taskHeadlines(tasks.ToDoList))

	err = f.svc.MarkTouchPointRead(f.ctx, p.ID, disabled.ID, models.ActionRead)
	assertAppErr(t, err, http.StatusForbidden, msgTouchPointNotFound)
}

func TestGetMyTasksLocationPathShadowsGroupPath(t *testing.T) {
	f := newFixture(t)
	p := f.signup("pat@example.com")
	cat := f.category("exercise")
	admin := adminActor()
	loc := uuid.New()
	group := idPtr(f.group.ID)

	groupWide := f.path(group, nil, models.ParticipantPrimary, f.stage.ID)
	atLocation := f.path(group, &loc, models.ParticipantPrimary, f.stage.ID)
	global := f.path(nil, nil, models.ParticipantPrimary, f.stage.ID)
	f.touchPoint(groupWide, models.TouchPointResource, 0, f.resource(admin, cat, "group-wide").ID)
	f.touchPoint(atLocation, models.TouchPointResource, 0, f.resource(admin, cat, "at-location").ID)
	f.touchPoint(global, models.TouchPointResource, 0, f.resource(admin, cat, "global").ID)

	tasks, err := f.svc.GetMyTasks(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"group-wide", "global"}, taskHeadlines(tasks.ToDoList))

	_, err = f.svc.UpdateParticipant(f.ctx, f.group.ID, p.ID, AdminUpdate{LocationID: &loc})
	require.NoError(t, err)

	tasks, err = f.svc.GetMyTasks(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"at-location", "global"}, taskHeadlines(tasks.ToDoList))
}

func TestGetMyTasksWithoutStage(t *testing.T) {
	f := newFixture(t)
	p := f.signup("pat@example.com")
	noStage := f.reload(p.ID)
	noStage.StageID = nil
	require.NoError(t, f.store.Participants.Update(f.ctx, noStage))

	tasks, err := f.svc.GetMyTasks(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, tasks.Stage)
	assert.Empty(t, tasks.ToDoList)
	assert.Empty(t, tasks.Questionnaires)

	_, err = f.svc.GetMyTasks(f.ctx, uuid.New())
	assertAppErr(t, err, http.StatusForbidden, msgNoParticipantFound)
}

func TestGetMyTasksForSecondaryFollowsPrimary(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	sp := f.support(primary, "sam@example.com", true)
	cat := f.category("caregiving")

	drifted := f.reload(sp.ID)
	drifted.StageID = nil
	require.NoError(t, f.store.Participants.Update(f.ctx, drifted))

	path := f.path(nil, nil, models.ParticipantSecondary, f.stage.ID)
	f.touchPoint(path, models.TouchPointResource, 0, f.resource(adminActor(), cat, "helping at home").ID)

	tasks, err := f.svc.GetMyTasks(f.ctx, sp.ID)
	require.NoError(t, err)
	require.NotNil(t, tasks.Stage)
	assert.Equal(t, f.stage.ID, tasks.Stage.ID)
	assert.Equal(t, []string{"helping at home"}, taskHeadlines(tasks.ToDoList))

	// The primary's own path is for PRIMARY participants only.
	tasks, err = f.svc.GetMyTasks(f.ctx, primary.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks.ToDoList)
}

func TestResourceLibraryIgnoresPeriod(t *testing.T) {
	f := newFixture(t)
	p := f.signup("pat@example.com")
	cat := f.category("exercise")
	admin := adminActor()

	postOp, err := f.store.Stages.Create(f.ctx, &models.Stage{Name: "Post-op"})
	require.NoError(t, err)

	preOp := f.path(nil, nil, models.ParticipantPrimary, f.stage.ID)
	f.touchPoint(preOp, models.TouchPointResource, 0, f.resource(admin, cat, "prehab basics").ID)
	f.touchPoint(preOp, models.TouchPointResource, 12, f.resource(admin, cat, "prehab advanced").ID)
	after := f.path(nil, nil, models.ParticipantPrimary, postOp.ID)
	f.touchPoint(after, models.TouchPointResource, 20, f.resource(admin, cat, "walking again").ID)

	lib, err := f.svc.GetResourceLibrary(f.ctx, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"prehab basics", "prehab advanced"}, taskHeadlines(lib))

	lib, err = f.svc.GetResourceLibrary(f.ctx, p.ID, &postOp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"walking again"}, taskHeadlines(lib))

	found, err := f.svc.SearchResourceLibrary(f.ctx, p.ID, "WALK")
	require.NoError(t, err)
	assert.Equal(t, []string{"walking again"}, taskHeadlines(found))

	found, err = f.svc.SearchResourceLibrary(f.ctx, p.ID, "prehab")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestMarkTouchPointReadValidation(t *testing.T) {
	f := newFixture(t)
	p := f.signup("pat@example.com")

	err := f.svc.MarkTouchPointRead(f.ctx, p.ID, uuid.New(), "skipped")
	assertAppErr(t, err, http.StatusBadRequest, msgInvalidAction)

	err = f.svc.MarkTouchPointRead(f.ctx, p.ID, uuid.New(), models.ActionRead)
	assertAppErr(t, err, http.StatusForbidden, msgTouchPointNotFound)
}
