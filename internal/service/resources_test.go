package service

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) category(name string) *models.ResourceCategory {
	f.t.Helper()
	c, err := f.store.Categories.Create(f.ctx, &models.ResourceCategory{
		Name:    name,
		Picture: "https://img.example/" + name + ".png",
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) groupAdmin() Actor {
	return Actor{SubjectID: uuid.New(), GroupID: f.group.ID, Role: auth.RoleGroupAdmin}
}

func adminActor() Actor {
	return Actor{SubjectID: uuid.New(), Role: auth.RoleAdmin}
}

func (f *fixture) resource(actor Actor, cat *models.ResourceCategory, headline string) *models.Resource {
	f.t.Helper()
	r, err := f.svc.CreateResource(f.ctx, actor, ResourceInput{
		CategoryID: cat.ID,
		Headline:   headline,
		Media:      "https://docs.example/" + headline,
		Type:       models.ResourceArticle,
	})
	require.NoError(f.t, err)
	return r
}

func headlines(rs []models.Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Headline
	}
	return out
}

func TestSortResourcesIsStable(t *testing.T) {
	a := models.Resource{ID: uuid.New(), Headline: "a"}
	b := models.Resource{ID: uuid.New(), Headline: "b"}
	c := models.Resource{ID: uuid.New(), Headline: "c"}

	got := SortResources([]models.Resource{a, b, c}, map[uuid.UUID]int{c.ID: 0})
	assert.Equal(t, []string{"c", "a", "b"}, headlines(got))

	got = SortResources([]models.Resource{a, b, c}, nil)
	assert.Equal(t, []string{"a", "b", "c"}, headlines(got))
}

func TestSetOrderRoundTrip(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	global := f.resource(adminActor(), cat, "global")
	own1 := f.resource(f.groupAdmin(), cat, "own1")
	own2 := f.resource(f.groupAdmin(), cat, "own2")

	require.NoError(t, f.svc.SetOrder(f.ctx, f.group.ID, []uuid.UUID{own2.ID, global.ID, own2.ID, own1.ID}))

	got, err := f.svc.GetReorderedResources(f.ctx, f.group.ID, []models.Resource{*own1, *global, *own2})
	require.NoError(t, err)
	assert.Equal(t, []string{"own2", "global", "own1"}, headlines(got))

	pos, err := f.store.Positions.Positions(f.ctx, f.group.ID, []uuid.UUID{own2.ID, global.ID, own1.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{own2.ID: 0, global.ID: 1, own1.ID: 2}, pos)
}

func TestSetOrderRejectsForeignResource(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	other, err := f.store.Groups.Create(f.ctx, "Elsewhere")
	require.NoError(t, err)
	foreign := f.resource(Actor{GroupID: other.ID, Role: auth.RoleGroupAdmin}, cat, "foreign")

	err = f.svc.SetOrder(f.ctx, f.group.ID, []uuid.UUID{foreign.ID})
	assertAppErr(t, err, http.StatusForbidden, msgResourceNotFound)

	err = f.svc.SetOrder(f.ctx, f.group.ID, []uuid.UUID{uuid.New()})
	assertAppErr(t, err, http.StatusForbidden, msgResourceNotFound)
}

func TestReorderResourcesRequiresGroupAdmin(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ReorderResources(f.ctx, adminActor(), nil)
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgUnauthorized)
}

func TestCreateResourceAppendsPosition(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	diet := f.category("diet")

	first := f.resource(f.groupAdmin(), cat, "first")
	second := f.resource(f.groupAdmin(), cat, "second")
	other := f.resource(f.groupAdmin(), diet, "other")
	global := f.resource(adminActor(), cat, "global")

	pos, err := f.store.Positions.Positions(f.ctx, f.group.ID, []uuid.UUID{first.ID, second.ID, other.ID, global.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, pos[first.ID])
	assert.Equal(t, 1, pos[second.ID])
	assert.Equal(t, 0, pos[other.ID])
	_, ok := pos[global.ID]
	assert.False(t, ok)

	assert.Nil(t, global.GroupID)
	require.NotNil(t, first.GroupID)
	assert.Equal(t, f.group.ID, *first.GroupID)
}

func TestCreateResourceVideoThumbnail(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")

	r, err := f.svc.CreateResource(f.ctx, f.groupAdmin(), ResourceInput{
		CategoryID: cat.ID,
		Headline:   "Knee bends",
		Media:      "https://video.example/watch?v=1",
		Type:       models.ResourceVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/thumb.jpg", r.Thumbnail)
	assert.Equal(t, 1, f.thumbs.calls)

	f.thumbs.err = errors.New("provider down")
	r, err = f.svc.CreateResource(f.ctx, f.groupAdmin(), ResourceInput{
		CategoryID: cat.ID,
		Headline:   "Ankle circles",
		Media:      "https://video.example/watch?v=2",
		Type:       models.ResourceVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, cat.Picture, r.Thumbnail)

	// Non-video resources never hit the lookup.
	before := f.thumbs.calls
	r = f.resource(f.groupAdmin(), cat, "handout")
	assert.Equal(t, cat.Picture, r.Thumbnail)
	assert.Equal(t, before, f.thumbs.calls)
}

func TestCreateResourceValidation(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")

	_, err := f.svc.CreateResource(f.ctx, f.groupAdmin(), ResourceInput{CategoryID: cat.ID, Type: "PODCAST"})
	assertAppErr(t, err, http.StatusBadRequest, msgInvalidResourceType)

	_, err = f.svc.CreateResource(f.ctx, f.groupAdmin(), ResourceInput{
		CategoryID: cat.ID,
		Type:       models.ResourceArticle,
		Content:    []models.ContentBlock{{Type: "VIDEO", Value: "x"}},
	})
	assertAppErr(t, err, http.StatusBadRequest, msgInvalidContentBlock)

	_, err = f.svc.CreateResource(f.ctx, f.groupAdmin(), ResourceInput{CategoryID: uuid.New(), Type: models.ResourceArticle})
	assertAppErr(t, err, http.StatusForbidden, msgCategoryNotFound)
}

func TestListResourcesVisibility(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	other, err := f.store.Groups.Create(f.ctx, "Elsewhere")
	require.NoError(t, err)

	f.resource(adminActor(), cat, "global")
	own := f.resource(f.groupAdmin(), cat, "own")
	f.resource(Actor{GroupID: other.ID, Role: auth.RoleGroupAdmin}, cat, "foreign")
	gone := f.resource(f.groupAdmin(), cat, "gone")
	require.NoError(t, f.svc.RemoveResource(f.ctx, f.groupAdmin(), gone.ID))

	require.NoError(t, f.svc.SetOrder(f.ctx, f.group.ID, []uuid.UUID{own.ID}))

	res, err := f.svc.ListResources(f.ctx, f.groupAdmin(), ResourceQuery{}, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"own", "global"}, headlines(res.Items))

	res, err = f.svc.ListResources(f.ctx, adminActor(), ResourceQuery{}, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, headlines(res.Items))

	res, err = f.svc.ListResources(f.ctx, f.groupAdmin(), ResourceQuery{Search: "GLO"}, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, headlines(res.Items))

	_, err = f.svc.GetResource(f.ctx, adminActor(), own.ID)
	assertAppErr(t, err, http.StatusForbidden, msgResourceNotFound)
}

func TestUpdateResourceOwnership(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	global := f.resource(adminActor(), cat, "global")

	headline := "renamed"
	_, err := f.svc.UpdateResource(f.ctx, f.groupAdmin(), global.ID, ResourceUpdate{Headline: &headline})
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgUnauthorized)

	r, err := f.svc.UpdateResource(f.ctx, adminActor(), global.ID, ResourceUpdate{Headline: &headline})
	require.NoError(t, err)
	assert.Equal(t, "renamed", r.Headline)
}

func TestUpdateResourceRecomputesThumbnail(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	actor := f.groupAdmin()

	r, err := f.svc.CreateResource(f.ctx, actor, ResourceInput{
		CategoryID: cat.ID,
		Headline:   "Knee bends",
		Media:      "https://video.example/watch?v=1",
		Type:       models.ResourceVideo,
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.thumbs.calls)

	headline := "Knee bends, part one"
	_, err = f.svc.UpdateResource(f.ctx, actor, r.ID, ResourceUpdate{Headline: &headline})
	require.NoError(t, err)
	assert.Equal(t, 1, f.thumbs.calls)

	f.thumbs.url = "https://img.example/new.jpg"
	media := "https://video.example/watch?v=9"
	out, err := f.svc.UpdateResource(f.ctx, actor, r.ID, ResourceUpdate{Media: &media})
	require.NoError(t, err)
	assert.Equal(t, 2, f.thumbs.calls)
	assert.Equal(t, "https://img.example/new.jpg", out.Thumbnail)
}

func TestResourceLinkedToTouchPoints(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	actor := f.groupAdmin()
	r := f.resource(actor, cat, "handout")

	path, err := f.store.Paths.Create(f.ctx, &models.Path{UserType: models.ParticipantPrimary, StageID: f.stage.ID})
	require.NoError(t, err)
	_, err = f.store.TouchPoints.Create(f.ctx, &models.TouchPoint{
		PathID:   path.ID,
		Kind:     models.TouchPointResource,
		TargetID: r.ID,
	})
	require.NoError(t, err)

	err = f.svc.RemoveResource(f.ctx, actor, r.ID)
	assertAppErr(t, err, http.StatusForbidden, msgResourceLinked)

	loc := uuid.New()
	_, err = f.svc.UpdateResource(f.ctx, actor, r.ID, ResourceUpdate{LocationID: &loc})
	assertAppErr(t, err, http.StatusForbidden, msgResourceLocationUsed)

	// Other edits are still allowed.
	headline := "handout v2"
	_, err = f.svc.UpdateResource(f.ctx, actor, r.ID, ResourceUpdate{Headline: &headline})
	assert.NoError(t, err)
}

func TestRemoveResource(t *testing.T) {
	f := newFixture(t)
	cat := f.category("exercise")
	actor := f.groupAdmin()
	r := f.resource(actor, cat, "handout")

	require.NoError(t, f.svc.RemoveResource(f.ctx, actor, r.ID))

	_, err := f.svc.GetResource(f.ctx, actor, r.ID)
	assertAppErr(t, err, http.StatusForbidden, msgResourceNotFound)
}
