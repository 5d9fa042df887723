package activity_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/database/dbtest"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/activity"
	"github.com/goblin-space/core/internal/modules/deletion"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/reference"
)

const baseURL = "https://goblin.test"

type fixture struct {
	sess       *database.Session
	resolver   *reference.Resolver
	store      *entity.Store
	service    *activity.Service
	serializer *activity.Serializer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	resolver := reference.NewResolver(nil)
	store := entity.NewStore(resolver, entity.WithBaseURL(baseURL))
	deletion.NewEngine(store, deletion.WithLogger(zaptest.NewLogger(t)))

	sess := database.Begin(context.Background(), db)
	t.Cleanup(func() { _ = sess.Close() })
	return &fixture{
		sess:       sess,
		resolver:   resolver,
		store:      store,
		service:    activity.NewService(store, activity.WithLogger(zaptest.NewLogger(t))),
		serializer: activity.NewSerializer(resolver, baseURL+"/"),
	}
}

func (f *fixture) localUser(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Type: models.UserTypeLocal, Name: "Display " + name}
	require.NoError(t, f.store.Save(f.sess, u, false))
	require.NoError(t, f.sess.DB().Create(&models.LocalUser{ID: u.ID, Username: name, Email: name + "@goblin.test"}).Error)
	return u
}

func (f *fixture) image(t *testing.T, owner *models.User) *models.MediaEntry {
	t.Helper()
	m := &models.MediaEntry{
		Actor:     owner.ID,
		Title:     "Sunset",
		MediaType: models.MediaTypeImage,
		State:     models.MediaProcessed,
	}
	require.NoError(t, f.store.Save(f.sess, m, false))
	return m
}

func TestRecordPost(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	m := f.image(t, alice)

	a, err := f.service.Record(f.sess, alice, activity.VerbPost, m, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "alice posted an image", a.Content)
	assert.Contains(t, a.PublicIdentifier(), baseURL+"/api/activity/")
	assert.Nil(t, a.TargetID)
	assert.Nil(t, a.Generator)

	ref, err := f.resolver.FindFor(f.sess.DB(), m)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, ref.ID, a.ObjectID)
}

func TestRecordPersistsUnsavedObjectWithPublicID(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	m := &models.MediaEntry{
		Actor:     alice.ID,
		Title:     "Fresh",
		MediaType: models.MediaTypeImage,
		State:     models.MediaProcessed,
	}

	_, err := f.service.Record(f.sess, alice, activity.VerbPost, m, nil, nil)
	require.NoError(t, err)
	require.NotZero(t, m.ID)
	assert.True(t, strings.HasPrefix(m.PublicIdentifier(), baseURL+"/api/"), m.PublicIdentifier())

	var stored models.MediaEntry
	require.NoError(t, f.sess.DB().First(&stored, m.ID).Error)
	assert.Equal(t, m.PublicIdentifier(), stored.PublicIdentifier())

	obj, err := f.serializer.Serialize(f.sess.DB(), &stored)
	require.NoError(t, err)
	assert.Equal(t, m.PublicIdentifier(), obj.ID)
}

func TestRecordWithTargetAndGenerator(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	m := f.image(t, alice)
	c := &models.Collection{Actor: alice.ID, Title: "Faves", Type: models.CollectionUserDefined}
	require.NoError(t, f.store.Save(f.sess, c, false))
	gen := &models.Generator{Name: "GNU MediaGoblin", ObjectType: "service"}

	a, err := f.service.Record(f.sess, alice, activity.VerbAdd, m, c, gen)
	require.NoError(t, err)

	assert.Equal(t, "alice added an image to a collection", a.Content)
	require.NotNil(t, a.TargetID)
	target, err := f.resolver.ResolveID(f.sess.DB(), *a.TargetID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, target.PrimaryKey())
	require.NotNil(t, a.Generator)
	assert.NotZero(t, gen.ID)
	assert.Equal(t, gen.ID, *a.Generator)
}

func TestRecordTypedNilTarget(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	m := f.image(t, alice)

	var none *models.Collection
	a, err := f.service.Record(f.sess, alice, activity.VerbUpdate, m, none, nil)
	require.NoError(t, err)
	assert.Nil(t, a.TargetID)
	assert.Equal(t, "alice updated an image", a.Content)
}

func TestRecordRejectsUnknownVerb(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	m := f.image(t, alice)

	_, err := f.service.Record(f.sess, alice, "yeet", m, nil, nil)
	assert.ErrorIs(t, err, activity.ErrInvalidVerb)
	assert.False(t, activity.ValidVerb("yeet"))
	assert.True(t, activity.ValidVerb(activity.VerbFollow))
}

func TestDisplayNameFallsBack(t *testing.T) {
	f := setup(t)
	remote := &models.User{Type: models.UserTypeRemote, Name: "Bob"}
	require.NoError(t, f.store.Save(f.sess, remote, false))
	require.NoError(t, f.sess.DB().Create(&models.RemoteUser{ID: remote.ID, Webfinger: "bob@elsewhere.test"}).Error)

	name, err := activity.DisplayName(f.sess.DB(), remote)
	require.NoError(t, err)
	assert.Equal(t, "bob@elsewhere.test", name)

	bare := &models.User{Name: "Carol"}
	require.NoError(t, f.store.Save(f.sess, bare, false))
	name, err = activity.DisplayName(f.sess.DB(), bare)
	require.NoError(t, err)
	assert.Equal(t, "Carol", name)
}

func TestSerializeActivity(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	m := f.image(t, alice)
	a, err := f.service.Record(f.sess, alice, activity.VerbPost, m, nil, &models.Generator{Name: "goblin"})
	require.NoError(t, err)

	out, err := f.serializer.Serialize(f.sess.DB(), a)
	require.NoError(t, err)

	assert.Equal(t, "activity", out.ObjectType)
	assert.Equal(t, "post", out.Verb)
	require.NotNil(t, out.Actor)
	assert.Equal(t, baseURL+"/api/user/alice/profile", out.Actor.ID)
	assert.Equal(t, "alice", out.Actor.PreferredUsername)
	require.NotNil(t, out.Object)
	assert.Equal(t, m.PublicIdentifier(), out.Object.ID)
	assert.Equal(t, "image", out.Object.ObjectType)
	assert.Equal(t, "Sunset", out.Object.DisplayName)
	require.NotNil(t, out.Generator)
	assert.Equal(t, "application", out.Generator.ObjectType)
	assert.Equal(t, "goblin", out.Generator.DisplayName)
}

func TestSerializeDeletedObjectAsTombstone(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	m := f.image(t, alice)
	publicID := m.PublicIdentifier()
	a, err := f.service.Record(f.sess, alice, activity.VerbPost, m, nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.store.Delete(f.sess, m, false, models.DeletionDefault))

	out, err := f.serializer.Serialize(f.sess.DB(), a)
	require.NoError(t, err)
	require.NotNil(t, out.Object)
	assert.Equal(t, "tombstone", out.Object.ObjectType)
	assert.Equal(t, "core__media_entries", out.Object.FormerType)
	assert.Equal(t, publicID, out.Object.ID)
	assert.NotNil(t, out.Object.Deleted)
	require.NotNil(t, out.Object.Actor)
	assert.Equal(t, "alice", out.Object.Actor.PreferredUsername)
}

func TestSerializeCommentRepliesToMedia(t *testing.T) {
	f := setup(t)
	alice := f.localUser(t, "alice")
	bob := f.localUser(t, "bob")
	m := f.image(t, alice)

	c := &models.TextComment{Actor: bob.ID, Content: "lovely"}
	require.NoError(t, f.store.Save(f.sess, c, false))
	mediaRef, err := f.resolver.FindOrCreate(f.sess.DB(), m)
	require.NoError(t, err)
	commentRef, err := f.resolver.FindOrCreate(f.sess.DB(), c)
	require.NoError(t, err)
	require.NoError(t, f.sess.DB().Create(&models.Comment{TargetID: mediaRef.ID, CommentID: commentRef.ID}).Error)

	out, err := f.serializer.Serialize(f.sess.DB(), c)
	require.NoError(t, err)
	assert.Equal(t, "comment", out.ObjectType)
	assert.Equal(t, "lovely", out.Content)
	assert.Equal(t, "bob", out.Actor.PreferredUsername)
	require.NotNil(t, out.InReplyTo)
	assert.Equal(t, m.PublicIdentifier(), out.InReplyTo.ID)
}

func TestSerializeRejectsUnknownTypes(t *testing.T) {
	f := setup(t)
	_, err := f.serializer.Serialize(f.sess.DB(), &models.Tag{Slug: "x"})
	assert.ErrorIs(t, err, activity.ErrNotSerializable)
}
