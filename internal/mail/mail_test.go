package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderInvite(t *testing.T) {
	subject, body, err := Render(ParticipantInvite, Data{Code: "123456", Group: "Lakeside <Ortho>"})
	require.NoError(t, err)

	assert.Equal(t, "You're invited to join Lakeside <Ortho>", subject)
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "Lakeside &lt;Ortho&gt;")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("welcome", Data{})
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(zap.NewNop())
	assert.NoError(t, m.Send(context.Background(), "a@b.c", ResetPassword, Data{Code: "1234"}))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Send(context.Background(), "a@b.c", ParticipantInvite, Data{Code: "1"}))
	require.NoError(t, r.Send(context.Background(), "a@b.c", ParticipantInvite, Data{Code: "2"}))

	last, ok := r.Last("a@b.c")
	require.True(t, ok)
	assert.Equal(t, "2", last.Data.Code)
	assert.Len(t, r.Sent(), 2)

	_, ok = r.Last("nobody@b.c")
	assert.False(t, ok)
}
