package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"healthmate/app/client/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	client, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Shutdown() })

	return NewWithDB(client.DB())
}

func TestRecordAndByDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local) }
	require.NoError(t, svc.Record(ctx, Entry{SessionID: "s1", UserMessage: "Hi", BotResponse: "Hello!"}))

	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local) }
	require.NoError(t, svc.Record(ctx, Entry{SessionID: "s1", UserMessage: "My knee hurts", BotResponse: "Sorry to hear that."}))
	require.NoError(t, svc.Record(ctx, Entry{SessionID: "s2", UserMessage: "Other", BotResponse: "Session"}))

	dates, err := svc.Dates(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-18", "2026-10-19"}, dates)

	lines, err := svc.ByDate(ctx, "s1", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Sender: SenderUser, Message: "My knee hurts"},
		{Sender: SenderBot, Message: "Sorry to hear that."},
	}, lines)

	_, err = svc.ByDate(ctx, "s1", "Oct. 19, 2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSearch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, Entry{SessionID: "s1", UserMessage: "Knee pain again", BotResponse: "Rest your knee."}))
	require.NoError(t, svc.Record(ctx, Entry{SessionID: "s1", UserMessage: "Thanks", BotResponse: "Anytime"}))

	matches, err := svc.Search(ctx, SearchQuery{SessionID: "s1", Keyword: "KNEE"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, SenderUser, matches[0].Sender)
	assert.Equal(t, SenderBot, matches[1].Sender)

	matches, err = svc.Search(ctx, SearchQuery{SessionID: "s1", Keyword: "KNEE", CaseSensitive: true})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = svc.Search(ctx, SearchQuery{SessionID: "s1", Keyword: "knee", OnlyBot: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Rest your knee.", matches[0].Message)
}

func TestQueriesRequireSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, Entry{SessionID: "alice", UserMessage: "I take 20mg Lisinopril", BotResponse: "Noted."}))

	_, err := svc.Dates(ctx, "")
	assert.ErrorIs(t, err, ErrMissingSession)

	_, err = svc.ByDate(ctx, "", time.Now().Format(dateLayout))
	assert.ErrorIs(t, err, ErrMissingSession)

	matches, err := svc.Search(ctx, SearchQuery{Keyword: "lisinopril"})
	assert.ErrorIs(t, err, ErrMissingSession)
	assert.Empty(t, matches)

	matches, err = svc.Search(ctx, SearchQuery{SessionID: "bob", Keyword: "lisinopril"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}
