package store

import (
	"testing"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/penwyp/go-ici-sync/internal/testing/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) (*LocalLog, Backend) {
	t.Helper()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return NewLocalLog(backend, model.PrivateNamespace("u-test")), backend
}

func TestLocalLog_EmptyByDefault(t *testing.T) {
	log, _ := newTestLog(t)

	msgs := log.ReadAll()
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	assert.NoError(t, log.LastError())
}

func TestLocalLog_AppendReplaceClear(t *testing.T) {
	log, _ := newTestLog(t)

	require.NoError(t, log.Append(model.Message{Author: "u-test", Question: "one", Timestamp: 1}))
	require.NoError(t, log.Append(model.Message{Author: "u-test", Question: "two", Timestamp: 2}))

	msgs := log.ReadAll()
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Question)
	assert.Equal(t, "two", msgs[1].Question)

	require.NoError(t, log.ReplaceAll([]model.Message{{Question: "only", Timestamp: 3}}))
	assert.Equal(t, []model.Message{{Question: "only", Timestamp: 3}}, log.ReadAll())

	require.NoError(t, log.Clear())
	assert.Empty(t, log.ReadAll())
}

func TestLocalLog_AttachAnswerToLastEntry(t *testing.T) {
	log, _ := newTestLog(t)

	assert.ErrorIs(t, log.AttachAnswer("early"), ErrEmptyLog)

	require.NoError(t, log.Append(model.Message{Question: "first", Timestamp: 1}))
	require.NoError(t, log.Append(model.Message{Question: "second", Timestamp: 2}))
	require.NoError(t, log.AttachAnswer("42"))

	msgs := log.ReadAll()
	assert.Empty(t, msgs[0].Answer)
	assert.Equal(t, "42", msgs[1].Answer)
}

func TestLocalLog_CorruptValue(t *testing.T) {
	log, backend := newTestLog(t)
	corrupt := []byte(`{"not":"an array"`)
	require.NoError(t, backend.Put(log.Namespace(), corrupt))

	msgs := log.ReadAll()
	assert.Empty(t, msgs)
	assert.Error(t, log.LastError())

	raw, err := backend.Get(log.Namespace())
	require.NoError(t, err)
	assert.Equal(t, corrupt, raw, "corrupt bytes stay in place until the next write")

	require.NoError(t, log.Append(model.Message{Question: "fresh", Timestamp: 9}))
	assert.Equal(t, []model.Message{{Question: "fresh", Timestamp: 9}}, log.ReadAll())
	assert.NoError(t, log.LastError())

	quarantined, err := backend.Get(log.QuarantineKey())
	require.NoError(t, err)
	assert.Equal(t, corrupt, quarantined)
}

func TestLocalLog_CorruptShapes(t *testing.T) {
	for name, raw := range fixtures.CorruptLogs {
		t.Run(name, func(t *testing.T) {
			log, backend := newTestLog(t)
			require.NoError(t, backend.Put(log.Namespace(), raw))

			assert.Empty(t, log.ReadAll())
			assert.Error(t, log.LastError())
		})
	}
}

func TestLocalLog_ReadsStoredConversation(t *testing.T) {
	log, backend := newTestLog(t)
	want := fixtures.NewConversationGenerator(time.Unix(1700000000, 0), time.Second, "u-a", "").Generate(5)
	require.NoError(t, backend.Put(log.Namespace(), fixtures.Encode(want)))

	assert.Equal(t, want, log.ReadAll())
	assert.NoError(t, log.LastError())
}

func TestLocalLog_NullValue(t *testing.T) {
	log, backend := newTestLog(t)
	require.NoError(t, backend.Put(log.Namespace(), []byte("null")))

	assert.Empty(t, log.ReadAll())
	assert.NoError(t, log.LastError())
}

func TestLocalLog_WireNames(t *testing.T) {
	log, backend := newTestLog(t)
	require.NoError(t, log.Append(model.Message{Author: "u-x", Question: "q1", Answer: "a1", Timestamp: 5}))

	raw, err := backend.Get(log.Namespace())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"user":"u-x","q":"q1","a":"a1","ts":5}]`, string(raw))
}
