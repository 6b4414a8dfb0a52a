package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "traffic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestSessionLifecycle(t *testing.T) {
	database := openTestDB(t)

	require.NoError(t, database.CreateSession("sess-1", "tcp", "127.0.0.1:50000"))
	require.NoError(t, database.UpdateSessionProject("sess-1", "acme"))

	sessions, err := database.GetAllSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "tcp", sessions[0].Transport)
	assert.Equal(t, "127.0.0.1:50000", sessions[0].RemoteAddr)
	assert.Equal(t, "acme", sessions[0].ProjectName)
	assert.Nil(t, sessions[0].ClosedAt)

	require.NoError(t, database.CloseSession("sess-1"))
	sessions, err = database.GetAllSessions()
	require.NoError(t, err)
	require.NotNil(t, sessions[0].ClosedAt)
}

func TestLogMessageExtractsFields(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, database.CreateSession("sess-1", "unix", ""))

	require.NoError(t, database.LogMessage("sess-1", DirectionClientToServer,
		[]byte(`{"id":"a1","method":"ping","params":{"projectName":"p"}}`)))
	require.NoError(t, database.LogMessage("sess-1", DirectionServerToClient,
		[]byte(`{"id":"a1","result":"pong","error":null}`)))
	require.NoError(t, database.LogMessage("sess-1", DirectionServerToClient,
		[]byte(`{"id":7,"result":null,"error":{"code":-32602,"message":"bad"}}`)))
	require.NoError(t, database.LogMessage("sess-1", DirectionClientToServer, []byte("not json")))

	messages, err := database.GetSessionMessages("sess-1")
	require.NoError(t, err)
	require.Len(t, messages, 4)

	assert.Equal(t, DirectionClientToServer, messages[0].Direction)
	assert.Equal(t, "request", messages[0].MessageType)
	assert.Equal(t, "ping", messages[0].Method)
	assert.Equal(t, `"a1"`, messages[0].JSONRPCID)
	assert.Nil(t, messages[0].ErrorCode)

	assert.Equal(t, "response", messages[1].MessageType)
	assert.Nil(t, messages[1].ErrorCode)

	assert.Equal(t, "response", messages[2].MessageType)
	assert.Equal(t, "7", messages[2].JSONRPCID)
	require.NotNil(t, messages[2].ErrorCode)
	assert.Equal(t, -32602, *messages[2].ErrorCode)

	assert.Empty(t, messages[3].MessageType)
	assert.Equal(t, "not json", messages[3].RawMessage)
}

func TestGetSessionMessagesIsolatesSessions(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, database.CreateSession("a", "tcp", ""))
	require.NoError(t, database.CreateSession("b", "tcp", ""))
	require.NoError(t, database.LogMessage("a", DirectionClientToServer, []byte(`{}`)))

	messages, err := database.GetSessionMessages("b")
	require.NoError(t, err)
	assert.Empty(t, messages)
}
