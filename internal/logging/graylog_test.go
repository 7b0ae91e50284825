package logging

import (
	"bytes"
	"compress/gzip"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraylogWriter_SendsRecords(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	gw, err := NewGraylogWriter(conn.LocalAddr().String())
	require.NoError(t, err)
	defer gw.Close()

	var file bytes.Buffer
	logger := NewZerolog(zerolog.MultiLevelWriter(&file, gw), "info", "influx", nil)
	logger.Info().Msg("backup opened")
	assert.Contains(t, file.String(), "backup opened")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 8192)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(buf[:n]))
	require.NoError(t, err)
	msg, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(msg), "backup opened")
}

func TestNewGraylogWriter_BadAddress(t *testing.T) {
	_, err := NewGraylogWriter("no-port")
	assert.Error(t, err)
}
