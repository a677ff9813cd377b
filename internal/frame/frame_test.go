package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type FrameTestSuite struct {
	suite.Suite
}

func TestFrame(t *testing.T) {
	suite.Run(t, new(FrameTestSuite))
}

func (ts *FrameTestSuite) TestSendRecvRoundTrip() {
	buf := &bytes.Buffer{}
	body := []byte("Room get roomId=1")

	require.NoError(ts.T(), Send(buf, body), "Send should not fail for a valid body")

	got, err := Recv(buf)
	require.NoError(ts.T(), err, "Recv should not fail reading back what Send wrote")
	assert.Equal(ts.T(), body, got, "Recv must return exactly the bytes that were sent")
}

func (ts *FrameTestSuite) TestSendRejectsEmptyBody() {
	buf := &bytes.Buffer{}
	err := Send(buf, []byte{})
	assert.ErrorIs(ts.T(), err, ErrEmptyBody, "Send must reject a zero-length body")
}

func (ts *FrameTestSuite) TestSendRejectsOversizeBody() {
	buf := &bytes.Buffer{}
	err := Send(buf, make([]byte, MaxBodySize+1))
	assert.ErrorIs(ts.T(), err, ErrBodyTooLarge, "Send must reject a body over MaxBodySize")
}

func (ts *FrameTestSuite) TestRecvRejectsOversizeLength() {
	buf := &bytes.Buffer{}
	oversized := uint32(MaxBodySize + 1)
	buf.Write([]byte{byte(oversized >> 24), byte(oversized >> 16), byte(oversized >> 8), byte(oversized)})

	_, err := Recv(buf)
	assert.Error(ts.T(), err, "Recv must reject a frame whose declared length exceeds MaxBodySize")
}

func (ts *FrameTestSuite) TestRecvRejectsZeroLength() {
	buf := &bytes.Buffer{}
	buf.Write([]byte{0, 0, 0, 0})

	_, err := Recv(buf)
	assert.Error(ts.T(), err, "Recv must reject a declared zero-length frame")
}

func (ts *FrameTestSuite) TestRecvSurfacesPeerClosed() {
	buf := &bytes.Buffer{}
	_, err := Recv(buf)
	assert.ErrorIs(ts.T(), err, io.EOF, "Recv on an empty reader should surface EOF (peer-closed) through the wrapped error")
}

func (ts *FrameTestSuite) TestMultipleFramesOnOneStream() {
	buf := &bytes.Buffer{}
	messages := []string{"User read username=alice", "OK username=alice pass=pw1 online=1", "Room list"}

	for _, m := range messages {
		require.NoError(ts.T(), Send(buf, []byte(m)))
	}
	for _, want := range messages {
		got, err := Recv(buf)
		require.NoError(ts.T(), err)
		assert.Equal(ts.T(), want, string(got), "frames must be self-synchronizing and decode back in order")
	}
}
