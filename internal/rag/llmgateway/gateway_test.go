package llmgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ragforge/internal/llm"
	"ragforge/internal/rag/ragerr"
	"ragforge/internal/testhelpers"
)

func TestGenerate_Success(t *testing.T) {
	fp := &testhelpers.FakeProvider{Resp: llm.Message{Role: "assistant", Content: "hello"}}
	gw := New("fake", fp)

	text, _, err := gw.Generate(context.Background(), "sys", "hi", Params{})
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestGenerate_ClassifiesQuotaErrorWithoutRetry(t *testing.T) {
	fp := &testhelpers.FakeProvider{Err: errors.New("429 rate limit exceeded")}
	gw := New("fake", fp)

	_, _, err := gw.Generate(context.Background(), "sys", "hi", Params{})
	require.Equal(t, ragerr.QuotaExceeded, ragerr.KindOf(err))
}

func TestGenerate_ContentFiltered(t *testing.T) {
	fp := &testhelpers.FakeProvider{Err: errors.New("response blocked by content filter")}
	gw := New("fake", fp)

	_, _, err := gw.Generate(context.Background(), "sys", "hi", Params{})
	require.Equal(t, ragerr.ContentFiltered, ragerr.KindOf(err))
}

func TestAvailable(t *testing.T) {
	fp := &testhelpers.FakeProvider{Resp: llm.Message{Content: "pong"}}
	gw := New("fake", fp)
	require.True(t, gw.Available(context.Background()))

	fpErr := &testhelpers.FakeProvider{Err: errors.New("down")}
	gwErr := New("fake", fpErr)
	require.False(t, gwErr.Available(context.Background()))
}

func TestStream_DeliversDeltasInOrder(t *testing.T) {
	fp := &testhelpers.FakeProvider{StreamDeltas: []string{"a", "b", "c"}}
	gw := New("fake", fp)

	ch, err := gw.Stream(context.Background(), "", "hi", Params{})
	require.NoError(t, err)

	var got []string
	for chunk := range ch {
		got = append(got, chunk.Delta)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}
