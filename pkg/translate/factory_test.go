package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngineType(t *testing.T) {
	tests := []struct {
		in      string
		want    EngineType
		wantErr bool
	}{
		{in: "huggingface", want: EngineHuggingFace},
		{in: "HF", want: EngineHuggingFace},
		{in: "python", want: EnginePython},
		{in: "transformers", want: EnginePython},
		{in: "Echo", want: EngineEcho},
		{in: "argos", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEngineType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(BackendConfig{Engine: EngineEcho, Logger: quietLogger()})
	require.NoError(t, err)
	assert.IsType(t, &EchoBackend{}, b)

	b, err = NewBackend(BackendConfig{Engine: EngineHuggingFace, Logger: quietLogger()})
	require.NoError(t, err)
	assert.IsType(t, &HuggingFaceClient{}, b)

	b, err = NewBackend(BackendConfig{Engine: EnginePython, Logger: quietLogger()})
	require.NoError(t, err)
	assert.IsType(t, &PythonBackend{}, b)

	_, err = NewBackend(BackendConfig{Engine: "argos", Logger: quietLogger()})
	assert.Error(t, err)
}

func TestEchoBackend(t *testing.T) {
	b := NewEchoBackend("Helsinki-NLP/opus-mt-en-fr")

	_, err := b.Load(context.Background(), "Helsinki-NLP/opus-mt-mul-fr", "cpu")
	assert.Error(t, err)

	p, err := b.Load(context.Background(), "Helsinki-NLP/opus-mt-en-fr", "cpu")
	require.NoError(t, err)
	out, err := p.Translate(context.Background(), "cat", 1024)
	require.NoError(t, err)
	assert.Equal(t, "[fr] cat", out)

	open := NewEchoBackend()
	_, err = open.Load(context.Background(), "anything-xx", "cpu")
	assert.NoError(t, err)
}
