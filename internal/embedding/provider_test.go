package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockModel struct {
	mock.Mock
}

func (m *MockModel) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func TestProvider_Embed(t *testing.T) {
	ctx := context.Background()

	t.Run("Normalizes Output", func(t *testing.T) {
		m := new(MockModel)
		m.On("Embed", ctx, sampleText).Return([]float32{1, 0}, nil).Once()
		m.On("Embed", ctx, "hello").Return([]float32{3, 4}, nil).Once()

		p := Static("mock", m)
		vec, err := p.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.InDelta(t, 0.6, vec[0], 1e-6)
		assert.InDelta(t, 0.8, vec[1], 1e-6)
		assert.Equal(t, 2, p.Dimension())
		m.AssertExpectations(t)
	})

	t.Run("Dimension Mismatch", func(t *testing.T) {
		m := new(MockModel)
		m.On("Embed", ctx, sampleText).Return([]float32{1, 0, 0}, nil).Once()
		m.On("Embed", ctx, "short").Return([]float32{1, 0}, nil).Once()

		_, err := Static("mock", m).Embed(ctx, "short")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expected 3")
	})

	t.Run("Model Error Is Not A Load Error", func(t *testing.T) {
		m := new(MockModel)
		m.On("Embed", ctx, sampleText).Return([]float32{1}, nil).Once()
		m.On("Embed", ctx, "boom").Return(nil, errors.New("rate limited")).Once()

		_, err := Static("mock", m).Embed(ctx, "boom")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrModelLoad)
	})
}

func TestProvider_Init(t *testing.T) {
	ctx := context.Background()

	t.Run("Loader Failure", func(t *testing.T) {
		p := NewProvider("missing", func(context.Context) (Model, error) {
			return nil, errors.New("weights not found")
		})
		err := p.Init(ctx)
		assert.ErrorIs(t, err, ErrModelLoad)
		assert.Contains(t, err.Error(), "weights not found")

		_, err = p.Embed(ctx, "anything")
		assert.ErrorIs(t, err, ErrModelLoad)
	})

	t.Run("Sample Embedding Failure", func(t *testing.T) {
		m := new(MockModel)
		m.On("Embed", ctx, sampleText).Return(nil, errors.New("unauthorized")).Once()

		err := Static("mock", m).Init(ctx)
		assert.ErrorIs(t, err, ErrModelLoad)
	})

	t.Run("Empty Sample Embedding", func(t *testing.T) {
		m := new(MockModel)
		m.On("Embed", ctx, sampleText).Return([]float32{}, nil).Once()

		err := Static("mock", m).Init(ctx)
		assert.ErrorIs(t, err, ErrModelLoad)
	})

	t.Run("Loads Once Under Concurrency", func(t *testing.T) {
		var loads atomic.Int32
		p := NewProvider("hash", func(context.Context) (Model, error) {
			loads.Add(1)
			return NewHashModel(16), nil
		})

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := p.Embed(ctx, "concurrent")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), loads.Load())
		assert.Equal(t, 16, p.Dimension())
	})
}

func TestNormalize(t *testing.T) {
	vec, err := Normalize([]float32{2, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)

	_, err = Normalize([]float32{0, 0})
	assert.ErrorIs(t, err, ErrZeroVector)

	_, err = Normalize(nil)
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestHashModel(t *testing.T) {
	ctx := context.Background()
	p := Static("hash", NewHashModel(64))

	texts := []string{
		"Screen flickering on my ThinkPad T14s",
		"",
		"température 95°C",
		"   \n\t ",
	}
	for _, text := range texts {
		a, err := p.Embed(ctx, text)
		require.NoError(t, err)
		b, err := p.Embed(ctx, text)
		require.NoError(t, err)

		assert.Len(t, a, 64)
		assert.InDelta(t, 1.0, Norm(a), 1e-5, "text %q", text)
		assert.Equal(t, a, b, "embedding must be deterministic")
	}

	t.Run("Similar Texts Score Higher", func(t *testing.T) {
		wide := Static("hash", NewHashModel(0))
		q, err := wide.Embed(ctx, "battery drain")
		require.NoError(t, err)
		near, err := wide.Embed(ctx, "battery drains quickly, battery health low")
		require.NoError(t, err)
		far, err := wide.Embed(ctx, "wifi disconnects")
		require.NoError(t, err)
		assert.Greater(t, Dot(q, near), Dot(q, far))
	})

	t.Run("Colliding Tokens Still Embed", func(t *testing.T) {
		wide := Static("hash", NewHashModel(0))
		for _, text := range []string{"wifi disconnects", "aal bfb"} {
			v, err := wide.Embed(ctx, text)
			require.NoError(t, err, "text %q", text)
			assert.InDelta(t, 1.0, Norm(v), 1e-5, "text %q", text)
		}
	})
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"dell", "xps", "15", "9530"}, Tokenize("Dell XPS-15 (9530)"))
	assert.Empty(t, Tokenize("--- ..."))
}
