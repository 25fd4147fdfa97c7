package openai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChatClient struct {
	createFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	lastReq    openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.createFunc(ctx, req)
}

func replyWith(content string) *fakeChatClient {
	return &fakeChatClient{createFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
		}, nil
	}}
}

func TestRecognizeReceipt(t *testing.T) {
	client := replyWith(`{"recognized": true, "merchant": " Hotel Adler ", "description": "2 nights",
		"category": "Accommodation", "amount": "312.40", "currency": "chf", "date": "2024-03-05", "confidence": 0.93}`)
	r := NewReceiptRecognizerWithClient(client, Config{MinConfidence: 0.5}, zap.NewNop())

	fields, err := r.RecognizeReceipt(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	require.NotNil(t, fields)

	assert.Equal(t, "Hotel Adler", fields.Merchant)
	assert.Equal(t, entity.CategoryAccommodation, fields.Category)
	assert.True(t, fields.Amount.Equal(decimal.RequireFromString("312.40")))
	assert.Equal(t, "CHF", fields.Currency)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), fields.Date)
	assert.InDelta(t, 0.93, fields.Confidence, 1e-9)

	req := client.lastReq
	assert.Equal(t, openai.GPT4o, req.Model)
	require.Len(t, req.Messages, 2)
	parts := req.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestRecognizeReceipt_Unrecognized(t *testing.T) {
	tests := []struct {
		name    string
		content string
		min     float64
	}{
		{"model says no", `{"recognized": false}`, 0},
		{"zero amount", `{"amount": 0, "currency": "EUR"}`, 0},
		{"no currency", `{"amount": "12.00"}`, 0},
		{"below confidence", `{"amount": 12.5, "currency": "EUR", "confidence": 0.4}`, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReceiptRecognizerWithClient(replyWith(tt.content), Config{MinConfidence: tt.min}, zap.NewNop())
			fields, err := r.RecognizeReceipt(context.Background(), []byte("png"), "image/png")
			require.NoError(t, err)
			assert.Nil(t, fields)
		})
	}
}

func TestRecognizeReceipt_Errors(t *testing.T) {
	ctx := context.Background()

	r := NewReceiptRecognizerWithClient(replyWith(`{}`), Config{}, zap.NewNop())
	_, err := r.RecognizeReceipt(ctx, []byte("x"), "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedMime)

	_, err = r.RecognizeReceipt(ctx, nil, "image/png")
	assert.Error(t, err)

	boom := errors.New("rate limited")
	failing := &fakeChatClient{createFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, boom
	}}
	_, err = NewReceiptRecognizerWithClient(failing, Config{}, zap.NewNop()).RecognizeReceipt(ctx, []byte("x"), "image/png")
	assert.ErrorIs(t, err, boom)

	_, err = NewReceiptRecognizerWithClient(replyWith("not json"), Config{}, zap.NewNop()).RecognizeReceipt(ctx, []byte("x"), "image/png")
	assert.Error(t, err)
}

func TestParseReceipt(t *testing.T) {
	fields, err := parseReceipt("```json\n{\"amount\": 18.9, \"currency\": \"EUR\", \"category\": \"mileage\", \"date\": \"05.03.2024\"}\n```")
	require.NoError(t, err)
	require.NotNil(t, fields)

	assert.True(t, fields.Amount.Equal(decimal.RequireFromString("18.9")))
	assert.Equal(t, entity.CategoryOther, fields.Category)
	assert.True(t, fields.Date.IsZero())
}
