// Package openai recognizes receipt images with a vision-capable chat model
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/gen2brain/go-fitz"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnsupportedMime is returned for uploads that are neither an image nor a PDF
var ErrUnsupportedMime = errors.New("unsupported receipt type")

const maxPDFPages = 2

const systemPrompt = "You read travel expense receipts (hotel folios, restaurant bills, taxi and train tickets, fuel slips). " +
	"Extract exactly what is printed and never guess. Always respond with a single JSON object."

const userPrompt = `Extract the receipt below into this JSON object:
{
  "recognized": true,
  "merchant": "string",
  "description": "short description of what was paid for",
  "category": "accommodation | transport | meal | other",
  "amount": "total paid including tax, digits and dot only, e.g. 123.45",
  "currency": "ISO 4217 code, e.g. EUR",
  "date": "YYYY-MM-DD",
  "confidence": 0.0
}
Set "recognized" to false when the image is not a receipt or the total is unreadable.`

// ChatClient is the part of the go-openai client the recognizer uses
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config controls the recognizer
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Timeout       time.Duration
	MinConfidence float64
}

// ReceiptRecognizer implements port.ReceiptRecognizer
type ReceiptRecognizer struct {
	client ChatClient
	cfg    Config
	logger *zap.Logger
}

// NewReceiptRecognizer creates a recognizer backed by the OpenAI API
func NewReceiptRecognizer(cfg Config, logger *zap.Logger) *ReceiptRecognizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewReceiptRecognizerWithClient(openai.NewClientWithConfig(clientCfg), cfg, logger)
}

// NewReceiptRecognizerWithClient creates a recognizer over an existing client
func NewReceiptRecognizerWithClient(client ChatClient, cfg Config, logger *zap.Logger) *ReceiptRecognizer {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	return &ReceiptRecognizer{client: client, cfg: cfg, logger: logger}
}

// RecognizeReceipt sends the receipt to the model. It returns nil fields when the model
// could not read a positive total with a currency, or was less confident than configured.
func (r *ReceiptRecognizer) RecognizeReceipt(ctx context.Context, image []byte, mimeType string) (*port.RecognizedFields, error) {
	pages, err := r.pages(image, mimeType)
	if err != nil {
		return nil, err
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: userPrompt}}
	for _, p := range pages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", p.mime, base64.StdEncoding.EncodeToString(p.data)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		r.logger.Error("Receipt recognition call failed", zap.Error(err))
		return nil, fmt.Errorf("receipt recognition failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from receipt recognizer")
	}

	content := resp.Choices[0].Message.Content
	fields, err := parseReceipt(content)
	if err != nil {
		r.logger.Error("Failed to parse recognizer response", zap.Error(err), zap.String("content", content))
		return nil, err
	}
	if fields == nil {
		r.logger.Info("Receipt not recognized")
		return nil, nil
	}
	if fields.Confidence < r.cfg.MinConfidence {
		r.logger.Info("Receipt recognized below confidence threshold",
			zap.Float64("confidence", fields.Confidence),
			zap.Float64("min_confidence", r.cfg.MinConfidence))
		return nil, nil
	}

	r.logger.Info("Receipt recognized",
		zap.String("merchant", fields.Merchant),
		zap.String("amount", fields.Amount.String()),
		zap.String("currency", fields.Currency),
		zap.Float64("confidence", fields.Confidence))
	return fields, nil
}

type page struct {
	mime string
	data []byte
}

func (r *ReceiptRecognizer) pages(data []byte, mimeType string) ([]page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("receipt is empty")
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return []page{{mime: mimeType, data: data}}, nil
	case "application/pdf":
		return renderPDF(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMime, mimeType)
	}
}

// renderPDF rasterizes the first pages of a PDF receipt to JPEG
func renderPDF(data []byte) ([]page, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n > maxPDFPages {
		n = maxPDFPages
	}

	pages := make([]page, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("failed to render PDF page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode PDF page %d: %w", i+1, err)
		}
		pages = append(pages, page{mime: "image/jpeg", data: buf.Bytes()})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	return pages, nil
}

type receiptJSON struct {
	Recognized  *bool           `json:"recognized"`
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        string          `json:"date"`
	Confidence  float64         `json:"confidence"`
}

// parseReceipt decodes the model output. Nil fields mean nothing usable was read.
func parseReceipt(content string) (*port.RecognizedFields, error) {
	var raw receiptJSON
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse recognizer response: %w", err)
	}

	if raw.Recognized != nil && !*raw.Recognized {
		return nil, nil
	}
	if !raw.Amount.IsPositive() || strings.TrimSpace(raw.Currency) == "" {
		return nil, nil
	}

	fields := &port.RecognizedFields{
		Merchant:    strings.TrimSpace(raw.Merchant),
		Description: strings.TrimSpace(raw.Description),
		Category:    entity.Category(strings.ToLower(strings.TrimSpace(raw.Category))),
		Amount:      raw.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(raw.Currency)),
		Confidence:  raw.Confidence,
	}
	if !fields.Category.IsValid() || fields.Category == entity.CategoryPerDiem || fields.Category == entity.CategoryMileage {
		fields.Category = entity.CategoryOther
	}
	if raw.Date != "" {
		if d, err := time.Parse(time.DateOnly, raw.Date); err == nil {
			fields.Date = d
		}
	}
	return fields, nil
}

// stripFences removes a markdown code fence around a JSON answer
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ port.ReceiptRecognizer = (*ReceiptRecognizer)(nil)
