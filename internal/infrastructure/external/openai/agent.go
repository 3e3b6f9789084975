package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
)

const keyDateLayout = "2006-01-02"

// Config configures the extraction agent
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// MaxTextChars caps the document text placed in a prompt
	MaxTextChars int
}

// Agent implements port.ExtractionAgent with chat completions
type Agent struct {
	client       *openai.Client
	model        string
	prompts      *PromptConfig
	maxTextChars int
	logger       *zap.Logger
}

// NewAgent creates a new OpenAI extraction agent
func NewAgent(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Agent {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxText := cfg.MaxTextChars
	if maxText <= 0 {
		maxText = 24000
	}
	return &Agent{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		prompts:      prompts,
		maxTextChars: maxText,
		logger:       logger,
	}
}

// extractionResponse is the JSON object the model is asked to return
type extractionResponse struct {
	TenantName        string            `json:"tenant_name"`
	ABN               string            `json:"abn"`
	ACN               string            `json:"acn"`
	PropertyAddress   string            `json:"property_address"`
	LeaseTerm         *int              `json:"lease_term"`
	RentAmount        *decimal.Decimal  `json:"rent_amount"`
	SecurityDeposit   *decimal.Decimal  `json:"security_deposit"`
	SpecialConditions []string          `json:"special_conditions"`
	KeyDates          map[string]string `json:"key_dates"`
	Fields            map[string]string `json:"fields"`
	Confidence        float64           `json:"confidence"`
}

// Extract asks the model about each document in turn. Any failed call fails
// the whole batch so no partial result is recorded.
func (a *Agent) Extract(ctx context.Context, req port.ExtractionRequest) ([]port.ExtractionResult, error) {
	results := make([]port.ExtractionResult, 0, len(req.Documents))
	for _, doc := range req.Documents {
		res, err := a.extractDocument(ctx, req.RequestID, doc)
		if err != nil {
			return nil, fmt.Errorf("%w: document %s: %v", port.ErrAgentUnavailable, doc.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (a *Agent) extractDocument(ctx context.Context, requestID string, doc port.ExtractionDocument) (port.ExtractionResult, error) {
	start := time.Now()

	text := doc.Text
	if len(text) > a.maxTextChars {
		text = text[:a.maxTextChars]
	}
	image := text == "" && strings.HasPrefix(doc.MimeType, "image/")

	prompt, err := renderTemplate(a.prompts.Extraction.UserTemplate, map[string]interface{}{
		"RequestID":    requestID,
		"Name":         doc.Name,
		"DeclaredType": string(doc.DeclaredType),
		"Text":         text,
	})
	if err != nil {
		return port.ExtractionResult{}, err
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	if image {
		user = openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    fmt.Sprintf("data:%s;base64,%s", doc.MimeType, base64.StdEncoding.EncodeToString(doc.Payload)),
						Detail: openai.ImageURLDetailHigh,
					},
				},
			},
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.prompts.Extraction.Temperature,
		MaxTokens:   a.prompts.Extraction.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.prompts.Extraction.System},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Error("OpenAI API call failed", zap.String("document_id", doc.ID), zap.Error(err))
		return port.ExtractionResult{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return port.ExtractionResult{}, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var parsed extractionResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		a.logger.Error("Failed to parse OpenAI response",
			zap.String("document_id", doc.ID),
			zap.Error(err),
			zap.String("content", content))
		return port.ExtractionResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	result := port.ExtractionResult{
		DocumentID:      doc.ID,
		Data:            toExtractedData(parsed),
		ConfidenceScore: clampConfidence(parsed.Confidence),
	}

	a.logger.Info("Document extracted",
		zap.String("request_id", requestID),
		zap.String("document_id", doc.ID),
		zap.Float64("confidence", result.ConfidenceScore),
		zap.Bool("image", image),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func toExtractedData(r extractionResponse) entity.ExtractedData {
	data := entity.ExtractedData{
		TenantName:        strings.TrimSpace(r.TenantName),
		ABN:               strings.TrimSpace(r.ABN),
		ACN:               strings.TrimSpace(r.ACN),
		PropertyAddress:   strings.TrimSpace(r.PropertyAddress),
		LeaseTerm:         r.LeaseTerm,
		RentAmount:        r.RentAmount,
		SecurityDeposit:   r.SecurityDeposit,
		SpecialConditions: r.SpecialConditions,
	}

	for k, v := range r.Fields {
		if data.Fields == nil {
			data.Fields = make(map[string]string)
		}
		data.Fields[k] = v
	}
	for name, raw := range r.KeyDates {
		t, err := time.Parse(keyDateLayout, strings.TrimSpace(raw))
		if err != nil {
			// keep what the model said so a reviewer can see it
			if data.Fields == nil {
				data.Fields = make(map[string]string)
			}
			data.Fields["key_date."+name] = raw
			continue
		}
		if data.KeyDates == nil {
			data.KeyDates = make(map[string]time.Time)
		}
		data.KeyDates[name] = t
	}
	return data
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Verify interface compliance
var _ port.ExtractionAgent = (*Agent)(nil)
