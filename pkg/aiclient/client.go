/**
 * @description
 * This package provides the external classification client. It sends one
 * prompt per batch of unresolved merchant descriptions to a generative-AI
 * text endpoint and parses the comma-delimited list of category names it
 * answers with. Batching keeps the external-API cost bounded to one call per
 * pipeline run.
 *
 * @dependencies
 * - context, fmt, strings: Standard Go libraries.
 * - google.golang.org/genai: The Gemini API client.
 */
package aiclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is the generation model used for classification.
const DefaultModel = "gemini-2.0-flash"

// callTimeout bounds a single model call; a timeout surfaces as a retryable
// failure at the consumer layer.
const callTimeout = 60 * time.Second

// Classifier classifies a batch of merchant descriptions into category names.
// The returned slice is positional: names[i] classifies descriptions[i]. It
// may be shorter than the input when the model misbehaves; callers must pad.
type Classifier interface {
	ClassifyDescriptions(ctx context.Context, descriptions []string, categoryNames []string) ([]string, error)
}

// Client implements Classifier on the Gemini API.
type Client struct {
	genai *genai.Client
	model string
}

// NewClient creates a classification client. API credentials come from the
// environment (GEMINI_API_KEY), following the genai SDK convention. An empty
// model selects DefaultModel.
func NewClient(ctx context.Context, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{genai: client, model: model}, nil
}

// ClassifyDescriptions sends one prompt covering the whole batch and returns
// the model's category names in input order.
func (c *Client) ClassifyDescriptions(ctx context.Context, descriptions []string, categoryNames []string) ([]string, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	prompt := BuildPrompt(descriptions, categoryNames)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return ParseNames(rawText), nil
}

// BuildPrompt renders the classification instruction for one batch. The model
// is constrained to the fixed category enumeration and to a single
// comma-separated output line, one name per input description, in order.
func BuildPrompt(descriptions []string, categoryNames []string) string {
	var b strings.Builder
	b.WriteString("다음은 은행 거래내역의 적요(상호명) 목록입니다. 각 항목을 소비 카테고리로 분류하세요.\n\n")
	b.WriteString("사용 가능한 카테고리 (이 목록에 있는 이름만 사용):\n")
	for _, name := range categoryNames {
		b.WriteString("- " + name + "\n")
	}
	b.WriteString("\n거래내역:\n")
	for i, desc := range descriptions {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, desc))
	}
	b.WriteString("\n규칙:\n")
	b.WriteString("- 카테고리 이름만 쉼표로 구분하여 한 줄로 출력하세요.\n")
	b.WriteString("- 입력 순서와 동일한 순서로, 항목당 정확히 하나의 카테고리를 출력하세요.\n")
	b.WriteString("- 확실하지 않으면 \"기타\"를 사용하세요.\n")
	b.WriteString("- 다른 텍스트, 번호, 코드 블록 없이 답변만 출력하세요.\n")
	return b.String()
}

// ParseNames splits the model's answer into trimmed category names. Code
// fences and surrounding noise are stripped; the model sometimes ignores the
// single-line instruction, so only the first non-empty line is used.
func ParseNames(raw string) []string {
	clean := strings.TrimSpace(raw)

	if strings.HasPrefix(clean, "```") {
		if idx := strings.Index(clean, "\n"); idx != -1 {
			clean = clean[idx+1:]
		}
		if idx := strings.LastIndex(clean, "```"); idx != -1 {
			clean = clean[:idx]
		}
		clean = strings.TrimSpace(clean)
	}

	line := clean
	for _, candidate := range strings.Split(clean, "\n") {
		if strings.TrimSpace(candidate) != "" {
			line = candidate
			break
		}
	}

	parts := strings.Split(line, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
