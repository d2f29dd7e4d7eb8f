package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/assistbot/pkg/models"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAI implements the Provider surface over the OpenAI REST API:
// chat completions with SSE streaming, whisper transcription and
// image analysis through image_url content parts.
type OpenAI struct {
	apiKey             string
	transcriptionModel string
	client             *http.Client
}

// NewOpenAI creates an OpenAI-family provider for the given key.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		apiKey:             apiKey,
		transcriptionModel: "whisper-1",
		client:             &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateStream streams chat completion fragments. The request is
// chat-shaped already, so the mapping is direct: system turns merge
// into one leading system message, the rest pass through.
func (o *OpenAI) GenerateStream(ctx context.Context, messages []models.MessageTurn, settings models.Settings) (<-chan Chunk, error) {
	payload := chatRequest{
		Model:       settings.Model,
		Temperature: settings.Temperature,
		Stream:      true,
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: systemContent(messages)})
	for _, m := range messages {
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant {
			payload.Messages = append(payload.Messages, chatMessage{Role: m.Role, Content: m.Content})
		}
	}

	resp, err := o.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	return o.consumeStream(resp), nil
}

// consumeStream reads SSE lines off the response body and pushes
// fragments into a bounded channel.
func (o *OpenAI) consumeStream(resp *http.Response) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var delta streamDelta
			if err := json.Unmarshal([]byte(data), &delta); err != nil {
				continue
			}
			if delta.Error != nil {
				out <- Chunk{Err: fmt.Errorf("openai: %s", delta.Error.Message)}
				return
			}
			if len(delta.Choices) == 0 {
				continue
			}
			if text := delta.Choices[0].Delta.Content; text != "" {
				out <- Chunk{Text: text}
			}
			if delta.Choices[0].FinishReason != nil && *delta.Choices[0].FinishReason != "" {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- Chunk{Err: fmt.Errorf("openai stream read: %w", err)}
		}
	}()
	return out
}

// Transcribe sends the audio file to whisper. Errors come back as a
// short human-readable string, not an error value.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath, language string) string {
	file, err := os.Open(audioPath)
	if err != nil {
		return "Не вдалося відкрити аудіофайл."
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "Помилка підготовки запиту."
	}
	if _, err := io.Copy(part, file); err != nil {
		return "Помилка читання аудіофайлу."
	}
	_ = writer.WriteField("model", o.transcriptionModel)
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	if err := writer.Close(); err != nil {
		return "Помилка підготовки запиту."
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIBaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "Помилка підготовки запиту."
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "Сервіс розпізнавання недоступний."
	}
	defer resp.Body.Close()

	var parsed struct {
		Text  string `json:"text"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "Не вдалося розібрати відповідь сервісу."
	}
	if parsed.Error != nil {
		log.Printf("whisper error: %s", parsed.Error.Message)
		return "Помилка розпізнавання: " + parsed.Error.Message
	}
	return strings.TrimSpace(parsed.Text)
}

// AnalyzeImage streams a vision response for the image at imagePath.
func (o *OpenAI) AnalyzeImage(ctx context.Context, imagePath, prompt string, prior []models.MessageTurn, settings models.Settings) (<-chan Chunk, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	payload := chatRequest{
		Model:       settings.Model,
		Temperature: settings.Temperature,
		Stream:      true,
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: systemContent(prior)})
	for _, m := range prior {
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant {
			payload.Messages = append(payload.Messages, chatMessage{Role: m.Role, Content: m.Content})
		}
	}
	payload.Messages = append(payload.Messages, chatMessage{
		Role: "user",
		Content: []map[string]interface{}{
			{"type": "text", "text": prompt},
			{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
		},
	})

	resp, err := o.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	return o.consumeStream(resp), nil
}

// ValidateKey lists models with the candidate key; one minimal call.
func (o *OpenAI) ValidateKey(ctx context.Context, key string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAIBaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (o *OpenAI) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var parsed struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			return nil, fmt.Errorf("openai: %s", parsed.Error.Message)
		}
		return nil, fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}
