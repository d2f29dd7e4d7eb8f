package ai

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/example/assistbot/pkg/models"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini implements the Provider surface over the Google GenAI SDK.
// The vendor's history shape differs from chat-completions: system
// turns go into SystemInstruction, "assistant" becomes "model", and
// the trailing user turn is sent as the current prompt.
type Gemini struct {
	apiKey string
}

// NewGemini creates a Google-family provider for the given key.
func NewGemini(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func (g *Gemini) model(client *genai.Client, settings models.Settings, system string) *genai.GenerativeModel {
	name := settings.Model
	if !strings.Contains(strings.ToLower(name), "gemini") {
		name = defaultGeminiModel
	}
	model := client.GenerativeModel(name)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	temp := float32(settings.Temperature)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	return model
}

// GenerateStream maps the chat history into a genai session and
// streams the reply.
func (g *Gemini) GenerateStream(ctx context.Context, messages []models.MessageTurn, settings models.Settings) (<-chan Chunk, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, err
	}

	model := g.model(client, settings, systemContent(messages))

	var history []*genai.Content
	var prompt string
	dialogue := filterDialogue(messages)
	for i, m := range dialogue {
		if i == len(dialogue)-1 && m.Role == models.RoleUser {
			prompt = m.Content
			break
		}
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	if prompt == "" {
		client.Close()
		return nil, fmt.Errorf("gemini: history does not end with a user turn")
	}

	session := model.StartChat()
	session.History = history

	iter := session.SendMessageStream(ctx, genai.Text(prompt))
	return consumeGeminiStream(client, iter), nil
}

func consumeGeminiStream(client *genai.Client, iter *genai.GenerateContentResponseIterator) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		defer client.Close()
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				out <- Chunk{Err: fmt.Errorf("gemini: %w", err)}
				return
			}
			if text := responseText(resp); text != "" {
				out <- Chunk{Text: text}
			}
		}
	}()
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// Transcribe sends the audio inline as a blob and asks the model for a
// verbatim transcript.
func (g *Gemini) Transcribe(ctx context.Context, audioPath, language string) string {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "Не вдалося відкрити аудіофайл."
	}

	client, err := g.newClient(ctx)
	if err != nil {
		return "Сервіс розпізнавання недоступний."
	}
	defer client.Close()

	prompt := "Transcribe this audio verbatim. Return only the transcript text."
	if language != "" {
		prompt += " The speech is in language code " + language + "."
	}

	model := client.GenerativeModel(defaultGeminiModel)
	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeForAudio(audioPath), Data: data},
		genai.Text(prompt))
	if err != nil {
		log.Printf("gemini transcription error: %v", err)
		return "Помилка розпізнавання."
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "Не вдалося розпізнати мовлення."
	}
	return text
}

// AnalyzeImage streams a vision reply for the image.
func (g *Gemini) AnalyzeImage(ctx context.Context, imagePath, prompt string, prior []models.MessageTurn, settings models.Settings) (<-chan Chunk, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	client, err := g.newClient(ctx)
	if err != nil {
		return nil, err
	}

	model := g.model(client, settings, systemContent(prior))

	var history []*genai.Content
	for _, m := range filterDialogue(prior) {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	session := model.StartChat()
	session.History = history

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(imagePath)), ".")
	if ext == "" || ext == "jpg" {
		ext = "jpeg"
	}
	iter := session.SendMessageStream(ctx, genai.ImageData(ext, data), genai.Text(prompt))
	return consumeGeminiStream(client, iter), nil
}

// ValidateKey counts tokens for a one-word prompt; the cheapest call
// that still authenticates.
func (g *Gemini) ValidateKey(ctx context.Context, key string) bool {
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return false
	}
	defer client.Close()

	model := client.GenerativeModel(defaultGeminiModel)
	_, err = model.CountTokens(ctx, genai.Text("ping"))
	return err == nil
}

func filterDialogue(messages []models.MessageTurn) []models.MessageTurn {
	var out []models.MessageTurn
	for _, m := range messages {
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func mimeForAudio(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mp3"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".mp4":
		return "audio/mp4"
	default:
		return "audio/mp3"
	}
}
