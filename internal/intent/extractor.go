package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/llm"
	"github.com/hackgods/vaidya/internal/logging"
)

const systemPrompt = `You are an intent extraction engine for a healthcare booking WhatsApp bot in India.
Extract structured data from the user's message.

Return ONLY valid JSON. No explanation, no markdown, no code blocks.

JSON schema:
{
  "intent": one of: "find_doctor"|"book_appointment"|"view_records"|"cancel_appointment"|"check_queue"|"check_status"|"view_appointments"|"update_profile"|"add_family"|"favorites"|"help"|"greeting"|"yes"|"no"|"number"|"cancel_flow"|"unclear",
  "specialty": string or null,
  "location": string or null,
  "date": "today"|"tomorrow"|"YYYY-MM-DD" or null,
  "hospital_preference": string or null,
  "language": "English"|"Hindi"|"Telugu"|"Tamil"|"Kannada" or null,
  "number": integer or null (if user replied with a number like "1","2","3")
}

Rules:
- "yes"/"ok"/"confirm"/"haan"/"yes please" -> intent: "yes"
- "no"/"nahi"/"stop" -> intent: "no"
- A single number like "1","2","3" -> intent: "number", number: <that number>
- "hi"/"hello"/"helo"/"start" -> intent: "greeting"
- "cancel","quit","restart","menu","main menu" -> intent: "cancel_flow"
- Specialties: cardiology, dentistry, orthopedics, dermatology, gynecology, pediatrics, ENT, ophthalmology, neurology, psychiatry, general physician, etc.`

const (
	maxHistory       = 4
	intentMaxTokens  = 200
	detectMaxTokens  = 20
	translateMaxToks = 600
	defaultLanguage  = "English"
)

// Extractor classifies messages with a language model. None of its methods return errors:
// every failure degrades to a safe default.
type Extractor struct {
	client llm.Client
	logger *zap.Logger
}

func NewExtractor(client llm.Client, logger *zap.Logger) *Extractor {
	return &Extractor{client: client, logger: logging.OrNop(logger)}
}

// Extract returns the intent of text given up to four prior turns.
func (e *Extractor) Extract(ctx context.Context, text string, history []llm.Message) Intent {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text})

	out, err := e.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    msgs,
		Temperature: 0,
		MaxTokens:   intentMaxTokens,
	})
	if err != nil {
		e.logger.Warn("intent extraction failed", zap.Error(err))
		return unclear(text)
	}

	in, err := parse(out)
	if err != nil {
		e.logger.Warn("intent response unparseable", zap.Error(err), zap.String("raw", out))
		return unclear(text)
	}
	in.RawText = text
	return in
}

func parse(raw string) (Intent, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var in Intent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	if !in.Kind.Valid() {
		return Intent{}, fmt.Errorf("unknown intent %q", in.Kind)
	}
	return in, nil
}

// DetectLanguage returns a one-word language name, English on any failure.
func (e *Extractor) DetectLanguage(ctx context.Context, text string) string {
	out, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: "Detect the language. Reply with ONLY one word: English, Hindi, Telugu, Tamil, Kannada, or Other.\n\n" +
				fmt.Sprintf("Message: %q", text),
		}},
		MaxTokens: detectMaxTokens,
	})
	if err != nil {
		e.logger.Warn("language detection failed", zap.Error(err))
		return defaultLanguage
	}

	fields := strings.Fields(out)
	if len(fields) != 1 {
		return defaultLanguage
	}
	return strings.Trim(fields[0], ".\"'")
}

// Translate renders text in target. English targets and failures return text unchanged.
func (e *Extractor) Translate(ctx context.Context, text, target string) string {
	if target == "" || strings.EqualFold(target, defaultLanguage) {
		return text
	}

	out, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: fmt.Sprintf("Translate this message to %s. Keep emoji, numbers, links and formatting. Return ONLY the translation.\n\n%q",
				target, text),
		}},
		MaxTokens: translateMaxToks,
	})
	if err != nil {
		e.logger.Warn("translation failed", zap.String("target", target), zap.Error(err))
		return text
	}
	return out
}
